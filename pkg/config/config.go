package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required"`
	Server      ServerConfig     `yaml:"server"`
	Logging     LoggingConfig    `yaml:"logging"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Data        DataConfig       `yaml:"data"`
	Indicators  IndicatorConfig  `yaml:"indicators"`
	Model       ModelConfig      `yaml:"model"`
	Signal      SignalConfig     `yaml:"signal"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Redis       RedisConfig      `yaml:"redis"`
	Registry    RegistryConfig   `yaml:"registry"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" default:"/metrics"`
}

// DataConfig selects the candle history fed to training and inference.
type DataConfig struct {
	Symbol    string `yaml:"symbol" default:"BTCUSDT"`
	Timeframe string `yaml:"timeframe" default:"1m" validate:"oneof=1s 1m 5m"`
	Lookback  int    `yaml:"lookback" default:"2000" validate:"gt=0"`
}

// IndicatorConfig holds indicator look-back periods.
type IndicatorConfig struct {
	RSIPeriod       int     `yaml:"rsi_period" default:"14" validate:"gt=1"`
	MACDFast        int     `yaml:"macd_fast" default:"12" validate:"gt=0"`
	MACDSlow        int     `yaml:"macd_slow" default:"26" validate:"gtfield=MACDFast"`
	MACDSignal      int     `yaml:"macd_signal" default:"9" validate:"gt=0"`
	EMAPeriods      []int   `yaml:"ema_periods" default:"[9,21,50]" validate:"min=1,dive,gt=0"`
	BBPeriod        int     `yaml:"bb_period" default:"20" validate:"gt=1"`
	BBStd           float64 `yaml:"bb_std" default:"2" validate:"gt=0"`
	VolumeSMAPeriod int     `yaml:"volume_sma_period" default:"20" validate:"gt=0"`
	VolumeROCPeriod int     `yaml:"volume_roc_period" default:"10" validate:"gt=0"`
	StochKPeriod    int     `yaml:"stoch_k_period" default:"14" validate:"gt=0"`
	StochDPeriod    int     `yaml:"stoch_d_period" default:"3" validate:"gt=0"`
	ATRPeriod       int     `yaml:"atr_period" default:"14" validate:"gt=0"`
	PatternWindow   int     `yaml:"pattern_window" default:"5" validate:"gt=1"`
	BreakoutWindow  int     `yaml:"breakout_window" default:"20" validate:"gt=1"`
}

type ModelConfig struct {
	Type                 string  `yaml:"type" default:"lstm" validate:"oneof=lstm gru transformer"`
	Dir                  string  `yaml:"dir" default:"./models" validate:"required"`
	SequenceLength       int     `yaml:"sequence_length" default:"60" validate:"gt=0"`
	ValidationSplit      float64 `yaml:"validation_split" default:"0.2" validate:"gte=0,lt=1"`
	RetrainIntervalHours float64 `yaml:"retrain_interval_hours" default:"24" validate:"gt=0"`
	BackupCount          int     `yaml:"backup_count" default:"5" validate:"gte=1"`
	Epochs               int     `yaml:"epochs" default:"50" validate:"gt=0"`
	BatchSize            int     `yaml:"batch_size" default:"32" validate:"gt=0"`
	LearningRate         float64 `yaml:"learning_rate" default:"0.01" validate:"gt=0"`
	Patience             int     `yaml:"patience" default:"5" validate:"gte=0"`
	Seed                 int64   `yaml:"seed" default:"42"`

	RetrainCheckInterval time.Duration `yaml:"retrain_check_interval" default:"15m"`
}

// RetrainInterval converts the configured hours into a duration.
func (m ModelConfig) RetrainInterval() time.Duration {
	return time.Duration(m.RetrainIntervalHours * float64(time.Hour))
}

type SignalConfig struct {
	LongThreshold  float64 `yaml:"long_threshold" default:"0.6" validate:"gt=0,lt=1"`
	ShortThreshold float64 `yaml:"short_threshold" default:"0.4" validate:"gt=0,lt=1,ltfield=LongThreshold"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"finsignal"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
}

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"finsignal.signals"`
	RequiredAcks int           `yaml:"required_acks" default:"-1"`
	Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
}

type RedisConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Addr        string        `yaml:"addr" default:"localhost:6379"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	SignalTTL   time.Duration `yaml:"signal_ttl" default:"30s"`
	QueuePrefix string        `yaml:"queue_prefix" default:"finsignal:queue"`
	RetryLimit  int           `yaml:"retry_limit" default:"2"`
}

type RegistryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" default:"./models/registry.db"`
}

var validate = validator.New()

// Default returns a configuration populated only from default tags.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FINSIGNAL_MODEL_DIR"); v != "" {
		c.Model.Dir = v
	}
	if v := os.Getenv("FINSIGNAL_MODEL_TYPE"); v != "" {
		c.Model.Type = strings.ToLower(v)
	}
	if v := os.Getenv("FINSIGNAL_SEQUENCE_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Model.SequenceLength = n
		}
	}
	if v := os.Getenv("FINSIGNAL_SYMBOL"); v != "" {
		c.Data.Symbol = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Registry.Enabled && c.Registry.Path == "" {
		return fmt.Errorf("registry.path is required when the registry is enabled")
	}
	return nil
}
