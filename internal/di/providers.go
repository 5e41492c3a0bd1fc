package di

import (
	"context"
	"fmt"
	"time"

	"FinSignal/internal/domain/repository"
	"FinSignal/internal/handler/api"
	internalrepo "FinSignal/internal/repository"
	icache "FinSignal/internal/service/cache"
	apimetrics "FinSignal/internal/service/metrics"
	"FinSignal/internal/service/ratelimit"
	"FinSignal/internal/services/features"
	"FinSignal/internal/services/indicators"
	"FinSignal/internal/services/modeling"
	"FinSignal/internal/usecase"
	pkgch "FinSignal/pkg/clickhouse"
	"FinSignal/pkg/config"
	xhttp "FinSignal/pkg/http"
	pkgkafka "FinSignal/pkg/kafka"
	applogger "FinSignal/pkg/logger"
	"FinSignal/pkg/metrics"
	"FinSignal/pkg/queue"
	"FinSignal/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvidePrometheusRegistry creates the registry served on the metrics path.
func ProvidePrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.New(reg)
}

func ProvideAPIMetrics(reg *prometheus.Registry) *apimetrics.API {
	return apimetrics.NewAPI(reg)
}

// ProvideFeatureStore uses ClickHouse when enabled and falls back to an
// in-process store. Both accept candles from the ingest endpoint.
func ProvideFeatureStore(cfg *config.Config, l *applogger.Logger) (repository.FeatureStore, func(), error) {
	if !cfg.ClickHouse.Enabled {
		l.Warn("clickhouse disabled, using in-memory candle store")
		return internalrepo.NewMemoryFeatureStore(cfg.Data.Lookback * 10), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.CandleSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse connected", applogger.String("database", cfg.ClickHouse.Database))

	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return internalrepo.NewCHFeatureStore(client, cfg.ClickHouse.Database, l), cleanup, nil
}

// ProvideRedisClient returns nil when Redis is disabled.
func ProvideRedisClient(cfg *config.Config, l *applogger.Logger) (*redis.Client, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	cleanup := func() {
		if err := cli.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}
	return cli, cleanup, nil
}

// ProvideSignalCache uses Redis when available, otherwise a process-local cache.
func ProvideSignalCache(cfg *config.Config, cli *redis.Client) repository.SignalCache {
	var store icache.BytesCache = icache.NewTTLCache()
	if cli != nil {
		store = icache.NewRedisCache(cli)
	}
	return icache.NewSignalCache(store, cfg.Redis.SignalTTL)
}

// ProvideSignalPublisher publishes to Kafka when enabled.
func ProvideSignalPublisher(cfg *config.Config, rec *metrics.Recorder, l *applogger.Logger) (repository.SignalPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NopSignalPublisher{}, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithTopic(cfg.Kafka.Topic),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaSignalPublisher(producer, rec)
	cleanup := func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return pub, cleanup, nil
}

// ProvideModelRegistry returns nil when the registry is disabled.
func ProvideModelRegistry(cfg *config.Config, l *applogger.Logger) (*internalrepo.SQLiteModelRegistry, func(), error) {
	if !cfg.Registry.Enabled {
		return nil, func() {}, nil
	}
	r, err := internalrepo.NewSQLiteModelRegistry(cfg.Registry.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("model registry: %w", err)
	}
	cleanup := func() {
		if err := r.Close(); err != nil {
			l.Warn("model registry close error", applogger.Error(err))
		}
	}
	return r, cleanup, nil
}

func ProvideFeatureBuilder(cfg *config.Config, l *applogger.Logger) *features.Builder {
	engine := indicators.NewEngine(cfg.Indicators, l.With(applogger.String("component", "indicators")))
	return features.NewBuilder(engine, cfg.Model.SequenceLength, l.With(applogger.String("component", "features")))
}

// ProvideModelManager creates the model lifecycle manager.
func ProvideModelManager(cfg *config.Config, b *features.Builder, l *applogger.Logger, rec *metrics.Recorder, reg *internalrepo.SQLiteModelRegistry) (*modeling.Manager, error) {
	opts := []modeling.Option{modeling.WithMetrics(rec)}
	if reg != nil {
		opts = append(opts, modeling.WithRegistry(reg))
	}
	return modeling.NewManager(cfg.Model, cfg.Signal, b, l.With(applogger.String("component", "modeling")), opts...)
}

func ProvideSignalUseCase(m *modeling.Manager, store repository.FeatureStore, cache repository.SignalCache, pub repository.SignalPublisher, rec *metrics.Recorder, l *applogger.Logger) *usecase.SignalUseCase {
	return usecase.NewSignalUseCase(m, store, cache, pub, rec, l)
}

func ProvideCandlesUseCase(store repository.FeatureStore) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(store)
}

// ProvideTrainQueue returns nil without Redis; training is then synchronous only.
func ProvideTrainQueue(cfg *config.Config, cli *redis.Client, uc *usecase.SignalUseCase, l *applogger.Logger) *queue.RedisQueue {
	if cli == nil {
		return nil
	}
	q := queue.NewRedisQueue(l.With(applogger.String("component", "queue")), queue.Config{
		RetryLimit:   cfg.Redis.RetryLimit,
		RetryDelay:   30 * time.Second,
		PollInterval: 5 * time.Second,
	}, cli, cfg.Redis.QueuePrefix)
	q.RegisterJob(usecase.NewTrainJob(uc, l))
	return q
}

func ProvideModelHandler(l *applogger.Logger, uc *usecase.SignalUseCase, cu *usecase.CandlesUseCase, q *queue.RedisQueue, m *apimetrics.API) *api.ModelHandler {
	var jobs queue.Publisher
	if q != nil {
		jobs = q
	}
	// two training requests per client, one more every five minutes
	rl := ratelimit.New(2, 1.0/300)
	return api.NewModelHandler(l, uc, cu, jobs, rl, m)
}

func ProvideHTTPServer(cfg *config.Config, h *api.ModelHandler, l *applogger.Logger, reg *prometheus.Registry) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(h, l,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithRegistry(reg),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, uc *usecase.SignalUseCase, q *queue.RedisQueue) *server.App {
	return server.New(cfg, l, srv, uc, q)
}
