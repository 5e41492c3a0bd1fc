package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.Model.SequenceLength != 60 {
		t.Fatalf("sequence_length = %d, want 60", c.Model.SequenceLength)
	}
	if c.Model.ValidationSplit != 0.2 {
		t.Fatalf("validation_split = %v", c.Model.ValidationSplit)
	}
	if c.Signal.LongThreshold != 0.6 || c.Signal.ShortThreshold != 0.4 {
		t.Fatalf("thresholds = %v/%v", c.Signal.LongThreshold, c.Signal.ShortThreshold)
	}
	if c.Model.RetrainInterval() != 24*time.Hour {
		t.Fatalf("retrain interval = %v", c.Model.RetrainInterval())
	}
	if c.Model.BackupCount != 5 {
		t.Fatalf("backup_count = %d", c.Model.BackupCount)
	}
	if len(c.Indicators.EMAPeriods) != 3 || c.Indicators.EMAPeriods[2] != 50 {
		t.Fatalf("ema periods = %v", c.Indicators.EMAPeriods)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "model:\n  type: gru\n  sequence_length: 30\n")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Model.Type != "gru" || c.Model.SequenceLength != 30 {
		t.Fatalf("unexpected model config %+v", c.Model)
	}
	if c.Indicators.RSIPeriod != 14 {
		t.Fatalf("rsi_period default not applied: %d", c.Indicators.RSIPeriod)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"model type":   "model:\n  type: cnn\n",
		"thresholds":   "signal:\n  long_threshold: 0.4\n  short_threshold: 0.6\n",
		"split":        "model:\n  validation_split: 1.5\n",
		"kafka broker": "kafka:\n  enabled: true\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := writeConfig(t, "environment: test\n")
	t.Setenv("FINSIGNAL_MODEL_DIR", "/tmp/models")
	t.Setenv("FINSIGNAL_MODEL_TYPE", "Transformer")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Model.Dir != "/tmp/models" || c.Model.Type != "transformer" {
		t.Fatalf("env overrides not applied: %+v", c.Model)
	}
	if len(c.Kafka.Brokers) != 2 {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
}
