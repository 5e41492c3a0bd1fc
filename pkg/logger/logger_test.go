package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileOutputCarriesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := New(&Config{Level: "debug", Output: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	log.With(String("component", "modeling")).
		Warn("scaler missing", Int("rows", 12), Error(errors.New("boom")))

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(b)
	for _, want := range []string{`"level":"warn"`, `"component":"modeling"`, `"rows":12`, `"error":"boom"`, `"message":"scaler missing"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %q missing %s", line, want)
		}
	}
}

func TestLevelFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := New(&Config{Level: "error", Output: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Info("dropped")

	b, _ := os.ReadFile(path)
	if len(b) != 0 {
		t.Fatalf("expected no output below level, got %q", string(b))
	}
}

func TestInvalidLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
