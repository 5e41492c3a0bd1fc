package clickhouse

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host: "ch", Port: 9000, Database: "finsignal", User: "default", Password: "p@ss",
		DialTimeout: 5 * time.Second, MaxExecTime: 30 * time.Second,
	})
	for _, want := range []string{"clickhouse://default:p%40ss@ch:9000/finsignal?", "dial_timeout=5s", "max_execution_time=30"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %q missing %q", dsn, want)
		}
	}
	if !strings.HasPrefix(buildDSN(ClientConfig{Host: "ch", Port: 8123, UseHTTP: true}), "http://") {
		t.Fatalf("http scheme not applied")
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(context.Background()); err == nil {
		t.Fatalf("expected host error")
	}
}
