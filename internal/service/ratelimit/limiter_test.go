package ratelimit

import (
	"testing"
	"time"
)

func TestAllowRefills(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(2, 0.5)
	l.now = func() time.Time { return now }

	if !l.Allow("train:BTC") || !l.Allow("train:BTC") {
		t.Fatalf("burst of capacity should pass")
	}
	if l.Allow("train:BTC") {
		t.Fatalf("bucket should be empty")
	}
	if !l.Allow("train:ETH") {
		t.Fatalf("keys must not share buckets")
	}
	now = now.Add(2 * time.Second)
	if !l.Allow("train:BTC") {
		t.Fatalf("bucket should refill one token after 2s")
	}
}
