package cache

import (
	"context"
	"testing"
	"time"

	"FinSignal/internal/domain/models"
)

func TestSignalCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewTTLCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	c := NewSignalCache(store, 30*time.Second)

	if _, ok := c.Get(ctx, "btcusdt"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	in := models.Signal{Symbol: "BTCUSDT", Signal: models.SignalLong, Confidence: 50, Probability: 0.75, ModelType: "lstm"}
	if err := c.Set(ctx, "btcusdt", in); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := c.Get(ctx, "BTCUSDT")
	if !ok || got.Signal != models.SignalLong || got.Probability != 0.75 {
		t.Fatalf("got %+v, %v", got, ok)
	}

	now = now.Add(31 * time.Second)
	if _, ok := c.Get(ctx, "BTCUSDT"); ok {
		t.Fatalf("expected expiry after ttl")
	}
}

func TestSignalCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewSignalCache(NewTTLCache(), time.Minute)
	if err := c.Set(ctx, "BTCUSDT", models.Signal{Signal: models.SignalShort}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Invalidate(ctx, "btcusdt"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok := c.Get(ctx, "BTCUSDT"); ok {
		t.Fatalf("expected miss after invalidate")
	}
}

func TestSignalCacheIgnoresGarbage(t *testing.T) {
	ctx := context.Background()
	store := NewTTLCache()
	c := NewSignalCache(store, 0)
	_ = store.SetBytes(ctx, c.key("ETHUSDT"), []byte("{not json"), 0)
	if _, ok := c.Get(ctx, "ETHUSDT"); ok {
		t.Fatalf("undecodable entry should be a miss")
	}
}
