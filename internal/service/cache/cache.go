package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"FinSignal/internal/domain/models"
)

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SignalCache stores the latest signal per symbol as JSON.
type SignalCache struct {
	store  BytesCache
	ttl    time.Duration
	prefix string
}

func NewSignalCache(store BytesCache, ttl time.Duration) *SignalCache {
	return &SignalCache{store: store, ttl: ttl, prefix: "finsignal:signal"}
}

func (c *SignalCache) key(symbol string) string {
	return fmt.Sprintf("%s:%s", c.prefix, strings.ToUpper(symbol))
}

// Get returns the cached signal; read and decode errors count as a miss.
func (c *SignalCache) Get(ctx context.Context, symbol string) (*models.Signal, bool) {
	b, ok, err := c.store.GetBytes(ctx, c.key(symbol))
	if err != nil || !ok {
		return nil, false
	}
	var s models.Signal
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, false
	}
	return &s, true
}

func (c *SignalCache) Set(ctx context.Context, symbol string, s models.Signal) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}
	return c.store.SetBytes(ctx, c.key(symbol), b, c.ttl)
}

// Invalidate drops the cached signal for symbol.
func (c *SignalCache) Invalidate(ctx context.Context, symbol string) error {
	return c.store.Delete(ctx, c.key(symbol))
}
