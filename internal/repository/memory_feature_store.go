package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
)

// MemoryFeatureStore keeps candles in process. It backs local runs without
// ClickHouse and candles pushed through the ingest endpoint.
type MemoryFeatureStore struct {
	mu      sync.RWMutex
	candles map[string][]models.Candle
	limit   int
}

// NewMemoryFeatureStore keeps at most limit candles per symbol and timeframe.
func NewMemoryFeatureStore(limit int) *MemoryFeatureStore {
	if limit <= 0 {
		limit = 50000
	}
	return &MemoryFeatureStore{candles: make(map[string][]models.Candle), limit: limit}
}

// Append merges candles into the series, replacing equal timestamps and
// keeping time order. Invalid candles are rejected as a whole batch.
func (s *MemoryFeatureStore) Append(_ context.Context, symbol string, tf domrepo.Timeframe, batch []models.Candle) error {
	if !domrepo.IsValidTimeframe(tf) {
		return fmt.Errorf("unsupported timeframe: %s", tf)
	}
	for i, c := range batch {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("candle %d: %w", i, err)
		}
	}
	k := storeKey(symbol, tf)

	s.mu.Lock()
	defer s.mu.Unlock()
	byTS := make(map[int64]models.Candle, len(s.candles[k])+len(batch))
	for _, c := range s.candles[k] {
		byTS[c.Timestamp.UnixNano()] = c
	}
	for _, c := range batch {
		c.Symbol = strings.ToUpper(symbol)
		byTS[c.Timestamp.UnixNano()] = c
	}
	merged := make([]models.Candle, 0, len(byTS))
	for _, c := range byTS {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp.Before(merged[j].Timestamp) })
	if len(merged) > s.limit {
		merged = merged[len(merged)-s.limit:]
	}
	s.candles[k] = merged
	return nil
}

func (s *MemoryFeatureStore) GetCandles(_ context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Candle
	for _, c := range s.candles[storeKey(symbol, tf)] {
		if c.Timestamp.Before(from) || c.Timestamp.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *MemoryFeatureStore) GetLatestNCandles(_ context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.candles[storeKey(symbol, tf)]
	if n < len(all) {
		all = all[len(all)-n:]
	}
	out := make([]models.Candle, len(all))
	copy(out, all)
	return out, nil
}

func storeKey(symbol string, tf domrepo.Timeframe) string {
	return strings.ToUpper(symbol) + "|" + string(tf)
}
