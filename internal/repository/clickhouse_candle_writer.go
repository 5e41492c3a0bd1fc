package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	applogger "FinSignal/pkg/logger"
)

// insertChunk bounds the rows sent in one multi-row INSERT.
const insertChunk = 2000

// Append writes candles into the timeframe table. The whole batch is
// validated first; ReplacingMergeTree collapses rows re-sent for the same
// (symbol, ts).
func (s *CHFeatureStore) Append(ctx context.Context, symbol string, tf domrepo.Timeframe, candles []models.Candle) error {
	if !domrepo.IsValidTimeframe(tf) {
		return fmt.Errorf("unsupported timeframe: %s", tf)
	}
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("candle %d: %w", i, err)
		}
	}
	if len(candles) == 0 {
		return nil
	}

	start := time.Now()
	table := candleTable(s.database, tf)
	sym := strings.ToUpper(symbol)
	for lo := 0; lo < len(candles); lo += insertChunk {
		hi := min(lo+insertChunk, len(candles))
		q, args := candleInsert(table, sym, candles[lo:hi])
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert_candles failed",
				applogger.String("table", table),
				applogger.String("symbol", sym),
				applogger.Int("offset", lo),
				applogger.Error(err),
			)
			return fmt.Errorf("insert candles: %w", err)
		}
	}
	s.l.Debug("clickhouse insert_candles ok",
		applogger.String("table", table),
		applogger.String("symbol", sym),
		applogger.Int("rows", len(candles)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func candleInsert(table, symbol string, batch []models.Candle) (string, []any) {
	values := make([]string, len(batch))
	args := make([]any, 0, len(batch)*7)
	for i, c := range batch {
		values[i] = "(?, ?, ?, ?, ?, ?, ?)"
		args = append(args, c.Timestamp.UTC(), symbol, c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, symbol, open, high, low, close, volume) VALUES %s",
		table, strings.Join(values, ", "))
	return q, args
}
