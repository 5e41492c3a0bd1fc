package repository

import (
	"context"
	"time"

	"FinSignal/internal/domain/models"
)

// FeatureStore is the candle source for training and inference.
// Results are ordered by ascending timestamp.
type FeatureStore interface {
	GetCandles(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Candle, error)
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
}

// CandleAppender is implemented by stores that accept pushed candles.
type CandleAppender interface {
	Append(ctx context.Context, symbol string, tf Timeframe, candles []models.Candle) error
}
