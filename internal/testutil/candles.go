// Package testutil builds deterministic market data for package tests.
package testutil

import (
	"math"
	"math/rand"
	"time"

	"FinSignal/internal/domain/models"
)

// Start is the timestamp of the first synthetic candle.
var Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Candles returns n one-minute candles following a seeded random walk.
func Candles(n int, seed int64) []models.Candle {
	r := rand.New(rand.NewSource(seed))
	out := make([]models.Candle, n)
	prev := 100.0
	for i := range out {
		open := prev
		close := open * (1 + 0.004*r.NormFloat64())
		high := math.Max(open, close) * (1 + 0.002*r.Float64())
		low := math.Min(open, close) * (1 - 0.002*r.Float64())
		out[i] = models.Candle{
			Timestamp: Start.Add(time.Duration(i) * time.Minute),
			Symbol:    "TEST",
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    100 + 50*r.Float64(),
		}
		prev = close
	}
	return out
}

// Trend returns n candles whose close moves by step each minute.
func Trend(n int, start, step float64) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		c := start + float64(i)*step
		o := c - step
		out[i] = models.Candle{
			Timestamp: Start.Add(time.Duration(i) * time.Minute),
			Symbol:    "TEST",
			Open:      o,
			High:      math.Max(o, c) + 0.1,
			Low:       math.Min(o, c) - 0.1,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}
