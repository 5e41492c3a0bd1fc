package models

import (
	"errors"
	"fmt"
	"time"

	"FinSignal/pkg/frame"
)

// Candle represents an OHLCV record for feature engineering and training.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol,omitempty"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

var ErrInvalidCandle = errors.New("invalid candle")

// Validate enforces low <= {open, close} <= high and volume >= 0.
func (c Candle) Validate() error {
	if c.Low > c.High {
		return fmt.Errorf("%w: low %.8f above high %.8f", ErrInvalidCandle, c.Low, c.High)
	}
	for _, p := range []float64{c.Open, c.Close} {
		if p < c.Low || p > c.High {
			return fmt.Errorf("%w: price %.8f outside [%.8f, %.8f]", ErrInvalidCandle, p, c.Low, c.High)
		}
	}
	if c.Volume < 0 {
		return fmt.Errorf("%w: negative volume", ErrInvalidCandle)
	}
	return nil
}

// CandlesToFrame converts time-ordered candles into an OHLCV frame.
func CandlesToFrame(candles []Candle) *frame.Frame {
	n := len(candles)
	idx := make([]time.Time, n)
	o, h, l, c, v := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, k := range candles {
		idx[i] = k.Timestamp
		o[i], h[i], l[i], c[i], v[i] = k.Open, k.High, k.Low, k.Close, k.Volume
	}
	f, _ := frame.FromOHLCV(idx, o, h, l, c, v)
	return f
}

type SignalKind string

const (
	SignalLong    SignalKind = "long"
	SignalShort   SignalKind = "short"
	SignalNeutral SignalKind = "neutral"
)

// Signal is the outcome of one prediction. Error is set only on degraded results.
type Signal struct {
	Symbol      string     `json:"symbol,omitempty"`
	Signal      SignalKind `json:"signal"`
	Confidence  float64    `json:"confidence"`
	Probability float64    `json:"probability"`
	Timestamp   time.Time  `json:"timestamp"`
	ModelType   string     `json:"model_type"`
	Error       string     `json:"error,omitempty"`
}
