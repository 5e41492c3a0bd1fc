package repository

import "time"

// Timeframe is a candle resolution bucket.
type Timeframe string

const (
	TF1s Timeframe = "1s"
	TF1m Timeframe = "1m"
	TF5m Timeframe = "5m"
)

var timeframes = map[Timeframe]time.Duration{
	TF1s: time.Second,
	TF1m: time.Minute,
	TF5m: 5 * time.Minute,
}

// Timeframes lists every supported timeframe, finest first.
func Timeframes() []Timeframe { return []Timeframe{TF1s, TF1m, TF5m} }

// Duration is the bucket width, or zero for an unsupported timeframe.
func (tf Timeframe) Duration() time.Duration { return timeframes[tf] }

func IsValidTimeframe(tf Timeframe) bool {
	_, ok := timeframes[tf]
	return ok
}

// DefaultTimeframe is used when a request does not name one.
func DefaultTimeframe() Timeframe { return TF1m }

// NormalizeTimeframe maps unknown or empty input to the default timeframe.
func NormalizeTimeframe(s string) Timeframe {
	if tf := Timeframe(s); IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}
