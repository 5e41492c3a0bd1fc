package features

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"FinSignal/pkg/frame"
)

var (
	returnPeriods     = []int{1, 5, 10}
	momentumPeriods   = []int{5, 10}
	lagColumns        = []string{frame.Close, frame.Volume, "rsi", "macd"}
	lagPeriods        = []int{1, 2, 3, 5, 10}
	volatilityWindows = []int{5, 10, 20}
)

// priceFeatures derives return, spread and momentum columns from OHLCV.
func priceFeatures(f *frame.Frame) (map[string][]float64, error) {
	if err := require(f, frame.Open, frame.High, frame.Low, frame.Close, frame.Volume); err != nil {
		return nil, err
	}
	o, h, l, c, v := f.Col(frame.Open), f.Col(frame.High), f.Col(frame.Low), f.Col(frame.Close), f.Col(frame.Volume)
	n := f.Len()
	out := make(map[string][]float64)

	for _, p := range returnPeriods {
		out["returns_"+strconv.Itoa(p)] = frame.PctChange(c, p)
	}

	pos, hl, oc := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		if rng := h[i] - l[i]; rng > 0 {
			pos[i] = (c[i] - l[i]) / rng
		} else {
			pos[i] = 0.5
		}
		hl[i] = (h[i] - l[i]) / c[i]
		oc[i] = (c[i] - o[i]) / o[i]
	}
	out["price_position"] = pos
	out["high_low_spread"] = hl
	out["open_close_spread"] = oc

	r1 := out["returns_1"]
	avgVol := frame.SMA(v, 20)
	vwr := frame.NaNs(n)
	for i := range vwr {
		if avgVol[i] > 0 {
			vwr[i] = r1[i] * v[i] / avgVol[i]
		}
	}
	out["volume_weighted_return"] = vwr

	for _, p := range momentumPeriods {
		out["momentum_"+strconv.Itoa(p)] = frame.Diff(c, p)
	}
	return out, nil
}

// calendarFeatures encodes the index cyclically. Raw integers are never kept.
func calendarFeatures(f *frame.Frame) (map[string][]float64, error) {
	if f.Len() > 0 && f.Index[0].IsZero() {
		return nil, fmt.Errorf("frame index has zero timestamps")
	}
	parts := []struct {
		name   string
		period float64
		value  func(t time.Time) float64
	}{
		{"hour", 24, func(t time.Time) float64 { return float64(t.Hour()) }},
		{"day_of_week", 7, func(t time.Time) float64 { return float64((int(t.Weekday()) + 6) % 7) }},
		{"day_of_month", 31, func(t time.Time) float64 { return float64(t.Day()) }},
		{"month", 12, func(t time.Time) float64 { return float64(t.Month()) }},
	}
	out := make(map[string][]float64, 2*len(parts))
	for _, p := range parts {
		s, c := make([]float64, f.Len()), make([]float64, f.Len())
		for i, ts := range f.Index {
			angle := 2 * math.Pi * p.value(ts.UTC()) / p.period
			s[i], c[i] = math.Sin(angle), math.Cos(angle)
		}
		out[p.name+"_sin"] = s
		out[p.name+"_cos"] = c
	}
	return out, nil
}

// lagFeatures shifts the present lag source columns.
func lagFeatures(f *frame.Frame) (map[string][]float64, error) {
	out := make(map[string][]float64)
	for _, col := range lagColumns {
		if !f.Has(col) {
			continue
		}
		for _, p := range lagPeriods {
			out[col+"_lag_"+strconv.Itoa(p)] = frame.Shift(f.Col(col), p)
		}
	}
	return out, nil
}

// volatilityFeatures computes rolling return volatility, its ratios and the
// Parkinson high-low estimator.
func volatilityFeatures(f *frame.Frame) (map[string][]float64, error) {
	if err := require(f, frame.High, frame.Low, frame.Close); err != nil {
		return nil, err
	}
	r := frame.PctChange(f.Col(frame.Close), 1)
	out := make(map[string][]float64)
	vol := make(map[int][]float64, len(volatilityWindows))
	for _, w := range volatilityWindows {
		vol[w] = frame.RollingStd(r, w)
		out["volatility_"+strconv.Itoa(w)] = vol[w]
	}
	for _, pair := range [][2]int{{5, 10}, {10, 20}, {5, 20}} {
		a, b := vol[pair[0]], vol[pair[1]]
		ratio := make([]float64, len(a))
		for i := range a {
			ratio[i] = a[i] / b[i]
		}
		out[fmt.Sprintf("volatility_ratio_%d_%d", pair[0], pair[1])] = ratio
	}

	h, l := f.Col(frame.High), f.Col(frame.Low)
	sq := make([]float64, len(h))
	for i := range h {
		x := math.Log(h[i] / l[i])
		sq[i] = x * x
	}
	mean := frame.SMA(sq, 20)
	hlv := make([]float64, len(h))
	for i := range mean {
		hlv[i] = math.Sqrt(mean[i] / (4 * math.Ln2))
	}
	out["hl_volatility"] = hlv
	return out, nil
}

// Targets maps the next-period return onto [0, 1]: 0.5 + r/0.01 clipped.
// The last row has no next period and is NaN.
func Targets(close []float64) []float64 {
	out := frame.NaNs(len(close))
	for i := 0; i+1 < len(close); i++ {
		r := close[i+1]/close[i] - 1
		out[i] = math.Max(0, math.Min(1, 0.5+r/0.01))
	}
	return out
}

func require(f *frame.Frame, names ...string) error {
	for _, n := range names {
		if !f.Has(n) {
			return fmt.Errorf("missing column %s", n)
		}
	}
	return nil
}
