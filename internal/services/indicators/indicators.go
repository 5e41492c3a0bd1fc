package indicators

import (
	"math"

	"FinSignal/pkg/frame"
)

// RSI is the Wilder-smoothed relative strength index in [0, 100].
// The first value appears at index period.
func RSI(close []float64, period int) []float64 {
	n := len(close)
	gains, losses := make([]float64, n), make([]float64, n)
	for i := 1; i < n; i++ {
		d := close[i] - close[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	avgGain := frame.WilderSmooth(gains, period, 1)
	avgLoss := frame.WilderSmooth(losses, period, 1)

	out := frame.NaNs(n)
	for i := range out {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
		case l == 0 && g == 0:
			out[i] = 50
		case l == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}

// MACD returns the macd line, its signal line and their difference.
func MACD(close []float64, fast, slow, signal int) (line, sig, hist []float64) {
	ef, es := frame.EMA(close, fast), frame.EMA(close, slow)
	line = make([]float64, len(close))
	for i := range line {
		line[i] = ef[i] - es[i]
	}
	sig = frame.EMA(line, signal)
	hist = make([]float64, len(close))
	for i := range hist {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// Bands holds Bollinger band series.
type Bands struct {
	Middle, Upper, Lower, Width, Position []float64
}

// Bollinger computes bands of k sample deviations around an SMA.
func Bollinger(close []float64, period int, k float64) Bands {
	mid := frame.SMA(close, period)
	std := frame.RollingStd(close, period)
	n := len(close)
	b := Bands{Middle: mid, Upper: frame.NaNs(n), Lower: frame.NaNs(n), Width: frame.NaNs(n), Position: frame.NaNs(n)}
	for i := range close {
		if math.IsNaN(mid[i]) || math.IsNaN(std[i]) {
			continue
		}
		b.Upper[i] = mid[i] + k*std[i]
		b.Lower[i] = mid[i] - k*std[i]
		b.Width[i] = (b.Upper[i] - b.Lower[i]) / mid[i]
		if span := b.Upper[i] - b.Lower[i]; span > 0 {
			b.Position[i] = (close[i] - b.Lower[i]) / span
		} else {
			b.Position[i] = 0.5
		}
	}
	return b
}

// VWAP is the cumulative volume-weighted typical price.
func VWAP(high, low, close, volume []float64) []float64 {
	out := frame.NaNs(len(close))
	var pv, vol float64
	for i := range close {
		tp := (high[i] + low[i] + close[i]) / 3
		pv += tp * volume[i]
		vol += volume[i]
		if vol > 0 {
			out[i] = pv / vol
		}
	}
	return out
}

// OBV is on-balance volume starting at zero.
func OBV(close, volume []float64) []float64 {
	out := make([]float64, len(close))
	for i := 1; i < len(close); i++ {
		switch {
		case close[i] > close[i-1]:
			out[i] = out[i-1] + volume[i]
		case close[i] < close[i-1]:
			out[i] = out[i-1] - volume[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// ROC is the percent rate of change over period rows.
func ROC(x []float64, period int) []float64 {
	out := frame.PctChange(x, period)
	for i := range out {
		out[i] *= 100
	}
	return out
}

// Stochastic returns %K and its SMA %D, both in [0, 100]. A flat range gives 50.
func Stochastic(high, low, close []float64, kPeriod, dPeriod int) (k, d []float64) {
	hh, ll := frame.RollingMax(high, kPeriod), frame.RollingMin(low, kPeriod)
	k = frame.NaNs(len(close))
	for i := range close {
		if math.IsNaN(hh[i]) || math.IsNaN(ll[i]) {
			continue
		}
		if span := hh[i] - ll[i]; span > 0 {
			k[i] = math.Max(0, math.Min(100, 100*(close[i]-ll[i])/span))
		} else {
			k[i] = 50
		}
	}
	return k, frame.SMA(k, dPeriod)
}

// ATR is the Wilder-smoothed average true range.
func ATR(high, low, close []float64, period int) []float64 {
	n := len(close)
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		tr[i] = high[i] - low[i]
		if i > 0 {
			tr[i] = math.Max(tr[i], math.Max(math.Abs(high[i]-close[i-1]), math.Abs(low[i]-close[i-1])))
		}
	}
	return frame.WilderSmooth(tr, period, 1)
}

// Patterns holds 0/1 price action flags.
type Patterns struct {
	LocalHigh, LocalLow, BreakoutUp, BreakoutDown, Doji, Hammer []float64
}

// PriceAction flags swing extremes and candle shapes using trailing windows only.
func PriceAction(open, high, low, close []float64, window, breakout int) Patterns {
	n := len(close)
	p := Patterns{
		LocalHigh: frame.NaNs(n), LocalLow: frame.NaNs(n),
		BreakoutUp: frame.NaNs(n), BreakoutDown: frame.NaNs(n),
		Doji: make([]float64, n), Hammer: make([]float64, n),
	}

	hh, ll := frame.RollingMax(high, window), frame.RollingMin(low, window)
	for i := range close {
		if !math.IsNaN(hh[i]) {
			p.LocalHigh[i] = flag(high[i] >= hh[i])
			p.LocalLow[i] = flag(low[i] <= ll[i])
		}
	}

	prevHigh := frame.Shift(frame.RollingMax(high, breakout), 1)
	prevLow := frame.Shift(frame.RollingMin(low, breakout), 1)
	for i := range close {
		if !math.IsNaN(prevHigh[i]) {
			p.BreakoutUp[i] = flag(close[i] > prevHigh[i])
			p.BreakoutDown[i] = flag(close[i] < prevLow[i])
		}
	}

	for i := range close {
		rng := high[i] - low[i]
		body := math.Abs(close[i] - open[i])
		p.Doji[i] = flag(rng == 0 || body <= 0.1*rng)
		lower := math.Min(open[i], close[i]) - low[i]
		upper := high[i] - math.Max(open[i], close[i])
		p.Hammer[i] = flag(rng > 0 && lower >= 2*body && upper <= body && lower > 0)
	}
	return p
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
