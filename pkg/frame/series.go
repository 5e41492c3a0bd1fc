package frame

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// NaNs returns a series of n NaN values.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA is the simple moving average. A window containing NaN yields NaN.
func SMA(x []float64, period int) []float64 {
	out := NaNs(len(x))
	if period <= 0 {
		return out
	}
	sum, nans := 0.0, 0
	for i, v := range x {
		if math.IsNaN(v) {
			nans++
		} else {
			sum += v
		}
		if i >= period {
			old := x[i-period]
			if math.IsNaN(old) {
				nans--
			} else {
				sum -= old
			}
		}
		if i >= period-1 && nans == 0 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA is an exponential moving average seeded with the SMA of the first
// period defined values. Leading NaNs are skipped; later NaNs pass through.
func EMA(x []float64, period int) []float64 {
	out := NaNs(len(x))
	if period <= 0 {
		return out
	}
	start := 0
	for start < len(x) && math.IsNaN(x[start]) {
		start++
	}
	seedAt := start + period - 1
	if seedAt >= len(x) {
		return out
	}

	sum := 0.0
	for i := start; i <= seedAt; i++ {
		if math.IsNaN(x[i]) {
			return out
		}
		sum += x[i]
	}
	prev := sum / float64(period)
	out[seedAt] = prev

	k := 2.0 / float64(period+1)
	for i := seedAt + 1; i < len(x); i++ {
		if math.IsNaN(x[i]) {
			continue
		}
		prev = x[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

// WilderSmooth seeds with the mean of the first period values starting at
// offset and continues with avg = (prev*(p-1) + v) / p.
func WilderSmooth(x []float64, period, offset int) []float64 {
	out := NaNs(len(x))
	seedAt := offset + period - 1
	if period <= 0 || offset < 0 || seedAt >= len(x) {
		return out
	}
	sum := 0.0
	for i := offset; i <= seedAt; i++ {
		sum += x[i]
	}
	prev := sum / float64(period)
	out[seedAt] = prev
	p := float64(period)
	for i := seedAt + 1; i < len(x); i++ {
		prev = (prev*(p-1) + x[i]) / p
		out[i] = prev
	}
	return out
}

// RollingStd is the sample standard deviation (n-1) over a trailing window.
func RollingStd(x []float64, period int) []float64 {
	out := NaNs(len(x))
	if period < 2 {
		return out
	}
	for i := period - 1; i < len(x); i++ {
		w := x[i-period+1 : i+1]
		if !defined(w) {
			continue
		}
		out[i] = stat.StdDev(w, nil)
	}
	return out
}

// RollingMax is the maximum over a trailing window.
func RollingMax(x []float64, period int) []float64 {
	return rollingExtreme(x, period, func(a, b float64) bool { return a > b })
}

// RollingMin is the minimum over a trailing window.
func RollingMin(x []float64, period int) []float64 {
	return rollingExtreme(x, period, func(a, b float64) bool { return a < b })
}

func rollingExtreme(x []float64, period int, better func(a, b float64) bool) []float64 {
	out := NaNs(len(x))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(x); i++ {
		best := x[i-period+1]
		ok := !math.IsNaN(best)
		for _, v := range x[i-period+2 : i+1] {
			if math.IsNaN(v) {
				ok = false
				break
			}
			if better(v, best) {
				best = v
			}
		}
		if ok {
			out[i] = best
		}
	}
	return out
}

// Shift moves values n rows later (n > 0) or earlier (n < 0).
func Shift(x []float64, n int) []float64 {
	out := NaNs(len(x))
	for i := range x {
		j := i - n
		if j >= 0 && j < len(x) {
			out[i] = x[j]
		}
	}
	return out
}

// Diff is x[i] - x[i-n].
func Diff(x []float64, n int) []float64 {
	out := NaNs(len(x))
	for i := n; i < len(x); i++ {
		out[i] = x[i] - x[i-n]
	}
	return out
}

// PctChange is x[i]/x[i-n] - 1. A zero base yields Inf, left for cleaning.
func PctChange(x []float64, n int) []float64 {
	out := NaNs(len(x))
	for i := n; i < len(x); i++ {
		out[i] = x[i]/x[i-n] - 1
	}
	return out
}

// Pearson is the correlation of x and y over rows where both are defined.
// Returns NaN when either side has no variance.
func Pearson(x, y []float64) float64 {
	n := min(len(x), len(y))
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 || stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}

func defined(w []float64) bool {
	for _, v := range w {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}
