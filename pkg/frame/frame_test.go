package frame

import (
	"math"
	"testing"
	"time"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

func index(n int) []time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.Add(time.Duration(i) * time.Minute)
	}
	return out
}

func TestSetRejectsLengthMismatch(t *testing.T) {
	f := New(index(3))
	if err := f.Set("a", []float64{1, 2}); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestColumnOrderStable(t *testing.T) {
	f := New(index(2))
	_ = f.Set("b", []float64{1, 2})
	_ = f.Set("a", []float64{3, 4})
	_ = f.Set("b", []float64{5, 6})
	cols := f.Columns()
	if len(cols) != 2 || cols[0] != "b" || cols[1] != "a" {
		t.Fatalf("unexpected order %v", cols)
	}
	f.Drop("b", "missing")
	if cols := f.Columns(); len(cols) != 1 || cols[0] != "a" {
		t.Fatalf("unexpected order after drop %v", cols)
	}
}

func TestCleanPipeline(t *testing.T) {
	nan := math.NaN()
	f := New(index(5))
	_ = f.Set("a", []float64{nan, 1, math.Inf(1), 3, 4})
	_ = f.Set("b", []float64{nan, nan, 2, nan, 5})

	f.ReplaceInf()
	f.ForwardFill()
	f.DropNaNRows()

	if f.Len() != 3 {
		t.Fatalf("len = %d, want 3", f.Len())
	}
	want := map[string][]float64{"a": {1, 3, 4}, "b": {2, 2, 5}}
	for name, vals := range want {
		for i, v := range vals {
			assertClose(t, name, f.Col(name)[i], v, 0)
		}
	}
	if !f.Index[0].Equal(index(5)[2]) {
		t.Fatalf("index not realigned: %v", f.Index[0])
	}
	if f.HasNaN() {
		t.Fatalf("cleaned frame still has NaN")
	}
}

func TestSliceIsCopy(t *testing.T) {
	f := New(index(4))
	_ = f.Set("a", []float64{1, 2, 3, 4})
	s := f.Tail(2)
	s.Col("a")[0] = 99
	if f.Col("a")[2] != 3 {
		t.Fatalf("slice shares storage with parent")
	}
	if s.Len() != 2 || s.Col("a")[1] != 4 {
		t.Fatalf("unexpected tail %v", s.Col("a"))
	}
}

func TestSMA(t *testing.T) {
	got := SMA([]float64{100, 102, 104, 103, 105}, 3)
	if !math.IsNaN(got[1]) {
		t.Fatalf("expected warm-up NaN")
	}
	for i, want := range []float64{102, 103, 104} {
		assertClose(t, "SMA(3)", got[i+2], want, 1e-9)
	}
}

func TestEMASeededWithSMA(t *testing.T) {
	nan := math.NaN()
	got := EMA([]float64{nan, 2, 4, 6, 8}, 3)
	if !math.IsNaN(got[2]) {
		t.Fatalf("expected NaN before seed")
	}
	assertClose(t, "seed", got[3], 4, 1e-9)
	assertClose(t, "next", got[4], 8*0.5+4*0.5, 1e-9)
}

func TestRollingStdSample(t *testing.T) {
	got := RollingStd([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	assertClose(t, "std", got[7], math.Sqrt(32.0/7.0), 1e-9)
}

func TestRollingExtremes(t *testing.T) {
	x := []float64{3, 1, 4, 1, 5}
	mx, mn := RollingMax(x, 3), RollingMin(x, 3)
	assertClose(t, "max", mx[4], 5, 0)
	assertClose(t, "min", mn[4], 1, 0)
	assertClose(t, "max", mx[2], 4, 0)
}

func TestShiftAndPctChange(t *testing.T) {
	x := []float64{1, 2, 4}
	s := Shift(x, 1)
	if !math.IsNaN(s[0]) || s[2] != 2 {
		t.Fatalf("shift = %v", s)
	}
	p := PctChange(x, 1)
	assertClose(t, "pct", p[2], 1, 1e-12)
	if !math.IsInf(PctChange([]float64{0, 1}, 1)[1], 1) {
		t.Fatalf("zero base should yield Inf")
	}
}

func TestPearson(t *testing.T) {
	assertClose(t, "perfect", Pearson([]float64{1, 2, 3}, []float64{2, 4, 6}), 1, 1e-12)
	assertClose(t, "inverse", Pearson([]float64{1, 2, 3}, []float64{3, 2, 1}), -1, 1e-12)
	if !math.IsNaN(Pearson([]float64{1, 1, 1}, []float64{1, 2, 3})) {
		t.Fatalf("constant series should yield NaN")
	}
}
