// Package frame is a small column-oriented table of float64 series aligned
// with a timestamp index. Undefined cells are NaN.
package frame

import (
	"fmt"
	"math"
	"time"
)

// Base OHLCV column names.
const (
	Open   = "open"
	High   = "high"
	Low    = "low"
	Close  = "close"
	Volume = "volume"
)

type Frame struct {
	Index []time.Time
	order []string
	cols  map[string][]float64
}

// New returns an empty frame over the given index.
func New(index []time.Time) *Frame {
	return &Frame{Index: index, cols: make(map[string][]float64)}
}

// FromOHLCV builds a frame holding the five base columns.
func FromOHLCV(index []time.Time, open, high, low, close, volume []float64) (*Frame, error) {
	f := New(index)
	for _, c := range []struct {
		name string
		vals []float64
	}{{Open, open}, {High, high}, {Low, low}, {Close, close}, {Volume, volume}} {
		if err := f.Set(c.name, c.vals); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Frame) Len() int { return len(f.Index) }

// Columns returns column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Col returns the named series or nil. The slice is shared with the frame.
func (f *Frame) Col(name string) []float64 { return f.cols[name] }

func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Set adds or replaces a column. Replacing keeps its original position.
func (f *Frame) Set(name string, vals []float64) error {
	if len(vals) != len(f.Index) {
		return fmt.Errorf("column %s: length %d does not match index length %d", name, len(vals), len(f.Index))
	}
	if _, ok := f.cols[name]; !ok {
		f.order = append(f.order, name)
	}
	f.cols[name] = vals
	return nil
}

// Drop removes the named columns; unknown names are ignored.
func (f *Frame) Drop(names ...string) {
	for _, n := range names {
		if _, ok := f.cols[n]; !ok {
			continue
		}
		delete(f.cols, n)
		for i, o := range f.order {
			if o == n {
				f.order = append(f.order[:i], f.order[i+1:]...)
				break
			}
		}
	}
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	idx := make([]time.Time, len(f.Index))
	copy(idx, f.Index)
	out := New(idx)
	for _, n := range f.order {
		v := make([]float64, len(f.cols[n]))
		copy(v, f.cols[n])
		out.order = append(out.order, n)
		out.cols[n] = v
	}
	return out
}

// Slice returns a deep copy of rows [start, end).
func (f *Frame) Slice(start, end int) *Frame {
	if start < 0 {
		start = 0
	}
	if end > f.Len() {
		end = f.Len()
	}
	if start > end {
		start = end
	}
	idx := make([]time.Time, end-start)
	copy(idx, f.Index[start:end])
	out := New(idx)
	for _, n := range f.order {
		v := make([]float64, end-start)
		copy(v, f.cols[n][start:end])
		out.order = append(out.order, n)
		out.cols[n] = v
	}
	return out
}

// Tail returns the last n rows.
func (f *Frame) Tail(n int) *Frame { return f.Slice(f.Len()-n, f.Len()) }

// Row gathers one row over the given columns. Missing columns yield NaN.
func (f *Frame) Row(i int, cols []string) []float64 {
	out := make([]float64, len(cols))
	for j, c := range cols {
		v, ok := f.cols[c]
		if !ok {
			out[j] = math.NaN()
			continue
		}
		out[j] = v[i]
	}
	return out
}

// ReplaceInf turns +Inf and -Inf cells into NaN.
func (f *Frame) ReplaceInf() {
	for _, v := range f.cols {
		for i, x := range v {
			if math.IsInf(x, 0) {
				v[i] = math.NaN()
			}
		}
	}
}

// ForwardFill carries the last defined value of each column forward.
func (f *Frame) ForwardFill() {
	for _, v := range f.cols {
		last := math.NaN()
		for i, x := range v {
			if math.IsNaN(x) {
				v[i] = last
				continue
			}
			last = x
		}
	}
}

// DropNaNRows removes every row with at least one NaN cell.
func (f *Frame) DropNaNRows() {
	keep := make([]int, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		ok := true
		for _, n := range f.order {
			if math.IsNaN(f.cols[n][i]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	if len(keep) == f.Len() {
		return
	}

	idx := make([]time.Time, len(keep))
	for j, i := range keep {
		idx[j] = f.Index[i]
	}
	for _, n := range f.order {
		src := f.cols[n]
		dst := make([]float64, len(keep))
		for j, i := range keep {
			dst[j] = src[i]
		}
		f.cols[n] = dst
	}
	f.Index = idx
}

// HasNaN reports whether any cell is NaN or infinite.
func (f *Frame) HasNaN() bool {
	for _, v := range f.cols {
		for _, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return true
			}
		}
	}
	return false
}
