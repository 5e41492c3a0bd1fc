package features

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

var ErrEmptyInput = errors.New("empty input")

// Scaler standardizes each feature with its mean and population std.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler fits over every timestep of every window.
func FitScaler(seqs [][][]float64) (*Scaler, error) {
	if len(seqs) == 0 || len(seqs[0]) == 0 {
		return nil, ErrEmptyInput
	}
	dim := len(seqs[0][0])
	cols := make([][]float64, dim)
	for _, w := range seqs {
		for _, row := range w {
			if len(row) != dim {
				return nil, fmt.Errorf("row width %d, want %d", len(row), dim)
			}
			for j, v := range row {
				cols[j] = append(cols[j], v)
			}
		}
	}

	s := &Scaler{Mean: make([]float64, dim), Scale: make([]float64, dim)}
	for j, col := range cols {
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.Mean[j], s.Scale[j] = mean, std
	}
	return s, nil
}

// Dim is the number of features the scaler was fitted on.
func (s *Scaler) Dim() int { return len(s.Mean) }

// TransformRows returns standardized copies of rows.
func (s *Scaler) TransformRows(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != s.Dim() {
			return nil, fmt.Errorf("row width %d, scaler expects %d", len(row), s.Dim())
		}
		r := make([]float64, len(row))
		for j, v := range row {
			r[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = r
	}
	return out, nil
}

// Transform standardizes every window.
func (s *Scaler) Transform(seqs [][][]float64) ([][][]float64, error) {
	out := make([][][]float64, len(seqs))
	for i, w := range seqs {
		t, err := s.TransformRows(w)
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// InverseRows undoes TransformRows.
func (s *Scaler) InverseRows(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != s.Dim() {
			return nil, fmt.Errorf("row width %d, scaler expects %d", len(row), s.Dim())
		}
		r := make([]float64, len(row))
		for j, v := range row {
			r[j] = v*s.Scale[j] + s.Mean[j]
		}
		out[i] = r
	}
	return out, nil
}
