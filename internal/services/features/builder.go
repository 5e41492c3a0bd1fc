// Package features turns candles into cleaned feature tables, model input
// windows and training targets.
package features

import (
	"fmt"
	"math"
	"sort"

	"FinSignal/internal/services/indicators"
	"FinSignal/pkg/frame"
	"FinSignal/pkg/logger"
)

const (
	TargetColumn = "target"
	SignalColumn = "signal"

	// StateVersion is bumped when the serialized builder layout changes.
	StateVersion = 1
)

var nonFeatureColumns = map[string]bool{TargetColumn: true, SignalColumn: true}

// State is the serialized form of a fitted builder.
type State struct {
	Version        int      `json:"version"`
	SequenceLength int      `json:"sequence_length"`
	FeatureColumns []string `json:"feature_columns"`
	Scaler         *Scaler  `json:"scaler,omitempty"`
}

// Builder holds the feature list and scaler fitted during training so the
// same transformation is replayed at inference.
type Builder struct {
	engine         *indicators.Engine
	log            *logger.Logger
	seqLen         int
	featureColumns []string
	scaler         *Scaler
}

func NewBuilder(engine *indicators.Engine, seqLen int, log *logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{engine: engine, log: log, seqLen: seqLen}
}

func (b *Builder) SequenceLength() int { return b.seqLen }

// FeatureColumns returns the ordered feature list fixed by CreateSequences.
func (b *Builder) FeatureColumns() []string {
	out := make([]string, len(b.featureColumns))
	copy(out, b.featureColumns)
	return out
}

func (b *Builder) HasScaler() bool { return b.scaler != nil }

type featureStep struct {
	name string
	run  func(f *frame.Frame) (map[string][]float64, error)
}

// PrepareFeatures adds indicators and engineered columns, then drops every
// row that still has an undefined cell. The input is not modified.
func (b *Builder) PrepareFeatures(f *frame.Frame) *frame.Frame {
	out := b.engine.CalculateAll(f)
	for _, s := range []featureStep{
		{"price", priceFeatures},
		{"calendar", calendarFeatures},
		{"lags", lagFeatures},
		{"volatility", volatilityFeatures},
	} {
		b.apply(out, s)
	}

	before := out.Len()
	out.ReplaceInf()
	out.ForwardFill()
	out.DropNaNRows()
	b.log.Debug("features prepared",
		logger.Int("rows_in", before),
		logger.Int("rows_out", out.Len()),
		logger.Int("columns", len(out.Columns())),
	)
	return out
}

func (b *Builder) apply(f *frame.Frame, s featureStep) {
	cols, err := safeRun(s, f)
	if err != nil {
		b.log.Warn("feature step skipped", logger.String("step", s.name), logger.Error(err))
		return
	}
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := f.Set(name, cols[name]); err != nil {
			b.log.Warn("feature column dropped", logger.String("step", s.name), logger.Error(err))
		}
	}
}

func safeRun(s featureStep, f *frame.Frame) (cols map[string][]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.run(f)
}

// CreateSequences fixes the feature list and slides seqLen-row windows over
// the prepared frame. Window [i-seqLen, i) is paired with the target of its
// last row, which needs close[i]. Yields max(0, len-seqLen) pairs.
func (b *Builder) CreateSequences(f *frame.Frame, seqLen int) ([][][]float64, []float64) {
	if seqLen <= 0 {
		seqLen = b.seqLen
	}
	b.featureColumns = featureColumnsOf(f)

	if !f.Has(frame.Close) || f.Len() <= seqLen {
		return [][][]float64{}, []float64{}
	}
	targets := Targets(f.Col(frame.Close))

	rows := make([][]float64, f.Len())
	for i := range rows {
		rows[i] = f.Row(i, b.featureColumns)
	}

	n := f.Len() - seqLen
	seqs := make([][][]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := seqLen; i < f.Len(); i++ {
		y := targets[i-1]
		if math.IsNaN(y) {
			continue
		}
		seqs = append(seqs, rows[i-seqLen:i])
		ys = append(ys, y)
	}
	return seqs, ys
}

// ScaleFeatures standardizes windows. fit refits the scaler; without a
// fitted scaler it fits regardless. On failure the input is returned.
func (b *Builder) ScaleFeatures(seqs [][][]float64, fit bool) [][][]float64 {
	if len(seqs) == 0 {
		return seqs
	}
	if fit || b.scaler == nil {
		if !fit {
			b.log.Warn("no fitted scaler, fitting on inference input")
		}
		s, err := FitScaler(seqs)
		if err != nil {
			b.log.Error("scaler fit failed", logger.Error(err))
			return seqs
		}
		b.scaler = s
	}
	out, err := b.scaler.Transform(seqs)
	if err != nil {
		b.log.Error("scaling failed", logger.Error(err))
		return seqs
	}
	return out
}

// PrepareForInference returns the last seqLen prepared rows over the fixed
// feature list, scaled when a scaler is present. It never panics; any
// failure yields (nil, false).
func (b *Builder) PrepareForInference(f *frame.Frame) (rows [][]float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("inference preparation failed", logger.Any("panic", r))
			rows, ok = nil, false
		}
	}()

	prepared := b.PrepareFeatures(f)
	if prepared.Len() < b.seqLen {
		b.log.Warn("not enough rows for inference",
			logger.Int("rows", prepared.Len()),
			logger.Int("sequence_length", b.seqLen),
		)
		return nil, false
	}

	cols := b.featureColumns
	if len(cols) == 0 {
		cols = featureColumnsOf(prepared)
	}
	for _, c := range cols {
		if !prepared.Has(c) {
			b.log.Warn("feature column missing at inference", logger.String("column", c))
			return nil, false
		}
	}

	start := prepared.Len() - b.seqLen
	rows = make([][]float64, b.seqLen)
	for i := range rows {
		rows[i] = prepared.Row(start+i, cols)
	}
	if b.scaler == nil {
		return rows, true
	}
	scaled, err := b.scaler.TransformRows(rows)
	if err != nil {
		b.log.Error("inference scaling failed", logger.Error(err))
		return nil, false
	}
	return scaled, true
}

// FeatureImportance scores each prepared feature by the absolute Pearson
// correlation with the target.
func (b *Builder) FeatureImportance(f *frame.Frame) map[string]float64 {
	out := make(map[string]float64)
	prepared := b.PrepareFeatures(f)
	if !prepared.Has(frame.Close) || prepared.Len() < 3 {
		return out
	}
	target := Targets(prepared.Col(frame.Close))
	for _, c := range featureColumnsOf(prepared) {
		r := frame.Pearson(prepared.Col(c), target)
		if math.IsNaN(r) {
			r = 0
		}
		out[c] = math.Abs(r)
	}
	return out
}

func (b *Builder) State() State {
	return State{
		Version:        StateVersion,
		SequenceLength: b.seqLen,
		FeatureColumns: b.FeatureColumns(),
		Scaler:         b.scaler,
	}
}

// Restore replaces the builder state with a previously saved one.
func (b *Builder) Restore(s State) error {
	if s.Version != StateVersion {
		return fmt.Errorf("unsupported feature builder version %d", s.Version)
	}
	if s.Scaler != nil && s.Scaler.Dim() != len(s.FeatureColumns) {
		return fmt.Errorf("scaler width %d does not match %d feature columns", s.Scaler.Dim(), len(s.FeatureColumns))
	}
	if s.SequenceLength > 0 {
		b.seqLen = s.SequenceLength
	}
	b.featureColumns = append([]string(nil), s.FeatureColumns...)
	b.scaler = s.Scaler
	return nil
}

func featureColumnsOf(f *frame.Frame) []string {
	cols := f.Columns()
	out := cols[:0]
	for _, c := range cols {
		if !nonFeatureColumns[c] {
			out = append(out, c)
		}
	}
	return out
}
