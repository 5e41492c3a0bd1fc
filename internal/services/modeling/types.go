// Package modeling owns sequence model creation, training, artifact
// persistence and signal derivation.
package modeling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"FinSignal/internal/domain/models"
)

var (
	ErrNoSequences   = errors.New("no sequences created from data")
	ErrModelNotFound = errors.New("model artifact not found")
	ErrNoModel       = errors.New("no model loaded")
)

type ModelType string

const (
	LSTM        ModelType = "lstm"
	GRU         ModelType = "gru"
	Transformer ModelType = "transformer"

	DefaultModelType = LSTM
)

// UnsupportedModelTypeError names a model tag outside the supported set.
type UnsupportedModelTypeError struct {
	Tag string
}

func (e *UnsupportedModelTypeError) Error() string {
	return fmt.Sprintf("unsupported model type: %q", e.Tag)
}

// ParseModelType accepts lstm, gru or transformer in any case.
func ParseModelType(tag string) (ModelType, error) {
	switch t := ModelType(strings.ToLower(strings.TrimSpace(tag))); t {
	case LSTM, GRU, Transformer:
		return t, nil
	default:
		return "", &UnsupportedModelTypeError{Tag: tag}
	}
}

// Predictor is a trainable sequence model mapping one window to a
// probability in [0, 1].
type Predictor interface {
	Type() ModelType
	Train(ctx context.Context, x [][][]float64, y []float64, xVal [][][]float64, yVal []float64) (*models.TrainingResult, error)
	PredictSingle(window [][]float64) (float64, error)
	Save(w io.Writer) error
	Load(r io.Reader) error
	Summary() string
}

// TrainConfig controls gradient descent on the model head.
type TrainConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Patience     int
	Seed         int64
}

// NewPredictor builds an untrained model of the given type.
func NewPredictor(t ModelType, cfg TrainConfig) (Predictor, error) {
	switch t {
	case LSTM:
		return newSequenceClassifier(t, recurrentPool(0.9), cfg), nil
	case GRU:
		return newSequenceClassifier(t, recurrentPool(0.7), cfg), nil
	case Transformer:
		return newSequenceClassifier(t, attentionPool, cfg), nil
	default:
		return nil, &UnsupportedModelTypeError{Tag: string(t)}
	}
}
