package service

import (
	"context"

	"FinSignal/internal/domain/models"
	"FinSignal/pkg/frame"
)

// SignalModel is the lifecycle surface the application layer drives:
// training, inference and artifact housekeeping over candle frames.
type SignalModel interface {
	TrainModel(ctx context.Context, f *frame.Frame, retrain bool) (*models.TrainingResult, error)
	Predict(f *frame.Frame) models.Signal
	LoadModel(path string) error
	CleanupOldModels(ctx context.Context, keep int) int
	ShouldRetrain() bool
	ModelInfo(ctx context.Context) models.ModelInfo
	FeatureImportance(f *frame.Frame) map[string]float64
}
