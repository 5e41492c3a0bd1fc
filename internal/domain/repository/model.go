package repository

import (
	"context"

	"FinSignal/internal/domain/models"
)

// ModelRegistry records saved artifact triads. Implementations must be safe
// to call after the artifacts themselves are already on disk.
type ModelRegistry interface {
	Record(ctx context.Context, v models.ModelVersion) error
	Remove(ctx context.Context, versionID string) error
	Recent(ctx context.Context, limit int) ([]models.ModelVersion, error)
}

// SignalPublisher fans signals out to downstream consumers.
type SignalPublisher interface {
	Publish(ctx context.Context, s models.Signal) error
	Close() error
}

// SignalCache keeps the latest signal per symbol for a short time.
type SignalCache interface {
	Get(ctx context.Context, symbol string) (*models.Signal, bool)
	Set(ctx context.Context, symbol string, s models.Signal) error
	Invalidate(ctx context.Context, symbol string) error
}

type Metrics interface {
	RecordTraining(modelType string, seconds float64, res *models.TrainingResult, err error)
	RecordPrediction(modelType string, signal models.SignalKind, confidence float64)
	RecordArtifactsRemoved(n int)
	RecordError(kind string)
}
