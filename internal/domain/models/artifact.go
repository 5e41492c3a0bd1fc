package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// VersionLayout is the timestamp key shared by one artifact triad.
const VersionLayout = "20060102_150405"

const (
	modelInfix       = "_model_"
	modelExt         = ".bin"
	builderPrefix    = "feature_engineer_"
	builderExt       = ".json"
	metadataPrefix   = "metadata_"
	metadataExt      = ".json"
	ModelFileGlob    = "*" + modelInfix + "*" + modelExt
	MetadataFileGlob = metadataPrefix + "*" + metadataExt
)

// ArtifactVersion names the three files saved together under one key.
type ArtifactVersion struct {
	VersionID          string
	ModelType          string
	ModelPath          string
	FeatureBuilderPath string
	MetadataPath       string
}

// NewArtifactVersion lays out the triad for a timestamp inside dir.
func NewArtifactVersion(dir, modelType string, ts time.Time) ArtifactVersion {
	id := ts.Format(VersionLayout)
	return ArtifactVersion{
		VersionID:          id,
		ModelType:          modelType,
		ModelPath:          filepath.Join(dir, modelType+modelInfix+id+modelExt),
		FeatureBuilderPath: filepath.Join(dir, builderPrefix+id+builderExt),
		MetadataPath:       filepath.Join(dir, metadataPrefix+id+metadataExt),
	}
}

// ParseModelPath recovers the triad from a model binary path.
func ParseModelPath(path string) (ArtifactVersion, error) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, modelExt) {
		return ArtifactVersion{}, fmt.Errorf("not a model artifact: %s", base)
	}
	stem := strings.TrimSuffix(base, modelExt)
	i := strings.LastIndex(stem, modelInfix)
	if i <= 0 {
		return ArtifactVersion{}, fmt.Errorf("not a model artifact: %s", base)
	}
	modelType, id := stem[:i], stem[i+len(modelInfix):]
	ts, err := time.Parse(VersionLayout, id)
	if err != nil {
		return ArtifactVersion{}, fmt.Errorf("bad version key in %s: %w", base, err)
	}
	return NewArtifactVersion(filepath.Dir(path), modelType, ts), nil
}

// Time returns the timestamp encoded in the version id.
func (v ArtifactVersion) Time() (time.Time, error) {
	return time.Parse(VersionLayout, v.VersionID)
}

// EpochMetrics is one row of training history.
type EpochMetrics struct {
	Epoch       int     `json:"epoch"`
	Loss        float64 `json:"loss"`
	ValLoss     float64 `json:"val_loss"`
	Accuracy    float64 `json:"accuracy"`
	ValAccuracy float64 `json:"val_accuracy"`
}

type TrainingResult struct {
	Epochs      int            `json:"epochs"`
	Loss        float64        `json:"loss"`
	ValLoss     float64        `json:"val_loss"`
	Accuracy    float64        `json:"accuracy"`
	ValAccuracy float64        `json:"val_accuracy"`
	History     []EpochMetrics `json:"history,omitempty"`
}

// Metadata is persisted alongside every saved model.
type Metadata struct {
	RunID              string          `json:"run_id,omitempty"`
	ModelType          string          `json:"model_type"`
	VersionID          string          `json:"version_id,omitempty"`
	TrainedAt          string          `json:"trained_at,omitempty"`
	SequenceLength     int             `json:"sequence_length"`
	FeatureCount       int             `json:"feature_count"`
	TrainingSamples    int             `json:"training_samples"`
	ValidationSamples  int             `json:"validation_samples"`
	TrainingResults    *TrainingResult `json:"training_results,omitempty"`
	ModelPath          string          `json:"model_path,omitempty"`
	FeatureBuilderPath string          `json:"feature_engineer_path,omitempty"`
}

// ModelVersion is a registry row describing one saved triad.
type ModelVersion struct {
	VersionID  string    `json:"version_id"`
	RunID      string    `json:"run_id"`
	ModelType  string    `json:"model_type"`
	ModelPath  string    `json:"model_path"`
	TrainedAt  time.Time `json:"trained_at"`
	ValLoss    float64   `json:"val_loss"`
	ValAcc     float64   `json:"val_accuracy"`
	Samples    int       `json:"samples"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ModelInfo summarizes the lifecycle manager state.
type ModelInfo struct {
	Status         string         `json:"status"`
	ModelType      string         `json:"model_type"`
	ModelDir       string         `json:"model_dir"`
	SequenceLength int            `json:"sequence_length"`
	FeatureCount   int            `json:"feature_count"`
	Summary        string         `json:"summary,omitempty"`
	Metadata       *Metadata      `json:"metadata,omitempty"`
	Versions       []ModelVersion `json:"versions,omitempty"`
}
