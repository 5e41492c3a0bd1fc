package modeling

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/domain/repository"
	"FinSignal/internal/services/features"
	"FinSignal/pkg/config"
	"FinSignal/pkg/frame"
	"FinSignal/pkg/logger"

	"github.com/google/uuid"
)

const (
	statusLoaded    = "loaded"
	statusNotLoaded = "not_loaded"
	recentVersions  = 10
)

// Manager owns the current model, its feature builder and the artifact
// directory. It does no locking of its own; callers serialize access.
type Manager struct {
	cfg     config.ModelConfig
	signal  config.SignalConfig
	builder *features.Builder
	log     *logger.Logger

	metrics  repository.Metrics
	registry repository.ModelRegistry
	now      func() time.Time

	model     Predictor
	modelType ModelType
	metadata  *models.Metadata
	version   *models.ArtifactVersion
}

type Option func(*Manager)

func WithMetrics(m repository.Metrics) Option { return func(mg *Manager) { mg.metrics = m } }

func WithRegistry(r repository.ModelRegistry) Option {
	return func(mg *Manager) { mg.registry = r }
}

// WithClock overrides the time source used for version keys and ages.
func WithClock(now func() time.Time) Option { return func(mg *Manager) { mg.now = now } }

func NewManager(cfg config.ModelConfig, signal config.SignalConfig, builder *features.Builder, log *logger.Logger, opts ...Option) (*Manager, error) {
	t, err := ParseModelType(cfg.Type)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	m := &Manager{
		cfg:       cfg,
		signal:    signal,
		builder:   builder,
		log:       log.With(logger.String("component", "model_manager")),
		now:       time.Now,
		modelType: t,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

func (m *Manager) trainConfig() TrainConfig {
	return TrainConfig{
		Epochs:       m.cfg.Epochs,
		BatchSize:    m.cfg.BatchSize,
		LearningRate: m.cfg.LearningRate,
		Patience:     m.cfg.Patience,
		Seed:         m.cfg.Seed,
	}
}

// CreateModel replaces the current model with an untrained one.
func (m *Manager) CreateModel(modelType string) error {
	t, err := ParseModelType(modelType)
	if err != nil {
		return err
	}
	p, err := NewPredictor(t, m.trainConfig())
	if err != nil {
		return err
	}
	m.model, m.modelType = p, t
	m.log.Info("model created", logger.String("model_type", string(t)))
	return nil
}

// TrainModel prepares features, trains on the chronological head and
// validates on the most recent tail, then saves a new artifact triad.
func (m *Manager) TrainModel(ctx context.Context, f *frame.Frame, retrain bool) (*models.TrainingResult, error) {
	start := m.now()
	res, err := m.train(ctx, f, retrain)
	if m.metrics != nil {
		m.metrics.RecordTraining(string(m.modelType), m.now().Sub(start).Seconds(), res, err)
	}
	return res, err
}

func (m *Manager) train(ctx context.Context, f *frame.Frame, retrain bool) (*models.TrainingResult, error) {
	prepared := m.builder.PrepareFeatures(f)
	seqs, ys := m.builder.CreateSequences(prepared, m.cfg.SequenceLength)
	if len(seqs) == 0 {
		m.log.Error("training aborted", logger.Int("rows", prepared.Len()), logger.Error(ErrNoSequences))
		return nil, ErrNoSequences
	}
	seqs = m.builder.ScaleFeatures(seqs, true)

	n := len(seqs)
	split := int(float64(n) * (1 - m.cfg.ValidationSplit))
	if split < 1 {
		split = 1
	}
	xTrain, yTrain := seqs[:split], ys[:split]
	xVal, yVal := seqs[split:], ys[split:]

	if m.model == nil || retrain {
		if err := m.CreateModel(string(m.modelType)); err != nil {
			return nil, err
		}
	}

	m.log.Info("training started",
		logger.String("model_type", string(m.modelType)),
		logger.Int("train_samples", len(xTrain)),
		logger.Int("validation_samples", len(xVal)),
		logger.Int("features", len(m.builder.FeatureColumns())),
		logger.Bool("retrain", retrain),
	)
	res, err := m.model.Train(ctx, xTrain, yTrain, xVal, yVal)
	if err != nil {
		m.log.Error("training failed", logger.Error(err))
		return nil, fmt.Errorf("train model: %w", err)
	}

	m.metadata = &models.Metadata{
		RunID:             uuid.NewString(),
		ModelType:         string(m.modelType),
		TrainedAt:         m.now().UTC().Format(time.RFC3339),
		SequenceLength:    m.cfg.SequenceLength,
		FeatureCount:      len(m.builder.FeatureColumns()),
		TrainingSamples:   len(xTrain),
		ValidationSamples: len(xVal),
		TrainingResults:   res,
	}

	if _, err := m.SaveModel(ctx); err != nil {
		return res, fmt.Errorf("save model: %w", err)
	}
	m.log.Info("training finished",
		logger.Int("epochs", res.Epochs),
		logger.Float64("val_loss", res.ValLoss),
		logger.Float64("val_accuracy", res.ValAccuracy),
	)
	return res, nil
}

// Predict never fails; degraded results are neutral with Error set.
func (m *Manager) Predict(f *frame.Frame) (sig models.Signal) {
	sig = models.Signal{
		Signal:      models.SignalNeutral,
		Probability: 0.5,
		Timestamp:   m.now().UTC(),
		ModelType:   string(m.modelType),
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("prediction panicked", logger.Any("panic", r))
			sig.Signal, sig.Confidence, sig.Probability = models.SignalNeutral, 0, 0.5
			sig.Error = fmt.Sprintf("prediction failed: %v", r)
		}
	}()

	if m.model == nil {
		sig.Error = ErrNoModel.Error()
		return sig
	}
	rows, ok := m.builder.PrepareForInference(f)
	if !ok {
		sig.Error = "insufficient data for prediction"
		return sig
	}
	p, err := m.model.PredictSingle(rows)
	if err != nil {
		m.log.Error("prediction failed", logger.Error(err))
		sig.Error = err.Error()
		return sig
	}

	sig.Probability = p
	sig.Signal, sig.Confidence = DetermineSignal(p, m.signal.LongThreshold, m.signal.ShortThreshold)
	if m.metrics != nil {
		m.metrics.RecordPrediction(string(m.modelType), sig.Signal, sig.Confidence)
	}
	return sig
}

// SaveModel writes the model, builder state and metadata under one fresh
// version key. A key already on disk is bumped by a second.
func (m *Manager) SaveModel(ctx context.Context) (models.ArtifactVersion, error) {
	if m.model == nil {
		return models.ArtifactVersion{}, ErrNoModel
	}
	ts := m.now().UTC().Truncate(time.Second)
	v := models.NewArtifactVersion(m.cfg.Dir, string(m.modelType), ts)
	for exists(v.ModelPath) || exists(v.FeatureBuilderPath) || exists(v.MetadataPath) {
		ts = ts.Add(time.Second)
		v = models.NewArtifactVersion(m.cfg.Dir, string(m.modelType), ts)
	}

	meta := models.Metadata{
		ModelType:      string(m.modelType),
		SequenceLength: m.builder.SequenceLength(),
		FeatureCount:   len(m.builder.FeatureColumns()),
	}
	if m.metadata != nil {
		meta = *m.metadata
	}
	meta.VersionID = v.VersionID
	meta.ModelPath = v.ModelPath
	meta.FeatureBuilderPath = v.FeatureBuilderPath

	if err := writeModel(v.ModelPath, m.model); err != nil {
		return v, err
	}
	if err := writeJSON(v.FeatureBuilderPath, m.builder.State()); err != nil {
		return v, fmt.Errorf("save feature builder: %w", err)
	}
	if err := writeJSON(v.MetadataPath, meta); err != nil {
		return v, fmt.Errorf("save metadata: %w", err)
	}
	m.metadata, m.version = &meta, &v

	m.log.Info("model saved",
		logger.String("version", v.VersionID),
		logger.String("model_path", v.ModelPath),
	)
	m.record(ctx, v, meta)
	return v, nil
}

func (m *Manager) record(ctx context.Context, v models.ArtifactVersion, meta models.Metadata) {
	if m.registry == nil {
		return
	}
	mv := models.ModelVersion{
		VersionID:  v.VersionID,
		RunID:      meta.RunID,
		ModelType:  v.ModelType,
		ModelPath:  v.ModelPath,
		Samples:    meta.TrainingSamples + meta.ValidationSamples,
		RecordedAt: m.now().UTC(),
	}
	if t, err := time.Parse(time.RFC3339, meta.TrainedAt); err == nil {
		mv.TrainedAt = t
	}
	if r := meta.TrainingResults; r != nil {
		mv.ValLoss, mv.ValAcc = r.ValLoss, r.ValAccuracy
	}
	if err := m.registry.Record(ctx, mv); err != nil {
		m.log.Warn("registry record failed", logger.String("version", v.VersionID), logger.Error(err))
	}
}

// LoadModel loads a model binary and its siblings. An empty path selects
// the newest binary by modification time. Without metadata the model type
// comes from the file name, or the default type when the name is foreign.
func (m *Manager) LoadModel(path string) error {
	if path == "" {
		latest, err := latestModel(m.cfg.Dir)
		if err != nil {
			return err
		}
		path = latest
	}
	if !exists(path) {
		return fmt.Errorf("%w: %s", ErrModelNotFound, path)
	}

	var meta *models.Metadata
	builderPath := ""
	t := DefaultModelType
	v, err := models.ParseModelPath(path)
	if err != nil {
		m.log.Warn("unrecognized model file name", logger.String("path", path), logger.Error(err))
	} else {
		builderPath = v.FeatureBuilderPath
		if mt, perr := ParseModelType(v.ModelType); perr == nil {
			t = mt
		}
		var md models.Metadata
		switch err := readJSON(v.MetadataPath, &md); {
		case err == nil:
			meta = &md
			if mt, perr := ParseModelType(md.ModelType); perr == nil {
				t = mt
			} else {
				m.log.Warn("metadata names unknown model type", logger.String("model_type", md.ModelType))
			}
		case errors.Is(err, os.ErrNotExist):
			m.log.Warn("metadata missing, loading with model type from file name",
				logger.String("path", v.MetadataPath),
				logger.String("model_type", string(t)),
			)
		default:
			m.log.Warn("metadata unreadable", logger.String("path", v.MetadataPath), logger.Error(err))
		}
	}

	p, err := NewPredictor(t, m.trainConfig())
	if err != nil {
		return err
	}
	if err := readModel(path, p); err != nil {
		return fmt.Errorf("load model %s: %w", path, err)
	}

	if builderPath != "" {
		var st features.State
		if err := readJSON(builderPath, &st); err != nil {
			m.log.Warn("feature builder state unavailable", logger.String("path", builderPath), logger.Error(err))
		} else if err := m.builder.Restore(st); err != nil {
			m.log.Warn("feature builder state rejected", logger.String("path", builderPath), logger.Error(err))
		}
	}

	m.model, m.modelType, m.metadata = p, t, meta
	m.version = nil
	if v.VersionID != "" {
		m.version = &v
	}
	m.log.Info("model loaded",
		logger.String("path", path),
		logger.String("model_type", string(t)),
		logger.Bool("has_metadata", meta != nil),
	)
	return nil
}

// CleanupOldModels keeps the keep newest model binaries and removes the
// rest together with their siblings. Returns the number of models removed.
// A non-positive keep removes nothing.
func (m *Manager) CleanupOldModels(ctx context.Context, keep int) int {
	if keep <= 0 {
		m.log.Warn("cleanup skipped, keep count must be positive", logger.Int("keep", keep))
		return 0
	}
	files, err := listModels(m.cfg.Dir)
	if err != nil {
		m.log.Error("list models failed", logger.Error(err))
		return 0
	}
	if len(files) <= keep {
		return 0
	}

	removed := 0
	for _, f := range files[keep:] {
		if err := os.Remove(f.path); err != nil {
			m.log.Error("remove model failed", logger.String("path", f.path), logger.Error(err))
			continue
		}
		removed++

		v, err := models.ParseModelPath(f.path)
		if err != nil {
			continue
		}
		for _, sib := range []string{v.FeatureBuilderPath, v.MetadataPath} {
			if err := removeIfExists(sib); err != nil {
				m.log.Warn("remove artifact failed", logger.String("path", sib), logger.Error(err))
			}
		}
		if m.registry != nil {
			if err := m.registry.Remove(ctx, v.VersionID); err != nil {
				m.log.Warn("registry remove failed", logger.String("version", v.VersionID), logger.Error(err))
			}
		}
	}

	m.log.Info("old models cleaned up", logger.Int("removed", removed), logger.Int("kept", keep))
	if m.metrics != nil {
		m.metrics.RecordArtifactsRemoved(removed)
	}
	return removed
}

// ShouldRetrain is true without metadata or a training time, and once the
// retrain interval has elapsed. An unparseable time yields false.
func (m *Manager) ShouldRetrain() bool {
	if m.metadata == nil || m.metadata.TrainedAt == "" {
		return true
	}
	trained, err := time.Parse(time.RFC3339, m.metadata.TrainedAt)
	if err != nil {
		m.log.Warn("cannot parse trained_at", logger.String("trained_at", m.metadata.TrainedAt), logger.Error(err))
		return false
	}
	return m.now().Sub(trained) >= m.cfg.RetrainInterval()
}

func (m *Manager) ModelInfo(ctx context.Context) models.ModelInfo {
	info := models.ModelInfo{
		Status:         statusNotLoaded,
		ModelType:      string(m.modelType),
		ModelDir:       m.cfg.Dir,
		SequenceLength: m.builder.SequenceLength(),
		FeatureCount:   len(m.builder.FeatureColumns()),
		Metadata:       m.metadata,
	}
	if m.model != nil {
		info.Status = statusLoaded
		info.Summary = m.model.Summary()
	}
	if m.registry != nil {
		vs, err := m.registry.Recent(ctx, recentVersions)
		if err != nil {
			m.log.Warn("registry listing failed", logger.Error(err))
		}
		info.Versions = vs
	}
	return info
}

// FeatureImportance ranks features of f by correlation with the target.
func (m *Manager) FeatureImportance(f *frame.Frame) map[string]float64 {
	return m.builder.FeatureImportance(f)
}

// Version returns the artifact triad of the current model, if persisted.
func (m *Manager) Version() (models.ArtifactVersion, bool) {
	if m.version == nil {
		return models.ArtifactVersion{}, false
	}
	return *m.version, true
}
