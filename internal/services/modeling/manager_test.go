package modeling

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/services/features"
	"FinSignal/internal/services/indicators"
	"FinSignal/internal/testutil"
	"FinSignal/pkg/config"
	"FinSignal/pkg/logger"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func newTestManager(t *testing.T, dir string, clock *fakeClock, opts ...Option) *Manager {
	t.Helper()
	return newTypedManager(t, dir, clock, string(DefaultModelType), opts...)
}

func newTypedManager(t *testing.T, dir string, clock *fakeClock, modelType string, opts ...Option) *Manager {
	t.Helper()
	cfg := config.Default()
	cfg.Model.Type = modelType
	cfg.Model.Dir = dir
	cfg.Model.SequenceLength = 10
	cfg.Model.Epochs = 5
	cfg.Model.BatchSize = 16
	b := features.NewBuilder(indicators.NewEngine(cfg.Indicators, logger.Nop()), cfg.Model.SequenceLength, logger.Nop())
	m, err := NewManager(cfg.Model, cfg.Signal, b, logger.Nop(), append([]Option{WithClock(clock.Now)}, opts...)...)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func trainedManager(t *testing.T, dir string, clock *fakeClock, opts ...Option) *Manager {
	t.Helper()
	m := newTestManager(t, dir, clock, opts...)
	if _, err := m.TrainModel(context.Background(), models.CandlesToFrame(testutil.Candles(300, 31)), false); err != nil {
		t.Fatalf("train: %v", err)
	}
	return m
}

func modelFiles(t *testing.T, dir string) []string {
	t.Helper()
	out, err := filepath.Glob(filepath.Join(dir, models.ModelFileGlob))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	sort.Strings(out)
	return out
}

func TestNewManagerRejectsUnknownType(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Type = "cnn"
	cfg.Model.Dir = t.TempDir()
	_, err := NewManager(cfg.Model, cfg.Signal, nil, nil)
	var ute *UnsupportedModelTypeError
	if !errors.As(err, &ute) {
		t.Fatalf("err = %v, want UnsupportedModelTypeError", err)
	}
}

func TestCreateModelUnsupported(t *testing.T) {
	m := newTestManager(t, t.TempDir(), newClock())
	err := m.CreateModel("xgboost")
	var ute *UnsupportedModelTypeError
	if !errors.As(err, &ute) || ute.Tag != "xgboost" {
		t.Fatalf("err = %v", err)
	}
	if err := m.CreateModel("transformer"); err != nil {
		t.Fatalf("create transformer: %v", err)
	}
	if m.ModelInfo(context.Background()).ModelType != "transformer" {
		t.Fatalf("model type not switched")
	}
}

func TestTrainWritesTriad(t *testing.T) {
	dir := t.TempDir()
	clock := newClock()
	m := trainedManager(t, dir, clock)

	v, ok := m.Version()
	if !ok {
		t.Fatalf("no version after training")
	}
	if v.VersionID != "20240501_120000" {
		t.Fatalf("version id = %s", v.VersionID)
	}
	for _, p := range []string{v.ModelPath, v.FeatureBuilderPath, v.MetadataPath} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("artifact missing: %v", err)
		}
	}

	info := m.ModelInfo(context.Background())
	if info.Status != "loaded" || info.Metadata == nil {
		t.Fatalf("unexpected info %+v", info)
	}
	md := info.Metadata
	if md.RunID == "" || md.TrainedAt != "2024-05-01T12:00:00Z" {
		t.Fatalf("metadata identity missing: %+v", md)
	}
	if md.TrainingSamples == 0 || md.ValidationSamples == 0 || md.FeatureCount == 0 || md.SequenceLength != 10 {
		t.Fatalf("metadata counts missing: %+v", md)
	}
	total := md.TrainingSamples + md.ValidationSamples
	split := 0.2
	if md.ValidationSamples != total-int(float64(total)*(1-split)) {
		t.Fatalf("validation split not applied: %d of %d", md.ValidationSamples, total)
	}
	if md.TrainingResults == nil || md.TrainingResults.Epochs == 0 {
		t.Fatalf("training results missing")
	}
}

func TestTrainNoSequences(t *testing.T) {
	m := newTestManager(t, t.TempDir(), newClock())
	_, err := m.TrainModel(context.Background(), models.CandlesToFrame(testutil.Candles(30, 32)), false)
	if !errors.Is(err, ErrNoSequences) {
		t.Fatalf("err = %v, want ErrNoSequences", err)
	}
	if err.Error() != "no sequences created from data" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestPredictWithoutModel(t *testing.T) {
	m := newTestManager(t, t.TempDir(), newClock())
	sig := m.Predict(models.CandlesToFrame(testutil.Candles(300, 33)))
	if sig.Signal != models.SignalNeutral || sig.Confidence != 0 || sig.Probability != 0.5 || sig.Error == "" {
		t.Fatalf("unexpected signal %+v", sig)
	}
}

func TestPredictInsufficientData(t *testing.T) {
	m := trainedManager(t, t.TempDir(), newClock())
	sig := m.Predict(models.CandlesToFrame(testutil.Candles(20, 34)))
	if sig.Signal != models.SignalNeutral || sig.Confidence != 0 || sig.Probability != 0.5 || sig.Error == "" {
		t.Fatalf("unexpected signal %+v", sig)
	}
}

func TestLoadLatestReproducesPrediction(t *testing.T) {
	dir := t.TempDir()
	clock := newClock()
	m := trainedManager(t, dir, clock)
	f := models.CandlesToFrame(testutil.Candles(300, 35))
	want := m.Predict(f)
	if want.Error != "" {
		t.Fatalf("predict: %s", want.Error)
	}
	kind, conf := DetermineSignal(want.Probability, 0.6, 0.4)
	if want.Signal != kind || want.Confidence != conf {
		t.Fatalf("signal %+v inconsistent with probability", want)
	}

	other := newTestManager(t, dir, clock)
	if err := other.LoadModel(""); err != nil {
		t.Fatalf("load: %v", err)
	}
	got := other.Predict(f)
	if got.Probability != want.Probability || got.Signal != want.Signal {
		t.Fatalf("reloaded prediction %+v, want %+v", got, want)
	}
	if other.ShouldRetrain() {
		t.Fatalf("fresh model should not need retraining")
	}
}

func TestLoadMissingBinary(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, dir, newClock())
	if err := m.LoadModel(""); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("empty dir: err = %v", err)
	}
	if err := m.LoadModel(filepath.Join(dir, "lstm_model_20240101_000000.bin")); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("explicit path: err = %v", err)
	}
}

func TestLoadWithoutMetadataDegrades(t *testing.T) {
	for _, mt := range []ModelType{LSTM, GRU, Transformer} {
		t.Run(string(mt), func(t *testing.T) {
			dir := t.TempDir()
			clock := newClock()
			m := newTypedManager(t, dir, clock, string(mt))
			if _, err := m.TrainModel(context.Background(), models.CandlesToFrame(testutil.Candles(300, 31)), false); err != nil {
				t.Fatalf("train: %v", err)
			}
			v, _ := m.Version()
			if err := os.Remove(v.MetadataPath); err != nil {
				t.Fatalf("remove metadata: %v", err)
			}

			other := newTestManager(t, dir, clock)
			if err := other.LoadModel(v.ModelPath); err != nil {
				t.Fatalf("degraded load failed: %v", err)
			}
			info := other.ModelInfo(context.Background())
			if info.Status != "loaded" || info.Metadata != nil || info.ModelType != string(mt) {
				t.Fatalf("unexpected info %+v", info)
			}
			if !other.ShouldRetrain() {
				t.Fatalf("model without metadata should need retraining")
			}
			if sig := other.Predict(models.CandlesToFrame(testutil.Candles(300, 36))); sig.Error != "" {
				t.Fatalf("degraded model cannot predict: %s", sig.Error)
			}
		})
	}
}

func TestLoadForeignFileNameUsesDefaultType(t *testing.T) {
	dir := t.TempDir()
	clock := newClock()
	m := trainedManager(t, dir, clock)
	v, _ := m.Version()
	foreign := filepath.Join(dir, "snapshot.bin")
	if err := os.Rename(v.ModelPath, foreign); err != nil {
		t.Fatalf("rename: %v", err)
	}

	other := newTestManager(t, dir, clock)
	if err := other.LoadModel(foreign); err != nil {
		t.Fatalf("load: %v", err)
	}
	if info := other.ModelInfo(context.Background()); info.ModelType != string(DefaultModelType) {
		t.Fatalf("model type = %s", info.ModelType)
	}
}

func TestSaveBumpsCollidingVersion(t *testing.T) {
	dir := t.TempDir()
	clock := newClock()
	m := trainedManager(t, dir, clock)

	v2, err := m.SaveModel(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if v2.VersionID != "20240501_120001" {
		t.Fatalf("version id = %s, want bumped key", v2.VersionID)
	}
	if n := len(modelFiles(t, dir)); n != 2 {
		t.Fatalf("model files = %d", n)
	}
}

func TestSaveWithoutModel(t *testing.T) {
	m := newTestManager(t, t.TempDir(), newClock())
	if _, err := m.SaveModel(context.Background()); !errors.Is(err, ErrNoModel) {
		t.Fatalf("err = %v", err)
	}
}

func TestCleanupOldModels(t *testing.T) {
	dir := t.TempDir()
	clock := newClock()
	m := trainedManager(t, dir, clock)

	versions := []models.ArtifactVersion{}
	v, _ := m.Version()
	versions = append(versions, v)
	for i := 0; i < 4; i++ {
		clock.Advance(time.Minute)
		v, err := m.SaveModel(context.Background())
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		versions = append(versions, v)
	}
	base := time.Now().Add(-time.Hour)
	for i, v := range versions {
		mt := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(v.ModelPath, mt, mt); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	// a sibling that cannot be removed must not stop the sweep
	if err := os.Remove(versions[0].MetadataPath); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(versions[0].MetadataPath, "keep"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if n := m.CleanupOldModels(context.Background(), 2); n != 3 {
		t.Fatalf("removed %d, want 3", n)
	}
	got := modelFiles(t, dir)
	want := []string{versions[3].ModelPath, versions[4].ModelPath}
	sort.Strings(want)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("remaining %v, want %v", got, want)
	}
	for _, v := range versions[1:3] {
		for _, p := range []string{v.FeatureBuilderPath, v.MetadataPath} {
			if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("sibling %s not removed", p)
			}
		}
	}
	for _, v := range versions[3:] {
		if _, err := os.Stat(v.MetadataPath); err != nil {
			t.Fatalf("kept sibling missing: %v", err)
		}
	}
	if n := m.CleanupOldModels(context.Background(), 2); n != 0 {
		t.Fatalf("second sweep removed %d", n)
	}
}

func TestCleanupRejectsNonPositiveKeep(t *testing.T) {
	dir := t.TempDir()
	clock := newClock()
	m := trainedManager(t, dir, clock)
	clock.Advance(time.Minute)
	if _, err := m.SaveModel(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	for _, keep := range []int{0, -1} {
		if n := m.CleanupOldModels(context.Background(), keep); n != 0 {
			t.Fatalf("keep=%d removed %d", keep, n)
		}
	}
	if n := len(modelFiles(t, dir)); n != 2 {
		t.Fatalf("model files = %d, want 2", n)
	}
}

func TestShouldRetrain(t *testing.T) {
	clock := newClock()
	m := newTestManager(t, t.TempDir(), clock)
	if !m.ShouldRetrain() {
		t.Fatalf("no metadata should need retraining")
	}

	m.metadata = &models.Metadata{}
	if !m.ShouldRetrain() {
		t.Fatalf("missing trained_at should need retraining")
	}

	m.metadata.TrainedAt = clock.Now().Format(time.RFC3339)
	clock.Advance(23 * time.Hour)
	if m.ShouldRetrain() {
		t.Fatalf("model younger than interval")
	}
	clock.Advance(time.Hour)
	if !m.ShouldRetrain() {
		t.Fatalf("model at interval should need retraining")
	}

	m.metadata.TrainedAt = "yesterday"
	if m.ShouldRetrain() {
		t.Fatalf("unparseable trained_at should yield false")
	}
}

type fakeRegistry struct {
	recorded []models.ModelVersion
	removed  []string
	fail     bool
}

func (r *fakeRegistry) Record(_ context.Context, v models.ModelVersion) error {
	if r.fail {
		return errors.New("registry down")
	}
	r.recorded = append(r.recorded, v)
	return nil
}

func (r *fakeRegistry) Remove(_ context.Context, id string) error {
	r.removed = append(r.removed, id)
	return nil
}

func (r *fakeRegistry) Recent(_ context.Context, limit int) ([]models.ModelVersion, error) {
	if r.fail {
		return nil, errors.New("registry down")
	}
	return r.recorded, nil
}

type fakeMetrics struct {
	trainings, predictions, removed int
}

func (m *fakeMetrics) RecordTraining(string, float64, *models.TrainingResult, error) { m.trainings++ }
func (m *fakeMetrics) RecordPrediction(string, models.SignalKind, float64)           { m.predictions++ }
func (m *fakeMetrics) RecordArtifactsRemoved(n int)                                  { m.removed += n }
func (m *fakeMetrics) RecordError(string)                                            {}

func TestHooks(t *testing.T) {
	dir := t.TempDir()
	clock := newClock()
	reg := &fakeRegistry{}
	met := &fakeMetrics{}
	m := trainedManager(t, dir, clock, WithRegistry(reg), WithMetrics(met))

	clock.Advance(time.Minute)
	if _, err := m.SaveModel(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	m.Predict(models.CandlesToFrame(testutil.Candles(300, 37)))
	first := filepath.Join(dir, "lstm_model_20240501_120000.bin")
	old := time.Now().Add(-time.Hour)
	_ = os.Chtimes(first, old, old)
	m.CleanupOldModels(context.Background(), 1)

	if len(reg.recorded) != 2 || reg.recorded[0].RunID == "" {
		t.Fatalf("registry records = %+v", reg.recorded)
	}
	if len(reg.removed) != 1 || reg.removed[0] != "20240501_120000" {
		t.Fatalf("registry removals = %v", reg.removed)
	}
	if len(m.ModelInfo(context.Background()).Versions) != 2 {
		t.Fatalf("model info does not list registry versions")
	}
	if met.trainings != 1 || met.predictions != 1 || met.removed != 1 {
		t.Fatalf("metrics = %+v", met)
	}
}

func TestRegistryFailureDoesNotFailSave(t *testing.T) {
	m := trainedManager(t, t.TempDir(), newClock(), WithRegistry(&fakeRegistry{fail: true}))
	if _, ok := m.Version(); !ok {
		t.Fatalf("save should succeed when the registry fails")
	}
	if info := m.ModelInfo(context.Background()); info.Status != "loaded" {
		t.Fatalf("info = %+v", info)
	}
}
