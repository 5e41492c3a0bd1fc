package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	"FinSignal/internal/domain/service"
	"FinSignal/internal/services/modeling"
	"FinSignal/pkg/frame"
	"FinSignal/pkg/logger"
)

var ErrNoCandles = errors.New("no candles for symbol")

type errorRecorder interface {
	RecordError(kind string)
}

// SignalUseCase drives the model lifecycle from stored candles. Calls into
// the model are serialized.
type SignalUseCase struct {
	mu      sync.Mutex
	model   service.SignalModel
	store   domrepo.FeatureStore
	cache   domrepo.SignalCache
	pub     domrepo.SignalPublisher
	errs    errorRecorder
	log     *logger.Logger
	timeout time.Duration
}

// NewSignalUseCase wires the model to its candle source. cache, pub and errs
// may be nil.
func NewSignalUseCase(model service.SignalModel, store domrepo.FeatureStore, cache domrepo.SignalCache, pub domrepo.SignalPublisher, errs errorRecorder, log *logger.Logger) *SignalUseCase {
	return &SignalUseCase{
		model:   model,
		store:   store,
		cache:   cache,
		pub:     pub,
		errs:    errs,
		log:     log,
		timeout: 10 * time.Second,
	}
}

type CandleQuery struct {
	Symbol    string
	N         int
	Timeframe domrepo.Timeframe
}

type TrainParams struct {
	CandleQuery
	Retrain bool
}

type FeatureScore struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

// LoadLatest restores the newest saved model, if any.
func (uc *SignalUseCase) LoadLatest() error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	err := uc.model.LoadModel("")
	if err != nil && errors.Is(err, modeling.ErrModelNotFound) {
		uc.log.Info("no saved model yet")
		return nil
	}
	return err
}

// Predict returns the latest signal for the symbol. Fresh cached signals are
// returned as is; new non-degraded signals are cached and published.
func (uc *SignalUseCase) Predict(ctx context.Context, q CandleQuery) (models.Signal, error) {
	symbol := strings.ToUpper(q.Symbol)
	if uc.cache != nil {
		if s, ok := uc.cache.Get(ctx, symbol); ok {
			return *s, nil
		}
	}

	f, err := uc.frame(ctx, q)
	if err != nil {
		return models.Signal{}, err
	}

	uc.mu.Lock()
	sig := uc.model.Predict(f)
	uc.mu.Unlock()
	sig.Symbol = symbol

	if sig.Error != "" {
		uc.recordError("predict")
		return sig, nil
	}
	if uc.cache != nil {
		if err := uc.cache.Set(ctx, symbol, sig); err != nil {
			uc.log.Warn("signal cache set failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}
	if uc.pub != nil {
		if err := uc.pub.Publish(ctx, sig); err != nil {
			uc.recordError("publish")
			uc.log.Warn("signal publish failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}
	return sig, nil
}

// Train fits a model on the latest candles and saves its artifacts.
func (uc *SignalUseCase) Train(ctx context.Context, p TrainParams) (*models.TrainingResult, error) {
	f, err := uc.frame(ctx, p.CandleQuery)
	if err != nil {
		return nil, err
	}
	uc.mu.Lock()
	defer uc.mu.Unlock()
	res, err := uc.model.TrainModel(ctx, f, p.Retrain)
	if err != nil {
		uc.recordError("train")
		return nil, fmt.Errorf("train %s: %w", p.Symbol, err)
	}
	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx, p.Symbol); err != nil {
			uc.log.Warn("signal cache invalidate failed", logger.String("symbol", p.Symbol), logger.Error(err))
		}
	}
	return res, nil
}

// MaybeRetrain trains only once the retrain interval has elapsed. The bool
// reports whether training ran.
func (uc *SignalUseCase) MaybeRetrain(ctx context.Context, q CandleQuery) (bool, error) {
	uc.mu.Lock()
	due := uc.model.ShouldRetrain()
	uc.mu.Unlock()
	if !due {
		return false, nil
	}
	uc.log.Info("retraining", logger.String("symbol", q.Symbol))
	if _, err := uc.Train(ctx, TrainParams{CandleQuery: q, Retrain: true}); err != nil {
		return false, err
	}
	return true, nil
}

func (uc *SignalUseCase) RetrainDue() bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.model.ShouldRetrain()
}

func (uc *SignalUseCase) Cleanup(ctx context.Context, keep int) int {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.model.CleanupOldModels(ctx, keep)
}

func (uc *SignalUseCase) Info(ctx context.Context) models.ModelInfo {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.model.ModelInfo(ctx)
}

// Importance returns the top features by score, highest first.
func (uc *SignalUseCase) Importance(ctx context.Context, q CandleQuery, top int) ([]FeatureScore, error) {
	f, err := uc.frame(ctx, q)
	if err != nil {
		return nil, err
	}
	uc.mu.Lock()
	scores := uc.model.FeatureImportance(f)
	uc.mu.Unlock()

	out := make([]FeatureScore, 0, len(scores))
	for k, v := range scores {
		out = append(out, FeatureScore{Feature: k, Score: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Feature < out[j].Feature
	})
	if top > 0 && len(out) > top {
		out = out[:top]
	}
	return out, nil
}

func (uc *SignalUseCase) frame(ctx context.Context, q CandleQuery) (*frame.Frame, error) {
	if q.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if q.N <= 0 {
		q.N = 500
	}
	if q.Timeframe == "" {
		q.Timeframe = domrepo.DefaultTimeframe()
	}
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	candles, err := uc.store.GetLatestNCandles(ctx, strings.ToUpper(q.Symbol), q.N, q.Timeframe)
	if err != nil {
		uc.recordError("candles")
		return nil, fmt.Errorf("load candles: %w", err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCandles, q.Symbol)
	}
	return models.CandlesToFrame(candles), nil
}

func (uc *SignalUseCase) recordError(kind string) {
	if uc.errs != nil {
		uc.errs.RecordError(kind)
	}
}
