package usecase

import (
	"context"
	"fmt"

	domrepo "FinSignal/internal/domain/repository"
	"FinSignal/pkg/logger"
	"FinSignal/pkg/queue"
)

const TrainJobType = "model.train"

// TrainPayload is the queued form of a training request.
type TrainPayload struct {
	Symbol    string `json:"symbol"`
	N         int    `json:"n"`
	Timeframe string `json:"tf"`
	Retrain   bool   `json:"retrain"`
}

// TrainJob runs queued training requests.
type TrainJob struct {
	uc  *SignalUseCase
	log *logger.Logger
}

func NewTrainJob(uc *SignalUseCase, log *logger.Logger) *TrainJob {
	return &TrainJob{uc: uc, log: log}
}

func (j *TrainJob) Name() string { return "train-model" }
func (j *TrainJob) Type() string { return TrainJobType }

func (j *TrainJob) Handle(ctx context.Context, payload []byte) error {
	p, err := queue.ParsePayload[TrainPayload](payload)
	if err != nil {
		return err
	}
	if p.Symbol == "" {
		return fmt.Errorf("train job without symbol")
	}
	res, err := j.uc.Train(ctx, TrainParams{
		CandleQuery: CandleQuery{Symbol: p.Symbol, N: p.N, Timeframe: domrepo.NormalizeTimeframe(p.Timeframe)},
		Retrain:     p.Retrain,
	})
	if err != nil {
		return err
	}
	j.log.Info("queued training finished",
		logger.String("symbol", p.Symbol),
		logger.Int("epochs", res.Epochs),
		logger.Float64("val_loss", res.ValLoss),
	)
	return nil
}
