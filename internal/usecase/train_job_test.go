package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"FinSignal/pkg/logger"
)

func TestTrainJobHandle(t *testing.T) {
	m := &fakeModel{}
	job := NewTrainJob(NewSignalUseCase(m, seededStore(t, 100), nil, nil, nil, logger.Nop()), logger.Nop())
	if job.Type() != TrainJobType {
		t.Fatalf("type = %s", job.Type())
	}

	raw, _ := json.Marshal(TrainPayload{Symbol: "test", N: 80, Timeframe: "bogus", Retrain: true})
	if err := job.Handle(context.Background(), raw); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if m.trained != 1 || m.lastRows != 80 || !m.retrain[0] {
		t.Fatalf("unexpected training call %+v", m)
	}

	if err := job.Handle(context.Background(), []byte(`{"n":10}`)); err == nil {
		t.Fatalf("expected missing symbol error")
	}
	if err := job.Handle(context.Background(), []byte(`not json`)); err == nil {
		t.Fatalf("expected parse error")
	}
}
