package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"FinSignal/internal/domain/models"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordTraining("lstm", 1.5, &models.TrainingResult{ValLoss: 0.4, ValAccuracy: 0.7}, nil)
	r.RecordTraining("lstm", 0.1, nil, errors.New("boom"))
	r.RecordPrediction("lstm", models.SignalLong, 50)
	r.RecordPrediction("lstm", models.SignalLong, 60)
	r.RecordArtifactsRemoved(3)
	r.RecordMessageSent("kafka", "BTCUSDT")

	if got := testutil.ToFloat64(r.trainingRuns.WithLabelValues("lstm", "ok")); got != 1 {
		t.Fatalf("ok runs = %v", got)
	}
	if got := testutil.ToFloat64(r.trainingRuns.WithLabelValues("lstm", "error")); got != 1 {
		t.Fatalf("error runs = %v", got)
	}
	if got := testutil.ToFloat64(r.valAccuracy.WithLabelValues("lstm")); got != 0.7 {
		t.Fatalf("val accuracy = %v", got)
	}
	if got := testutil.ToFloat64(r.predictions.WithLabelValues("lstm", "long")); got != 2 {
		t.Fatalf("predictions = %v", got)
	}
	if got := testutil.ToFloat64(r.artifactsRemoved); got != 3 {
		t.Fatalf("artifacts removed = %v", got)
	}
	if got := testutil.ToFloat64(r.messagesSent.WithLabelValues("kafka", "BTCUSDT")); got != 1 {
		t.Fatalf("messages = %v", got)
	}
}
