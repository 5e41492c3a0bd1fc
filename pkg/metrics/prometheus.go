package metrics

import (
	"FinSignal/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	trainingDuration *prometheus.HistogramVec
	trainingRuns     *prometheus.CounterVec
	valLoss          *prometheus.GaugeVec
	valAccuracy      *prometheus.GaugeVec
	predictions      *prometheus.CounterVec
	confidence       *prometheus.HistogramVec
	artifactsRemoved prometheus.Counter
	messagesSent     *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
}

// New creates a recorder registered on reg; nil means the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		trainingDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finsignal_training_duration_seconds",
				Help:    "Duration of model training runs in seconds",
				Buckets: []float64{0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"model_type"},
		),
		trainingRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_training_runs_total",
				Help: "Training runs by outcome",
			},
			[]string{"model_type", "status"},
		),
		valLoss: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finsignal_validation_loss",
				Help: "Validation loss of the last successful training run",
			},
			[]string{"model_type"},
		),
		valAccuracy: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finsignal_validation_accuracy",
				Help: "Validation accuracy of the last successful training run",
			},
			[]string{"model_type"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_predictions_total",
				Help: "Predictions by derived signal",
			},
			[]string{"model_type", "signal"},
		),
		confidence: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finsignal_signal_confidence",
				Help:    "Confidence of derived signals",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"signal"},
		),
		artifactsRemoved: f.NewCounter(
			prometheus.CounterOpts{
				Name: "finsignal_artifacts_removed_total",
				Help: "Model artifacts removed by retention cleanup",
			},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_messages_sent_total",
				Help: "Total number of signals sent to a backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordTraining records one training run; res may be nil on failure.
func (r *Recorder) RecordTraining(modelType string, seconds float64, res *models.TrainingResult, err error) {
	r.trainingDuration.WithLabelValues(modelType).Observe(seconds)
	if err != nil {
		r.trainingRuns.WithLabelValues(modelType, "error").Inc()
		return
	}
	r.trainingRuns.WithLabelValues(modelType, "ok").Inc()
	if res != nil {
		r.valLoss.WithLabelValues(modelType).Set(res.ValLoss)
		r.valAccuracy.WithLabelValues(modelType).Set(res.ValAccuracy)
	}
}

func (r *Recorder) RecordPrediction(modelType string, signal models.SignalKind, confidence float64) {
	r.predictions.WithLabelValues(modelType, string(signal)).Inc()
	r.confidence.WithLabelValues(string(signal)).Observe(confidence)
}

func (r *Recorder) RecordArtifactsRemoved(n int) {
	r.artifactsRemoved.Add(float64(n))
}

// RecordMessageSent records a signal sent to a backend.
func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
