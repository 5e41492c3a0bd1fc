package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API tracks latency and errors of the model endpoints.
type API struct {
	latency *prometheus.HistogramVec
	errors  *prometheus.CounterVec
}

// NewAPI registers endpoint metrics on reg; nil means the default registry.
func NewAPI(reg prometheus.Registerer) *API {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &API{
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "finsignal",
				Subsystem: "api",
				Name:      "latency_seconds",
				Help:      "Latency of model endpoints",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60, 300},
			},
			[]string{"endpoint"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "finsignal",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Errors by model endpoint",
			},
			[]string{"endpoint"},
		),
	}
}

// Observe records the latency of one call started at start.
func (a *API) Observe(endpoint string, start time.Time) {
	a.latency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (a *API) Error(endpoint string) {
	a.errors.WithLabelValues(endpoint).Inc()
}
