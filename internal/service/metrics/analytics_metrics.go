package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Endpoint tracks latency and errors of the analytics endpoints.
type Endpoint struct {
	latency *prometheus.HistogramVec
	errors  *prometheus.CounterVec
}

// NewEndpoint registers the endpoint metrics on reg.
func NewEndpoint(reg prometheus.Registerer) *Endpoint {
	f := promauto.With(reg)
	return &Endpoint{
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "edupulse",
				Subsystem: "analytics",
				Name:      "latency_seconds",
				Help:      "Latency of analytics endpoints",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "edupulse",
				Subsystem: "analytics",
				Name:      "errors_total",
				Help:      "Errors by analytics endpoint and kind",
			},
			[]string{"endpoint", "kind"},
		),
	}
}

// Observe records one call of endpoint that started at start. kind is empty on success.
func (m *Endpoint) Observe(endpoint string, start time.Time, kind string) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if kind != "" {
		m.errors.WithLabelValues(endpoint, kind).Inc()
	}
}
