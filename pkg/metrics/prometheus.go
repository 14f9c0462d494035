package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	uploads     *prometheus.CounterVec
	uploadBytes *prometheus.HistogramVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	series      *prometheus.CounterVec
	dropped     *prometheus.CounterVec
}

// New creates a Prometheus metrics recorder registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		uploads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edupulse_uploads_total",
				Help: "Total number of analyzed uploads by detected format",
			},
			[]string{"format"},
		),
		uploadBytes: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edupulse_upload_size_bytes",
				Help:    "Size of analyzed uploads in bytes",
				Buckets: prometheus.ExponentialBuckets(1<<10, 4, 8),
			},
			[]string{"format"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edupulse_errors_total",
				Help: "Total number of errors encountered by kind",
			},
			[]string{"kind"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edupulse_operation_duration_seconds",
				Help:    "Duration of pipeline operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		series: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edupulse_series_total",
				Help: "Series processed by outcome (analyzed, omitted)",
			},
			[]string{"outcome"},
		),
		dropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edupulse_points_dropped_total",
				Help: "Data points removed or repaired during cleaning by reason",
			},
			[]string{"reason"},
		),
	}
}

// RecordUpload records one analyzed upload.
func (r *Recorder) RecordUpload(format string, bytes int) {
	r.uploads.WithLabelValues(format).Inc()
	r.uploadBytes.WithLabelValues(format).Observe(float64(bytes))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordSeries adds n series with the given outcome.
func (r *Recorder) RecordSeries(outcome string, n int) {
	if n > 0 {
		r.series.WithLabelValues(outcome).Add(float64(n))
	}
}

// RecordDropped adds n points handled for reason.
func (r *Recorder) RecordDropped(reason string, n int) {
	if n > 0 {
		r.dropped.WithLabelValues(reason).Add(float64(n))
	}
}
