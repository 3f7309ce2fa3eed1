package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	refreshes       *prometheus.CounterVec
	queryErrors     *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	samplesIngested prometheus.Counter
	latency         *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		refreshes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pace_refreshes_total",
				Help: "Dashboard refreshes by outcome (committed, failed, superseded)",
			},
			[]string{"outcome"},
		),
		queryErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pace_provider_query_errors_total",
				Help: "Failed health provider queries by metric and error kind",
			},
			[]string{"metric", "kind"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pace_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		samplesIngested: f.NewCounter(
			prometheus.CounterOpts{
				Name: "pace_samples_ingested_total",
				Help: "Step samples written to the sample store",
			},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pace_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordRefresh(outcome string) {
	r.refreshes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordQueryError(metric, kind string) {
	r.queryErrors.WithLabelValues(metric, kind).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordSamplesIngested(n int) {
	r.samplesIngested.Add(float64(n))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRefresh(string) {}
func (Nop) RecordQueryError(string, string) {}
func (Nop) RecordError(string) {}
func (Nop) RecordSamplesIngested(int) {}
func (Nop) RecordLatency(string, float64) {}
