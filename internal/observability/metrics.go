package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// fusion pipeline.
type Metrics struct {
	FetchRetries  *prometheus.CounterVec // labels: source
	FetchFailures *prometheus.CounterVec // labels: source, kind

	ParseErrors      *prometheus.CounterVec // labels: source, kind
	DeadLetterTotal  *prometheus.CounterVec // labels: source, stage={parse,validate}
	NormalizedEvents *prometheus.CounterVec // labels: source

	ClusterPassDuration prometheus.Histogram
	ClusterCount        prometheus.Gauge
	UnifiedEventsTotal  prometheus.Counter

	PipelineRunning prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchRetries,
		m.FetchFailures,
		m.ParseErrors,
		m.DeadLetterTotal,
		m.NormalizedEvents,
		m.ClusterPassDuration,
		m.ClusterCount,
		m.UnifiedEventsTotal,
		m.PipelineRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh, unregistered collector
// set to avoid "already registered" panics across test files.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eqfusion",
			Name:      "fetch_retries_total",
			Help:      "Total retry attempts across all sources.",
		}, []string{"source"}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eqfusion",
			Name:      "fetch_failures_total",
			Help:      "Total fetches that failed (retries exhausted, non-retryable status, or deadline), by failure kind.",
		}, []string{"source", "kind"}),
		ParseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eqfusion",
			Name:      "parse_errors_total",
			Help:      "Total parse failures, by source and error kind.",
		}, []string{"source", "kind"}),
		DeadLetterTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eqfusion",
			Name:      "dead_letter_total",
			Help:      "Total records routed to the dead-letter sink, by source and rejecting stage.",
		}, []string{"source", "stage"}),
		NormalizedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eqfusion",
			Name:      "normalized_events_total",
			Help:      "Total NormalizedEvents emitted, by source.",
		}, []string{"source"}),
		ClusterPassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "eqfusion",
			Name:      "cluster_pass_duration_seconds",
			Help:      "Duration of one clustering-and-unification pass over the sliding window.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		ClusterCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eqfusion",
			Name:      "cluster_count",
			Help:      "Number of clusters formed in the most recent pass.",
		}),
		UnifiedEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eqfusion",
			Name:      "unified_events_total",
			Help:      "Total UnifiedEvent rows written.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eqfusion",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
	}
}
