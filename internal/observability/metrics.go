package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "marine_engine"

// Metrics holds the Prometheus counters, histograms, and gauges for the engine.
type Metrics struct {
	Refreshes           *prometheus.CounterVec // labels: outcome={committed,stale,failed}
	ProviderIngests     *prometheus.CounterVec // labels: provider, outcome={success,error}
	RecordsNormalized   prometheus.Counter
	NormalizationErrors prometheus.Counter
	RefreshDuration     prometheus.Histogram

	// Snapshot state.
	SnapshotRecords    prometheus.Gauge
	SnapshotGeneration prometheus.Gauge

	// Model registry metrics.
	ModelRequests    *prometheus.CounterVec   // labels: op, outcome={success,error}
	ModelAPIDuration *prometheus.HistogramVec // labels: op
}

// NewMetrics creates and registers all engine metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.Refreshes,
		m.ProviderIngests,
		m.RecordsNormalized,
		m.NormalizationErrors,
		m.RefreshDuration,
		m.SnapshotRecords,
		m.SnapshotGeneration,
		m.ModelRequests,
		m.ModelAPIDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      help("Snapshot refreshes by outcome."),
		}, []string{"outcome"}),
		ProviderIngests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_ingests_total",
			Help:      help("Provider ingest calls by provider and outcome."),
		}, []string{"provider", "outcome"}),
		RecordsNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_normalized_total",
			Help:      help("Total records produced by normalization."),
		}),
		NormalizationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalization_errors_total",
			Help:      help("Total raw items that failed normalization."),
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      help("Duration of a complete ingest, fetch and commit cycle."),
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SnapshotRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_records",
			Help:      help("Number of records in the installed snapshot."),
		}),
		SnapshotGeneration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_generation",
			Help:      help("Generation of the installed snapshot."),
		}),
		ModelRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_requests_total",
			Help:      help("Model registry requests by operation and outcome."),
		}, []string{"op", "outcome"}),
		ModelAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_api_duration_seconds",
			Help:      help("Model service request duration in seconds."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60},
		}, []string{"op"}),
	}
}
