// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Market data metrics
	SymbolsFetched   prometheus.Gauge
	CandlesFetched   prometheus.Counter
	FetchErrors      *prometheus.CounterVec
	StreamUpdates    prometheus.Counter
	StreamReconnects prometheus.Counter

	// Discovery metrics
	PairsScanned       prometheus.Counter
	RelationshipsFound prometheus.Gauge
	DiscoveryLatency   prometheus.Histogram

	// Pipeline metrics
	PipelineRunsTotal  *prometheus.CounterVec
	PipelineDuration   *prometheus.HistogramVec
	LeadersSnapshotted prometheus.Gauge
	SignalsEmitted     *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
	GraphPersisted    prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "leadlag"
	}

	return &Metrics{
		SymbolsFetched: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "symbols_fetched",
			Help:      "Number of symbols fetched in the last cycle",
		}),
		CandlesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "candles_fetched_total",
			Help:      "Total number of candles fetched from the exchange",
		}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "fetch_errors_total",
			Help:      "Total number of market data fetch errors by kind",
		}, []string{"kind"}),
		StreamUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "stream_updates_total",
			Help:      "Total number of websocket kline updates received",
		}),
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "stream_reconnects_total",
			Help:      "Total number of websocket reconnects",
		}),

		PairsScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "pairs_scanned_total",
			Help:      "Total number of ordered pairs scanned for lag correlation",
		}),
		RelationshipsFound: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "relationships_found",
			Help:      "Number of relationships above threshold in the last cycle",
		}),
		DiscoveryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "latency_seconds",
			Help:      "Lag correlation sweep duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),

		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by phase and status",
		}, []string{"phase", "status"}),
		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline phase duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		LeadersSnapshotted: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "leaders_snapshotted",
			Help:      "Number of leader snapshot rows built in the last cycle",
		}),
		SignalsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "signals_emitted_total",
			Help:      "Total number of signals emitted by strategy",
		}, []string{"strategy"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
		GraphPersisted: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "graph_persisted",
			Help:      "1 when the last cycle reached the durable graph store, 0 otherwise",
		}),
	}
}

// RecordPipelineRun records a pipeline phase outcome.
func (m *Metrics) RecordPipelineRun(phase, status string, durationSeconds float64) {
	m.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	m.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordSignal increments the emitted-signal counter for a strategy.
func (m *Metrics) RecordSignal(strategy string) {
	m.SignalsEmitted.WithLabelValues(strategy).Inc()
}

// RecordFetchError records a market data fetch error.
func (m *Metrics) RecordFetchError(kind string) {
	m.FetchErrors.WithLabelValues(kind).Inc()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance. The storage layers
// record against it directly; the orchestrator takes an instance via
// Options.Metrics.
var DefaultMetrics = NewMetrics("")

// RecordDBQuery records database query metrics on DefaultMetrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.RecordDBQuery(database, operation, seconds, err)
}
