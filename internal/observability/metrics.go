// Package observability provides Prometheus metrics for monitoring.
//
// Source failures never surface in the statistics shape; these counters and
// the logs are the only way to tell a degraded result from real inactivity.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Scanner metrics
	ScanPagesFetched   prometheus.Counter
	ScanMatchesFound   prometheus.Counter
	ScanOperationFails prometheus.Counter

	// Event fetcher metrics
	EventsFetched prometheus.Counter
	EventsDropped prometheus.Counter

	// Source failures by origin ("horizon" | "soroban")
	SourceFailures *prometheus.CounterVec

	// Aggregation metrics
	StatsRequests *prometheus.CounterVec
	StatsLatency  prometheus.Histogram

	// Poller metrics
	RefreshesTotal *prometheus.CounterVec
	RefreshLatency prometheus.Histogram

	// Push hub metrics
	WSClients prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "soroban_watch"
	}

	return &Metrics{
		ScanPagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "pages_fetched_total",
			Help:      "Total number of Horizon transaction pages fetched",
		}),
		ScanMatchesFound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "matches_found_total",
			Help:      "Total number of transactions matched to a contract",
		}),
		ScanOperationFails: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "operation_fetch_errors_total",
			Help:      "Total number of per-transaction operation fetches that failed and were skipped",
		}),
		EventsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "fetched_total",
			Help:      "Total number of raw events returned by Soroban RPC",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Total number of event records dropped during normalization",
		}),
		SourceFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "failures_total",
			Help:      "Total number of external source failures absorbed into degraded results",
		}, []string{"source"}),
		StatsRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "requests_total",
			Help:      "Total number of statistics computations by status",
		}, []string{"status"}),
		StatsLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "compute_latency_seconds",
			Help:      "Statistics computation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		RefreshesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "refreshes_total",
			Help:      "Total number of poller refreshes by kind and status",
		}, []string{"kind", "status"}),
		RefreshLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "refresh_latency_seconds",
			Help:      "Poller refresh latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "ws_clients",
			Help:      "Number of connected WebSocket subscribers",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPageFetched increments the scanner page counter.
func RecordPageFetched() {
	DefaultMetrics.ScanPagesFetched.Inc()
}

// RecordMatch increments the scanner match counter.
func RecordMatch() {
	DefaultMetrics.ScanMatchesFound.Inc()
}

// RecordOperationFetchError increments the skipped operation fetch counter.
func RecordOperationFetchError() {
	DefaultMetrics.ScanOperationFails.Inc()
}

// RecordEventsFetched adds to the raw event counter.
func RecordEventsFetched(n int) {
	DefaultMetrics.EventsFetched.Add(float64(n))
}

// RecordEventDropped increments the dropped event counter.
func RecordEventDropped() {
	DefaultMetrics.EventsDropped.Inc()
}

// RecordSourceFailure records an absorbed external source failure.
func RecordSourceFailure(source string) {
	DefaultMetrics.SourceFailures.WithLabelValues(source).Inc()
}

// RecordStatsRequest records a statistics computation.
func RecordStatsRequest(status string, seconds float64) {
	DefaultMetrics.StatsRequests.WithLabelValues(status).Inc()
	DefaultMetrics.StatsLatency.Observe(seconds)
}

// RecordRefresh records a poller refresh.
func RecordRefresh(kind, status string, seconds float64) {
	DefaultMetrics.RefreshesTotal.WithLabelValues(kind, status).Inc()
	DefaultMetrics.RefreshLatency.Observe(seconds)
}
