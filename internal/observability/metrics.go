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
	// Poll cycle metrics
	CyclesTotal    *prometheus.CounterVec
	CyclesDropped  prometheus.Counter
	CycleDuration  prometheus.Histogram
	FeedFetchTotal *prometheus.CounterVec
	TokensSeen     *prometheus.CounterVec

	// Lifecycle metrics
	TransitionsTotal   *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec

	// Signal classification metrics
	SignalsClassified *prometheus.CounterVec

	// Pricing metrics
	PriceQuotesTotal   *prometheus.CounterVec
	PricePointsStored  prometheus.Counter
	NativeCacheLookups *prometheus.CounterVec
	RPCCallLatency     *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
	TokenErrorsTotal    prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_radar"
	}

	return &Metrics{
		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cycles_total",
			Help:      "Total number of poll cycles by status",
		}, []string{"status"}),
		CyclesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cycles_dropped_total",
			Help:      "Total number of cycle ticks dropped because a cycle was already running",
		}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cycle_duration_seconds",
			Help:      "Poll cycle duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		FeedFetchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "fetch_total",
			Help:      "Total number of feed fetches by category and status",
		}, []string{"category", "status"}),
		TokensSeen: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "tokens_seen_total",
			Help:      "Total number of feed rows processed by category",
		}, []string{"category"}),
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Total number of token state transitions by kind",
		}, []string{"kind"}),
		NotificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "notifications_total",
			Help:      "Total number of notifications sent by kind",
		}, []string{"kind"}),
		SignalsClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "classified_total",
			Help:      "Total number of social signals classified by outcome stage",
		}, []string{"stage"}),
		PriceQuotesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "quotes_total",
			Help:      "Total number of price quotes by strategy and status",
		}, []string{"strategy", "status"}),
		PricePointsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "points_stored_total",
			Help:      "Total number of price points written to history",
		}),
		NativeCacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "native_cache_lookups_total",
			Help:      "Native price cache lookups by result",
		}, []string{"result"}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "EVM RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of the last cycle that finished without errors",
		}),
		TokenErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "token_errors_total",
			Help:      "Total number of per-token processing errors",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCycle records a finished poll cycle.
func RecordCycle(status string, durationSeconds float64) {
	DefaultMetrics.CyclesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.CycleDuration.Observe(durationSeconds)
}

// RecordCycleDropped increments the dropped-tick counter.
func RecordCycleDropped() {
	DefaultMetrics.CyclesDropped.Inc()
}

// RecordFeedFetch records a feed fetch outcome.
func RecordFeedFetch(category, status string, rows int) {
	DefaultMetrics.FeedFetchTotal.WithLabelValues(category, status).Inc()
	if rows > 0 {
		DefaultMetrics.TokensSeen.WithLabelValues(category).Add(float64(rows))
	}
}

// RecordTransition records a token state transition.
func RecordTransition(kind string) {
	DefaultMetrics.TransitionsTotal.WithLabelValues(kind).Inc()
}

// RecordNotification records an outbound notification.
func RecordNotification(kind string) {
	DefaultMetrics.NotificationsTotal.WithLabelValues(kind).Inc()
}

// RecordSignal records a classification outcome.
func RecordSignal(stage string) {
	DefaultMetrics.SignalsClassified.WithLabelValues(stage).Inc()
}

// RecordPriceQuote records a pricing attempt.
func RecordPriceQuote(strategy, status string) {
	DefaultMetrics.PriceQuotesTotal.WithLabelValues(strategy, status).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordTokenError increments the per-token error counter.
func RecordTokenError() {
	DefaultMetrics.TokenErrorsTotal.Inc()
}
