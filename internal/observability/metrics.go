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
	// Signal source metrics
	IntentsCreated prometheus.Counter
	SignalsSkipped *prometheus.CounterVec

	// Pipeline metrics
	DecisionsTotal  *prometheus.CounterVec
	PendingIntents  prometheus.Gauge
	DailyBuys       prometheus.Gauge
	CounterResets   prometheus.Counter
	AuditSinkErrors prometheus.Counter

	// Backend metrics
	BrokerCallLatency prometheus.Histogram
	BrokerErrors      prometheus.Counter

	// Database metrics
	DBQueryErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trade_intent_lab"
	}

	return &Metrics{
		IntentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "intents_created_total",
			Help:      "Total number of NEW order intents written",
		}),
		SignalsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "signals_skipped_total",
			Help:      "Total number of signals discarded before creation, by reason",
		}, []string{"reason"}),

		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "decisions_total",
			Help:      "Total number of admission decisions by status and reason",
		}, []string{"status", "reason"}),
		PendingIntents: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "pending_intents",
			Help:      "NEW intents seen by the most recent poll",
		}),
		DailyBuys: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "daily_buys_sent",
			Help:      "Admitted BUY intents for the current trading day",
		}),
		CounterResets: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "counter_resets_total",
			Help:      "Total number of administrative daily-counter resets",
		}),
		AuditSinkErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "audit_sink_errors_total",
			Help:      "Total number of failed audit-sink appends",
		}),

		BrokerCallLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "call_latency_seconds",
			Help:      "Execution backend call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		BrokerErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "errors_total",
			Help:      "Total number of failed execution backend calls",
		}),

		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordIntentCreated increments the intents created counter.
func RecordIntentCreated() {
	DefaultMetrics.IntentsCreated.Inc()
}

// RecordSignalSkipped records a discarded signal by reason.
func RecordSignalSkipped(reason string) {
	DefaultMetrics.SignalsSkipped.WithLabelValues(reason).Inc()
}

// RecordDecision records an admission decision. The reason label is empty
// for admissions.
func RecordDecision(status, reason string) {
	DefaultMetrics.DecisionsTotal.WithLabelValues(status, reason).Inc()
}

// UpdatePendingIntents updates the pending intents gauge.
func UpdatePendingIntents(n int) {
	DefaultMetrics.PendingIntents.Set(float64(n))
}

// UpdateDailyBuys updates the daily admitted BUY gauge.
func UpdateDailyBuys(n int) {
	DefaultMetrics.DailyBuys.Set(float64(n))
}

// RecordCounterReset increments the administrative reset counter.
func RecordCounterReset() {
	DefaultMetrics.CounterResets.Inc()
}

// RecordAuditError increments the audit sink failure counter.
func RecordAuditError() {
	DefaultMetrics.AuditSinkErrors.Inc()
}

// RecordBrokerCall records backend call latency and failures.
func RecordBrokerCall(seconds float64, err error) {
	DefaultMetrics.BrokerCallLatency.Observe(seconds)
	if err != nil {
		DefaultMetrics.BrokerErrors.Inc()
	}
}

// RecordDBError records a database query error.
func RecordDBError(operation string) {
	DefaultMetrics.DBQueryErrors.WithLabelValues(operation).Inc()
}
