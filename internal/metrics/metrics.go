package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Block scanning metrics
	BlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainwatch_blocks_processed_total",
			Help: "Total number of blocks scanned",
		},
		[]string{"status"}, // success, error
	)

	BlockProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chainwatch_block_processing_duration_seconds",
			Help:    "Time from block delivery until every hash in it was dispatched",
			Buckets: prometheus.DefBuckets,
		},
	)

	TransactionsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chainwatch_transactions_scanned_total",
			Help: "Total number of transaction hashes looked up",
		},
	)

	// Matches of the tracked address, by pipeline outcome
	Matches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainwatch_matches_total",
			Help: "Total number of transactions involving the tracked address",
		},
		[]string{"status"}, // alerted, duplicate, filtered_zero, filtered_min_value, filtered_status, storage_error
	)

	RiskScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chainwatch_risk_scores",
			Help:    "Distribution of risk scores of alerted transactions (0-100)",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	// Alert metrics
	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainwatch_alerts_sent_total",
			Help: "Total number of alerts sent",
		},
		[]string{"status", "type"}, // success/error, log/discord/smtp/telegram/nats/kafka
	)

	// Node metrics
	RPCCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainwatch_rpc_calls_total",
			Help: "Total number of node RPC calls",
		},
		[]string{"method", "status"}, // success, not_found, error
	)

	RPCCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chainwatch_rpc_call_duration_seconds",
			Help:    "Duration of node RPC calls including retries",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	// Storage metrics
	StorageOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainwatch_storage_ops_total",
			Help: "Total number of ledger and log operations",
		},
		[]string{"operation", "status"}, // mark/append/all/stats, success/error
	)

	StorageOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chainwatch_storage_op_duration_seconds",
			Help:    "Duration of ledger and log operations",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// System health
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainwatch_health_checks_total",
			Help: "Total number of health check requests",
		},
		[]string{"status"}, // healthy/unhealthy
	)
)

// RecordBlock records a scanned block and how many hashes it carried
func RecordBlock(duration time.Duration, hashes int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	BlocksProcessed.WithLabelValues(status).Inc()
	if err == nil {
		BlockProcessingDuration.Observe(duration.Seconds())
		TransactionsScanned.Add(float64(hashes))
	}
}

// RecordMatch records the outcome of the pipeline for one involved transaction
func RecordMatch(status string) {
	Matches.WithLabelValues(status).Inc()
}

// RecordRiskScore records the score of an alerted transaction
func RecordRiskScore(score int) {
	RiskScores.Observe(float64(score))
}

// RecordAlert records alert delivery metrics
func RecordAlert(sendStatus, alertType string) {
	AlertsSent.WithLabelValues(sendStatus, alertType).Inc()
}

// RecordRPCCall records node call metrics
func RecordRPCCall(method string, duration time.Duration, status string) {
	RPCCalls.WithLabelValues(method, status).Inc()
	RPCCallDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordStorageOp records ledger and log metrics
func RecordStorageOp(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StorageOps.WithLabelValues(operation, status).Inc()
	StorageOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHealthCheck records health check status
func RecordHealthCheck(healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	HealthChecks.WithLabelValues(status).Inc()
}
