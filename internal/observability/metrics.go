package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donasi_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "donasi_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ApprovalsSubmitted counts approvals opened, by action type and outcome.
	ApprovalsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donasi_approvals_submitted_total",
		Help: "Total number of approval submissions by action type and outcome",
	}, []string{"action_type", "outcome"})

	// ApprovalDecisions counts reviewer votes by action type, vote and outcome.
	ApprovalDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donasi_approval_decisions_total",
		Help: "Total number of approval decisions",
	}, []string{"action_type", "action", "outcome"})

	// FundRecomputeDuration records how long collected amount recomputation takes.
	FundRecomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "donasi_fund_recompute_duration_seconds",
		Help:    "Duration of program collected amount recomputation",
		Buckets: prometheus.DefBuckets,
	})

	// ReportCacheLookups counts report cache hits and misses.
	ReportCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donasi_report_cache_lookups_total",
		Help: "Report cache lookups by result",
	}, []string{"result"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
