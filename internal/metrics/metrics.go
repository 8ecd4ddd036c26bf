// Package metrics exposes Prometheus metrics for the ledger service and
// its HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LedgerOperations counts ledger operations by name and outcome.
var LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "budgetd",
	Subsystem: "ledger",
	Name:      "operations_total",
	Help:      "Total ledger operations by operation and outcome.",
}, []string{"operation", "outcome"})

// LedgerDuration tracks ledger operation latency.
var LedgerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "budgetd",
	Subsystem: "ledger",
	Name:      "operation_duration_ms",
	Help:      "Ledger operation duration in milliseconds.",
	Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
}, []string{"operation"})

// OverAssignmentRejections counts assignments rejected for exceeding
// available funds.
var OverAssignmentRejections = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "budgetd",
	Subsystem: "ledger",
	Name:      "over_assignment_rejections_total",
	Help:      "Total assignments rejected for exceeding Ready to Assign.",
})

// StorageConflicts counts optimistic-concurrency conflicts on writes.
var StorageConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "budgetd",
	Subsystem: "storage",
	Name:      "write_conflicts_total",
	Help:      "Total budget month version conflicts on write.",
})

// SummaryCacheHits counts month summary cache lookups by result.
var SummaryCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "budgetd",
	Subsystem: "cache",
	Name:      "summary_lookups_total",
	Help:      "Total month summary cache lookups by result (hit or miss).",
}, []string{"result"})

// WorkerRuns counts occurrence worker passes by outcome.
var WorkerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "budgetd",
	Subsystem: "worker",
	Name:      "runs_total",
	Help:      "Total occurrence worker passes by outcome.",
}, []string{"outcome"})

// OverdueOccurrences counts bill occurrences flagged overdue.
var OverdueOccurrences = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "budgetd",
	Subsystem: "worker",
	Name:      "overdue_occurrences_total",
	Help:      "Total bill occurrences marked overdue.",
})

// HTTPRequests counts HTTP requests by method, route and status class.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "budgetd",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests by method, route and status.",
}, []string{"method", "route", "status"})

// HTTPDuration tracks HTTP request latency by route.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "budgetd",
	Subsystem: "http",
	Name:      "request_duration_ms",
	Help:      "HTTP request duration in milliseconds.",
	Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
}, []string{"method", "route"})

// ObserveOperation records one ledger operation with its duration.
func ObserveOperation(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	LedgerOperations.WithLabelValues(operation, outcome).Inc()
	LedgerDuration.WithLabelValues(operation).Observe(float64(time.Since(start).Milliseconds()))
}
