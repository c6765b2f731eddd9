// Package metrics declares the prometheus collectors shared by the engines,
// the cache and the HTTP layer. Collectors register with the default registry
// on package init and are exposed by promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/redtrack-io/redtrack/internal/core"
)

const namespace = "redtrack"

var (
	// PermissionChecks counts gate decisions by outcome: granted, denied, admin.
	PermissionChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "permissions",
		Name:      "checks_total",
		Help:      "Permission gate decisions",
	}, []string{"outcome"})

	// CacheRequests counts permission cache lookups by backend and result: hit, miss, error.
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Permission cache lookups",
	}, []string{"backend", "result"})

	CacheLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "operation_duration_seconds",
		Help:      "Permission cache operation latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend", "op"})

	// Transitions counts ApplyTransition outcomes as labelled by Outcome.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "workflow",
		Name:      "transitions_total",
		Help:      "Issue status transition attempts",
	}, []string{"outcome"})

	// RelationOps counts relation graph mutations by op and outcome.
	RelationOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relations",
		Name:      "operations_total",
		Help:      "Issue relation mutations",
	}, []string{"op", "outcome"})

	RelationRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relations",
		Name:      "conflict_retries_total",
		Help:      "Relation writes retried after a concurrency conflict",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Outcome maps an error to the label used by the outcome counters.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case core.IsConflict(err):
		return "conflict"
	case core.IsAuthorization(err):
		return "denied"
	case core.IsValidation(err):
		return "rejected"
	case core.IsNotFound(err):
		return "not_found"
	}
	return "error"
}
