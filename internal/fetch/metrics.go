package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// fetchAttempts counts every invocation of a remote operation,
	// including retries.
	fetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daybook_fetch_attempts_total",
			Help: "Total remote call attempts per operation",
		},
		[]string{"operation"},
	)

	// fetchFailures counts attempts that ended in error, by classification.
	fetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daybook_fetch_failures_total",
			Help: "Total failed remote call attempts per operation",
		},
		[]string{"operation", "class"},
	)

	// fetchLatency tracks remote call latency per operation.
	fetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "daybook_fetch_latency_seconds",
			Help:    "Remote call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// breakerTransitions counts circuit breaker state changes.
	breakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daybook_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"operation", "state"},
	)

	// breakerRejections counts calls rejected without reaching the remote.
	breakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daybook_breaker_rejections_total",
			Help: "Calls short-circuited by an open breaker",
		},
		[]string{"operation"},
	)

	// projectsSkipped counts projects dropped from a batch after all
	// attempts failed.
	projectsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daybook_projects_skipped_total",
			Help: "Projects skipped due to fetch failures",
		},
		[]string{"operation"},
	)
)
