package loader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for availability loading.
var (
	loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_loads_total",
		Help: "Total page loads by terminal state",
	}, []string{"state"})

	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_attempts_total",
		Help: "Total batch fetch attempts by result and error class",
	}, []string{"result", "error_class"})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "availability_retries_total",
		Help: "Total number of retried batch fetches",
	})

	retryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "availability_retry_backoff_seconds",
		Help:    "Delay before a retried batch fetch",
		Buckets: []float64{0, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "availability_retry_exhausted_total",
		Help: "Total number of page loads that exhausted their fetch attempts",
	})

	holdingsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_holdings_skipped_total",
		Help: "Total holdings dropped because they formatted to nothing, by reason",
	}, []string{"reason"})

	placeholdersRenderedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_placeholders_rendered_total",
		Help: "Total placeholders rendered by rendering kind",
	}, []string{"rendering"})
)

// Rendering kinds used as metric labels.
const (
	renderingFormatted = "formatted"
	renderingNoStatus  = "no_status"
	renderingError     = "error"
)

// Reasons a holding is skipped.
const (
	skipUnknownType = "unknown_type"
	skipEmpty       = "empty"
)
