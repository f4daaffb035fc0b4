package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched tracks successfully fetched pages by engine
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jupiterone_pages_fetched_total",
			Help: "Total number of query pages fetched",
		},
		[]string{"mode"}, // "cursor", "skip_limit", "deferred"
	)

	// DeferredPolls tracks polls of deferred result URLs
	DeferredPolls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jupiterone_deferred_polls_total",
			Help: "Total number of deferred result polls",
		},
	)

	// PartialResults tracks parallel sessions that returned a partial result
	PartialResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jupiterone_partial_results_total",
			Help: "Total number of paginated queries that returned partial results",
		},
	)

	// SessionRecords tracks the size of aggregated results by engine
	SessionRecords = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jupiterone_session_records",
			Help:    "Number of records returned per paginated query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"mode"},
	)
)
