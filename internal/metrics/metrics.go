// Package metrics holds the process-wide Prometheus collectors.
// They are registered on the default registry and served by promhttp at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueryCacheLookups counts query cache reads by query name and result (hit, miss).
	QueryCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_query_cache_lookups_total",
		Help: "The total number of query cache lookups",
	}, []string{"query", "result"})

	// QueryCacheInvalidations counts cache entries dropped by invalidation.
	QueryCacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_query_cache_invalidations_total",
		Help: "The total number of query cache invalidations",
	}, []string{"query"})

	QueryCacheDiscardedWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_query_cache_discarded_writes_total",
		Help: "Fetch results not stored because the query was invalidated while in flight",
	}, []string{"query"})

	CreatorResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_creator_resolutions_total",
		Help: "The total number of creator references resolved, by outcome",
	}, []string{"outcome"})

	FeedPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_feed_pages_total",
		Help: "The total number of feed pages fetched, by outcome",
	}, []string{"outcome"})

	SocialMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_social_mutations_total",
		Help: "The total number of like/save mutations, by operation and status",
	}, []string{"operation", "status"})

	// StoreRequestLatency observes remote store request latency in seconds.
	StoreRequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapfeed_store_request_latency",
			Help:    "Histogram of document store request latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "path", "status_code"},
	)
)

// Outcome labels shared by the counters above.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeEmbedded = "embedded"
	OutcomeFetched  = "fetched"
	OutcomeFallback = "fallback"
	ResultHit       = "hit"
	ResultMiss      = "miss"
)
