package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheproxy_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"backend"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses by backend.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheproxy_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"backend"}, // "memory", "redis"
	)

	// CacheEvictions tracks entries removed by LRU pressure or lazy expiry.
	// Only the memory backend evicts locally; redis eviction is server-side.
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheproxy_cache_evictions_total",
			Help: "Total number of cache entries evicted",
		},
		[]string{"backend"},
	)

	// CoalescedRequests tracks fetches served by attaching to an already
	// in-flight origin fetch for the same key.
	CoalescedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheproxy_coalesced_requests_total",
			Help: "Total number of requests coalesced into an in-flight fetch",
		},
	)

	// CacheErrors tracks backend operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheproxy_cache_errors_total",
			Help: "Total number of cache backend operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "clear"
	)
)
