package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts revalidations answered with 304 and served from cache.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "branchdesk_cache_hits_total",
		Help: "Total number of responses served from cache after 304 revalidation",
	})

	// CacheMisses counts lookups that found no usable entry.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "branchdesk_cache_misses_total",
		Help: "Total number of cache misses",
	})

	// CacheSize tracks bytes written to Redis.
	CacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "branchdesk_cache_size_bytes",
		Help: "Bytes written to the response cache",
	})

	// CacheInvalidations counts keys removed after writes.
	CacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "branchdesk_cache_invalidations_total",
		Help: "Total number of cache keys removed by write invalidation",
	})

	// ConditionalRequestsSent counts requests carrying If-None-Match or If-Modified-Since.
	ConditionalRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "branchdesk_conditional_requests_total",
		Help: "Total number of conditional requests sent",
	})

	// CacheErrors counts Redis operation errors.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "branchdesk_cache_errors_total",
		Help: "Total number of cache operation errors",
	}, []string{"operation"}) // get, set, delete, scan
)
