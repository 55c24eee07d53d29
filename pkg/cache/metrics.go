package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for cache operations.
var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "animals_cache_hits_total",
		Help: "Total detail cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "animals_cache_misses_total",
		Help: "Total detail cache misses",
	})

	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animals_cache_errors_total",
		Help: "Total cache operation errors by operation",
	}, []string{"operation"})
)
