package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for cache operations.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_cache_hits_total",
		Help: "Total fresh cache hits",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_cache_misses_total",
		Help: "Total cache misses (absent or stale entries)",
	})

	cacheResetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_cache_resets_total",
		Help: "Cache resets on load by reason",
	}, []string{"reason"})
)
