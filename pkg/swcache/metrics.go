package swcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by strategy
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_hits_total",
			Help: "Total number of cache hits by strategy",
		},
		[]string{"strategy"},
	)

	// CacheMisses tracks cache misses by strategy
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_misses_total",
			Help: "Total number of cache misses by strategy",
		},
		[]string{"strategy"},
	)

	// StrategyRequests tracks intercepted requests by chosen strategy
	StrategyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_strategy_requests_total",
			Help: "Total requests dispatched by cache strategy",
		},
		[]string{"strategy"},
	)

	// OfflineFallbacks tracks responses substituted by the offline document
	OfflineFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_offline_fallbacks_total",
			Help: "Total number of offline document fallbacks served",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "put", "delete", "purge"
	)

	// InstallsTotal tracks install attempts by outcome
	InstallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_installs_total",
			Help: "Total number of cache install attempts by outcome",
		},
		[]string{"outcome"}, // "ok", "failed"
	)

	// GenerationsPurged tracks stale cache generations removed on activation
	GenerationsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_cache_generations_purged_total",
			Help: "Total number of stale cache generations purged on activation",
		},
	)
)
