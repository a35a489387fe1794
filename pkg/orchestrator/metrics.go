package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arcanum_orchestrator_attempts_total",
		Help: "Provider attempts, including retries and fallbacks.",
	}, []string{"provider"})

	metricAllFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcanum_orchestrator_all_providers_failed_total",
		Help: "Generate calls that exhausted every compatible provider.",
	})

	metricCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcanum_response_cache_hits_total",
		Help: "Response cache hits.",
	})

	metricCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcanum_response_cache_misses_total",
		Help: "Response cache misses.",
	})

	metricCacheErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcanum_response_cache_errors_total",
		Help: "Response cache I/O errors, degraded to misses.",
	})
)
