package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreLatency records per-operation store latency. Populated by the
	// metrics store decorator.
	StoreLatency *prometheus.HistogramVec

	// RetryAttemptsTotal counts retried store operations by name.
	RetryAttemptsTotal *prometheus.CounterVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
)

var initOnce sync.Once

// Init registers all Prometheus metrics. Must be called before any store or
// cache initialization that records metrics. Safe to call multiple times;
// only the first call registers.
func Init() {
	initOnce.Do(func() {
		f := promauto.With(prometheus.DefaultRegisterer)

		StoreLatency = f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conversation_service_store_latency_seconds",
				Help:    "Latency of conversation store operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		)
		RetryAttemptsTotal = f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conversation_service_store_retries_total",
				Help: "Total retried store operations",
			},
			[]string{"operation"},
		)
		CacheHitsTotal = f.NewCounter(prometheus.CounterOpts{
			Name: "conversation_service_thread_cache_hits_total",
			Help: "Thread cache hits",
		})
		CacheMissesTotal = f.NewCounter(prometheus.CounterOpts{
			Name: "conversation_service_thread_cache_misses_total",
			Help: "Thread cache misses",
		})
	})
}
