package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dwmm_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"grammar"})

	IndexedModules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dwmm_indexed_modules_total",
		Help: "Number of modules (files and synthetic modules) in the suggestion index.",
	})

	IndexedIdentifiers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dwmm_indexed_identifiers_total",
		Help: "Number of distinct identifiers with at least one suggestion.",
	})

	PendingFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dwmm_pending_files",
		Help: "Number of known files not yet processed by the indexer.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dwmm_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	UnresolvedImportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dwmm_unresolved_imports_total",
		Help: "Total number of import sources that could not be resolved.",
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dwmm_request_seconds",
		Help:    "Time spent serving a daemon request.",
		Buckets: prometheus.DefBuckets,
	}, []string{"request"})

	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dwmm_requests_total",
		Help: "Total number of daemon requests by type and outcome.",
	}, []string{"request", "status"})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dwmm_rate_limited_total",
		Help: "Total number of requests rejected by the per-connection rate limiter.",
	})

	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dwmm_connected_clients",
		Help: "Current number of open client connections.",
	})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dwmm_cache_hits_total",
		Help: "Total number of files whose declarations were served from the cache.",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dwmm_cache_misses_total",
		Help: "Total number of files that had to be parsed.",
	})

	CacheQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dwmm_cache_queue_depth",
		Help: "Current number of declaration cache writes waiting to be applied.",
	})

	CacheWriteBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dwmm_cache_write_batches_total",
		Help: "Total number of declaration cache write batches by outcome.",
	}, []string{"status"})

	CacheDroppedWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dwmm_cache_dropped_writes_total",
		Help: "Total number of declaration cache writes dropped because the queue was full.",
	})
)
