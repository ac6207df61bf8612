package markets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MetadataFetchDuration tracks metadata API fetch latency.
	MetadataFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_markets_metadata_fetch_duration_seconds",
		Help:    "Duration of trading rule fetch from CLOB API",
		Buckets: prometheus.DefBuckets,
	})

	// MetadataFetchErrorsTotal tracks metadata fetch failures.
	MetadataFetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_markets_metadata_fetch_errors_total",
		Help: "Total number of trading rule fetch errors",
	})

	// MetadataCacheHitsTotal tracks cache hits for trading rules.
	MetadataCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_markets_metadata_cache_hits_total",
		Help: "Total number of trading rule cache hits",
	})

	// MetadataCacheMissesTotal tracks cache misses for trading rules.
	MetadataCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_markets_metadata_cache_misses_total",
		Help: "Total number of trading rule cache misses",
	})
)
