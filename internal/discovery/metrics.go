package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MarketsDiscoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_discovery_markets_total",
		Help: "Markets fetched from the metadata API",
	})

	NewMarketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_discovery_new_markets_total",
		Help: "New tradable markets handed to the quote feed",
	})

	PollDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_discovery_poll_duration_seconds",
		Help:    "Metadata API poll duration",
		Buckets: prometheus.DefBuckets,
	})

	PollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_discovery_poll_errors_total",
		Help: "Metadata API poll failures",
	})
)
