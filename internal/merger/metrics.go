package merger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyarb_merger_merges_total",
		Help: "Merge operations by outcome",
	}, []string{"outcome"})

	RedeemedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_merger_redeemed_collateral_total",
		Help: "Total collateral redeemed through merges",
	})

	MergeConfirmSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_merger_confirm_seconds",
		Help:    "Time from merge submission to confirmation",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
