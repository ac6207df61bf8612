package orders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// OrdersCreatedTotal counts orders created, by side.
	OrdersCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_orders_created_total",
			Help: "Total number of orders created",
		},
		[]string{"side"},
	)

	// PairsSubmittedTotal counts pair submissions by terminal outcome.
	PairsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_orders_pairs_submitted_total",
			Help: "Total number of order pairs submitted, by outcome",
		},
		[]string{"outcome"},
	)

	// CancellationsTotal counts explicit order cancellations.
	CancellationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_orders_cancellations_total",
		Help: "Total number of orders cancelled",
	})

	// UnhedgedAlertsTotal counts cancellation failures after a one-sided fill.
	UnhedgedAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_orders_unhedged_alerts_total",
		Help: "Total number of unhedged-position alerts requiring manual intervention",
	})

	// PairSubmitSeconds tracks pair submission round-trip latency.
	PairSubmitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_orders_pair_submit_seconds",
		Help:    "Duration of paired order submission",
		Buckets: prometheus.DefBuckets,
	})
)
