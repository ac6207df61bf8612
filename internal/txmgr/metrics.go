package txmgr

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// NoncesAllocatedTotal counts nonce reservations.
	NoncesAllocatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_txmgr_nonces_allocated_total",
		Help: "Total number of nonces allocated",
	})

	// TransactionsSentTotal counts broadcast transactions.
	TransactionsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_txmgr_transactions_sent_total",
		Help: "Total number of transactions broadcast",
	})

	// ConfirmationsTotal counts confirmation outcomes.
	ConfirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_txmgr_confirmations_total",
			Help: "Total number of confirmation outcomes",
		},
		[]string{"status"},
	)

	// ResubmissionsTotal counts gas-escalated resubmissions.
	ResubmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_txmgr_resubmissions_total",
		Help: "Total number of stuck transactions resubmitted with higher gas",
	})

	// CapacityRejectionsTotal counts sends rejected by the pending cap.
	CapacityRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_txmgr_capacity_rejections_total",
		Help: "Total number of sends rejected by the pending-transaction limit",
	})

	// PendingTransactions tracks the current pending set size.
	PendingTransactions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_txmgr_pending_transactions",
		Help: "Current number of pending transactions",
	})

	// ConfirmationWaitSeconds tracks confirmation latency.
	ConfirmationWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_txmgr_confirmation_wait_seconds",
		Help:    "Time between broadcast poll start and receipt observation",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
