package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyarb_engine_trades_total",
		Help: "Trade pipeline outcomes",
	}, []string{"outcome"})

	ProfitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_engine_net_profit_total",
		Help: "Cumulative net profit of successful trades",
	})

	TradeDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_engine_trade_duration_seconds",
		Help:    "Wall time of one opportunity execution",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	StuckResubmitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_engine_stuck_resubmits_total",
		Help: "Stuck transactions resubmitted by the sweep",
	})
)
