package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerEnabled indicates whether the breaker allows trade execution.
	BreakerEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_circuit_breaker_enabled",
		Help: "Whether circuit breaker allows trade execution (1=enabled, 0=disabled)",
	})

	// BreakerBalance tracks the last checked collateral balance.
	BreakerBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_circuit_breaker_balance_usdc",
		Help: "Last checked collateral balance in the wallet",
	})

	// BreakerDisableThreshold tracks the current threshold for opening the breaker.
	BreakerDisableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_circuit_breaker_disable_threshold_usdc",
		Help: "Collateral balance threshold for halting execution (dynamically calculated)",
	})

	// BreakerEnableThreshold tracks the current threshold for closing the breaker.
	BreakerEnableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_circuit_breaker_enable_threshold_usdc",
		Help: "Collateral balance threshold for resuming execution (with hysteresis)",
	})

	// BreakerAvgTradeCost tracks the rolling average trade cost.
	BreakerAvgTradeCost = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_circuit_breaker_avg_trade_cost_usdc",
		Help: "Rolling average cost of recent trades (threshold input)",
	})

	// BreakerStateChanges counts breaker state transitions.
	BreakerStateChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_circuit_breaker_state_changes_total",
		Help: "Total number of circuit breaker state transitions",
	})

	// BreakerCheckDuration tracks balance check latency.
	BreakerCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_circuit_breaker_check_duration_seconds",
		Help:    "Time taken to check the wallet collateral balance",
		Buckets: prometheus.DefBuckets,
	})
)
