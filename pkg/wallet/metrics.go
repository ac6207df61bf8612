package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// NativeBalance tracks the gas token balance.
	NativeBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_wallet_native_balance",
		Help: "Current gas token balance in wallet (native units)",
	})

	// CollateralBalance tracks the current USDC balance for trading.
	CollateralBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_wallet_collateral_balance",
		Help: "Current collateral balance in wallet (USD)",
	})

	// CollateralAllowance tracks the allowance approved to the exchange.
	CollateralAllowance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_wallet_collateral_allowance",
		Help: "Collateral allowance approved to the exchange (USD)",
	})

	// ActivePositions tracks the number of open positions.
	ActivePositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_wallet_active_positions",
		Help: "Number of open positions",
	})

	// TotalPositionValue tracks the sum of all position current values.
	TotalPositionValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_wallet_total_position_value",
		Help: "Sum of all position current values (USD)",
	})

	// TotalPositionCost tracks the sum of all position initial costs.
	TotalPositionCost = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_wallet_total_position_cost",
		Help: "Sum of all position initial costs (USD)",
	})

	// UnrealizedPnL tracks the total unrealized profit/loss from positions.
	UnrealizedPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_wallet_unrealized_pnl",
		Help: "Total unrealized P&L from positions (USD)",
	})

	// UnrealizedPnLPercent tracks the total unrealized P&L as a percentage.
	UnrealizedPnLPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_wallet_unrealized_pnl_percent",
		Help: "Total unrealized P&L as percentage",
	})

	// PortfolioValue tracks the total portfolio value (collateral + positions).
	PortfolioValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_wallet_portfolio_value",
		Help: "Total portfolio value: collateral + positions (USD)",
	})

	// UpdateErrorsTotal tracks the number of failed update attempts.
	UpdateErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_wallet_update_errors_total",
		Help: "Total number of failed wallet update attempts",
	})

	// UpdateDuration tracks the time taken to fetch wallet data.
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_wallet_update_duration_seconds",
		Help:    "Time taken to fetch wallet data (seconds)",
		Buckets: prometheus.DefBuckets,
	})

	// LastUpdateTimestamp tracks the Unix timestamp of the last successful update.
	LastUpdateTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_wallet_last_update_timestamp",
		Help: "Unix timestamp of last successful wallet update",
	})
)
