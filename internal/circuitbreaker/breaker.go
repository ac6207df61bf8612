// Package circuitbreaker halts trade execution when the funding wallet's
// collateral balance drops below a dynamic threshold. The threshold tracks
// recent trade sizes; hysteresis keeps the breaker from flapping when the
// balance hovers near the limit.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/quantfold/polyarb/internal/detector"
	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

// ErrBalanceLow is returned by Approve while the breaker is open.
var ErrBalanceLow = errors.New("collateral balance below circuit breaker threshold")

// BalanceSource reads the wallet's collateral balance. *ledger.Contracts
// satisfies it.
type BalanceSource interface {
	CollateralBalance(ctx context.Context, owner common.Address) (fixedpoint.Amount, error)
}

const tradeWindow = 20

// Breaker monitors the collateral balance and vetoes opportunities while it
// is below threshold. The disable threshold is the larger of the configured
// absolute minimum and TradeMultiplier times the average recent trade cost.
type Breaker struct {
	enabled atomic.Bool

	checkInterval   time.Duration
	balances        BalanceSource
	address         common.Address
	logger          *zap.Logger
	tradeMultiplier int64
	minAbsolute     fixedpoint.Amount
	hysteresisPct   int64 // enable threshold = disable threshold * (100+pct)/100

	mu               sync.RWMutex
	lastBalance      fixedpoint.Amount
	lastCheck        time.Time
	recentTrades     []fixedpoint.Amount
	disableThreshold fixedpoint.Amount
	enableThreshold  fixedpoint.Amount
}

// Config holds circuit breaker configuration.
type Config struct {
	CheckInterval   time.Duration     // balance poll cadence, default 30s
	TradeMultiplier int64             // default 3
	MinAbsolute     fixedpoint.Amount // default $10
	HysteresisPct   int64             // default 20
	Balances        BalanceSource
	Address         common.Address
	Logger          *zap.Logger
}

// Status holds the current breaker state for debugging and HTTP endpoints.
type Status struct {
	Enabled          bool
	LastBalance      fixedpoint.Amount
	LastCheck        time.Time
	DisableThreshold fixedpoint.Amount
	EnableThreshold  fixedpoint.Amount
	AvgTradeCost     fixedpoint.Amount
	RecentTradeCount int
}

// New creates a breaker. It starts enabled; the first balance check happens
// when Start runs.
func New(cfg *Config) (*Breaker, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Balances == nil {
		return nil, errors.New("balance source cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.TradeMultiplier <= 0 {
		cfg.TradeMultiplier = 3
	}
	if cfg.MinAbsolute <= 0 {
		cfg.MinAbsolute = fixedpoint.FromInt(10)
	}
	if cfg.HysteresisPct <= 0 {
		cfg.HysteresisPct = 20
	}

	b := &Breaker{
		checkInterval:    cfg.CheckInterval,
		balances:         cfg.Balances,
		address:          cfg.Address,
		logger:           cfg.Logger,
		tradeMultiplier:  cfg.TradeMultiplier,
		minAbsolute:      cfg.MinAbsolute,
		hysteresisPct:    cfg.HysteresisPct,
		recentTrades:     make([]fixedpoint.Amount, 0, tradeWindow),
		disableThreshold: cfg.MinAbsolute,
	}
	b.enableThreshold = b.withHysteresis(b.disableThreshold)
	b.enabled.Store(true)

	BreakerEnabled.Set(1)
	BreakerDisableThreshold.Set(b.disableThreshold.Float64())
	BreakerEnableThreshold.Set(b.enableThreshold.Float64())

	return b, nil
}

// Approve implements the engine's safety gate surface. Lock-free; safe on
// the hot path.
func (b *Breaker) Approve(_ *detector.Opportunity) error {
	if !b.enabled.Load() {
		return ErrBalanceLow
	}
	return nil
}

// RecordTrade adds an executed trade's cost to the rolling window and
// recalculates the thresholds.
func (b *Breaker) RecordTrade(cost fixedpoint.Amount) {
	if cost <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.recentTrades = append(b.recentTrades, cost)
	if len(b.recentTrades) > tradeWindow {
		b.recentTrades = b.recentTrades[1:]
	}

	avg := average(b.recentTrades)
	threshold := avg * fixedpoint.Amount(b.tradeMultiplier)
	if threshold < b.minAbsolute {
		threshold = b.minAbsolute
	}
	b.disableThreshold = threshold
	b.enableThreshold = b.withHysteresis(threshold)

	BreakerAvgTradeCost.Set(avg.Float64())
	BreakerDisableThreshold.Set(b.disableThreshold.Float64())
	BreakerEnableThreshold.Set(b.enableThreshold.Float64())

	b.logger.Debug("breaker-thresholds-updated",
		zap.String("avg-trade-cost", avg.String()),
		zap.Int("trade-count", len(b.recentTrades)),
		zap.String("disable-threshold", b.disableThreshold.String()),
		zap.String("enable-threshold", b.enableThreshold.String()))
}

// CheckBalance fetches the collateral balance and flips the breaker state if
// a threshold is crossed.
func (b *Breaker) CheckBalance(ctx context.Context) error {
	start := time.Now()
	defer func() {
		BreakerCheckDuration.Observe(time.Since(start).Seconds())
	}()

	balance, err := b.balances.CollateralBalance(ctx, b.address)
	if err != nil {
		b.logger.Error("breaker-balance-check-failed",
			zap.String("address", b.address.Hex()),
			zap.Error(err))
		return err
	}

	b.mu.Lock()
	b.lastBalance = balance
	b.lastCheck = time.Now()
	disable := b.disableThreshold
	enable := b.enableThreshold
	b.mu.Unlock()

	BreakerBalance.Set(balance.Float64())

	currentlyEnabled := b.enabled.Load()
	switch {
	case currentlyEnabled && balance < disable:
		b.enabled.Store(false)
		BreakerEnabled.Set(0)
		BreakerStateChanges.Inc()
		b.logger.Warn("circuit-breaker-opened",
			zap.String("balance", balance.String()),
			zap.String("disable-threshold", disable.String()))
	case !currentlyEnabled && balance >= enable:
		b.enabled.Store(true)
		BreakerEnabled.Set(1)
		BreakerStateChanges.Inc()
		b.logger.Info("circuit-breaker-closed",
			zap.String("balance", balance.String()),
			zap.String("enable-threshold", enable.String()))
	}

	return nil
}

// Start checks the balance once, then launches the background monitor loop.
func (b *Breaker) Start(ctx context.Context) {
	b.logger.Info("circuit-breaker-started",
		zap.Duration("check-interval", b.checkInterval),
		zap.Int64("trade-multiplier", b.tradeMultiplier),
		zap.String("min-absolute", b.minAbsolute.String()))

	if err := b.CheckBalance(ctx); err != nil {
		b.logger.Error("initial-balance-check-failed", zap.Error(err))
	}

	go b.monitorLoop(ctx)
}

func (b *Breaker) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(b.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("circuit-breaker-stopped")
			return
		case <-ticker.C:
			if err := b.CheckBalance(ctx); err != nil {
				b.logger.Error("breaker-balance-check-error", zap.Error(err))
			}
		}
	}
}

// GetStatus returns the current breaker state.
func (b *Breaker) GetStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Status{
		Enabled:          b.enabled.Load(),
		LastBalance:      b.lastBalance,
		LastCheck:        b.lastCheck,
		DisableThreshold: b.disableThreshold,
		EnableThreshold:  b.enableThreshold,
		AvgTradeCost:     average(b.recentTrades),
		RecentTradeCount: len(b.recentTrades),
	}
}

func (b *Breaker) withHysteresis(threshold fixedpoint.Amount) fixedpoint.Amount {
	return threshold * fixedpoint.Amount(100+b.hysteresisPct) / 100
}

func average(trades []fixedpoint.Amount) fixedpoint.Amount {
	if len(trades) == 0 {
		return 0
	}
	var sum fixedpoint.Amount
	for _, t := range trades {
		sum += t
	}
	return sum / fixedpoint.Amount(len(trades))
}
