package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Tracker periodically fetches wallet data and updates Prometheus metrics.
type Tracker struct {
	client       *Client
	address      common.Address
	pollInterval time.Duration
	logger       *zap.Logger
}

// Config holds tracker configuration.
type Config struct {
	Client       *Client
	Address      common.Address
	PollInterval time.Duration
	Logger       *zap.Logger
}

// New creates a wallet tracker.
func New(cfg *Config) (*Tracker, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Client == nil {
		return nil, errors.New("client cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}

	return &Tracker{
		client:       cfg.Client,
		address:      cfg.Address,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}, nil
}

// Run starts the tracker polling loop (blocking).
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Info("wallet-tracker-starting",
		zap.Duration("poll-interval", t.pollInterval),
		zap.String("address", t.address.Hex()))

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	if err := t.poll(ctx); err != nil {
		t.logger.Error("initial-poll-failed", zap.Error(err))
		UpdateErrorsTotal.Inc()
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("wallet-tracker-stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := t.poll(ctx); err != nil {
				t.logger.Error("poll-failed", zap.Error(err))
				UpdateErrorsTotal.Inc()
			}
		}
	}
}

// poll performs a single polling cycle.
func (t *Tracker) poll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		UpdateDuration.Observe(time.Since(start).Seconds())
	}()

	balCtx, balCancel := context.WithTimeout(ctx, 15*time.Second)
	defer balCancel()

	balances, err := t.client.GetBalances(balCtx, t.address)
	if err != nil {
		return fmt.Errorf("get balances: %w", err)
	}

	posCtx, posCancel := context.WithTimeout(ctx, 15*time.Second)
	defer posCancel()

	positions, err := t.client.GetPositions(posCtx, t.address.Hex())
	if err != nil {
		return fmt.Errorf("get positions: %w", err)
	}

	t.updateMetrics(balances, positions)
	LastUpdateTimestamp.Set(float64(time.Now().Unix()))

	t.logger.Debug("wallet-poll-complete",
		zap.Int("position-count", len(positions)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// updateMetrics updates Prometheus gauges with wallet data.
func (t *Tracker) updateMetrics(balances *Balances, positions []Position) {
	nativeFloat := new(big.Float).Quo(
		new(big.Float).SetInt(balances.Native),
		big.NewFloat(1e18))
	nativeVal, _ := nativeFloat.Float64()
	NativeBalance.Set(nativeVal)

	collateralVal := balances.Collateral.Float64()
	CollateralBalance.Set(collateralVal)
	CollateralAllowance.Set(balances.Allowance.Float64())

	totalValue := 0.0
	totalCost := 0.0
	totalPnL := 0.0
	for _, pos := range positions {
		totalValue += pos.Value
		totalCost += pos.InitialValue
		totalPnL += pos.CashPnL
	}

	ActivePositions.Set(float64(len(positions)))
	TotalPositionValue.Set(totalValue)
	TotalPositionCost.Set(totalCost)
	UnrealizedPnL.Set(totalPnL)

	pnlPct := 0.0
	if totalCost > 0 {
		pnlPct = (totalPnL / totalCost) * 100
	}
	UnrealizedPnLPercent.Set(pnlPct)

	PortfolioValue.Set(collateralVal + totalValue)
}
