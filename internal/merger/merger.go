// Package merger redeems matched YES+NO positions for collateral by calling
// the CTF mergePositions function, and verifies that each merge actually
// redeemed what was merged. A redemption mismatch means the $1.00 assumption
// underpinning the whole strategy is broken, so it halts further merging.
package merger

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/quantfold/polyarb/internal/txmgr"
	"github.com/quantfold/polyarb/pkg/fixedpoint"
	"github.com/quantfold/polyarb/pkg/ledger"
	"github.com/quantfold/polyarb/pkg/types"
)

// ErrHalted is returned once a redemption-invariant violation has stopped
// automated merging. Clearing it requires an explicit Resume after manual
// review.
var ErrHalted = errors.New("merging halted after redemption invariant violation")

// BalanceReader reads position and collateral balances for the signer.
type BalanceReader interface {
	PositionBalance(ctx context.Context, owner common.Address, tokenID *big.Int) (fixedpoint.Amount, error)
	CollateralBalance(ctx context.Context, owner common.Address) (fixedpoint.Amount, error)
}

// TxSender is the Transaction Manager surface the merger uses. All nonce
// handling and broadcast bookkeeping stays behind it.
type TxSender interface {
	Send(ctx context.Context, payload txmgr.Payload) (common.Hash, error)
	AwaitConfirmation(ctx context.Context, hash common.Hash, timeout time.Duration) (*ethtypes.Receipt, error)
}

// GasEstimator estimates gas for a contract call. ledger.Client satisfies it.
type GasEstimator interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// Config holds merger configuration.
type Config struct {
	Tolerance       fixedpoint.Amount // redemption verification tolerance
	GasLimitDefault uint64            // fallback when estimation fails
	ConfirmTimeout  time.Duration
	Logger          *zap.Logger
}

// Defaults for zero-valued Config fields.
const DefaultGasLimit = 300_000

// DefaultTolerance absorbs rounding in the redeemed-amount check ($0.01).
var DefaultTolerance = fixedpoint.Cent

// Merger executes and verifies merge operations for one signer.
type Merger struct {
	contracts *ledger.Contracts
	balances  BalanceReader
	estimator GasEstimator
	tx        TxSender
	owner     common.Address
	cfg       Config
	logger    *zap.Logger

	halted atomic.Bool
}

// New creates a position merger.
func New(contracts *ledger.Contracts, balances BalanceReader, estimator GasEstimator, tx TxSender, owner common.Address, cfg Config) *Merger {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.GasLimitDefault == 0 {
		cfg.GasLimitDefault = DefaultGasLimit
	}

	return &Merger{
		contracts: contracts,
		balances:  balances,
		estimator: estimator,
		tx:        tx,
		owner:     owner,
		cfg:       cfg,
		logger:    cfg.Logger,
	}
}

// Merge redeems amount YES+NO pairs of the given condition for collateral.
// Balances are verified before any transaction is built, so an underfunded
// merge costs no gas. After confirmation the collateral delta is checked
// against amount within the configured tolerance; a violation halts further
// merging.
func (m *Merger) Merge(ctx context.Context, conditionID common.Hash, yesToken, noToken *big.Int, amount fixedpoint.Amount) (*ethtypes.Receipt, error) {
	if m.halted.Load() {
		return nil, ErrHalted
	}
	if amount <= 0 {
		return nil, &types.ValidationError{Field: "amount", Reason: "must be positive, got " + amount.String()}
	}

	yesBalance, err := m.balances.PositionBalance(ctx, m.owner, yesToken)
	if err != nil {
		return nil, err
	}
	if yesBalance < amount {
		return nil, &types.InsufficientBalanceError{Side: types.SideYes, Have: yesBalance, Need: amount}
	}

	noBalance, err := m.balances.PositionBalance(ctx, m.owner, noToken)
	if err != nil {
		return nil, err
	}
	if noBalance < amount {
		return nil, &types.InsufficientBalanceError{Side: types.SideNo, Have: noBalance, Need: amount}
	}

	collateralBefore, err := m.balances.CollateralBalance(ctx, m.owner)
	if err != nil {
		return nil, err
	}

	data, err := m.contracts.MergeCalldata(conditionID, amount)
	if err != nil {
		return nil, err
	}

	gasLimit := m.estimateGas(ctx, data)

	m.logger.Info("merge-submitting",
		zap.String("condition-id", conditionID.Hex()),
		zap.String("amount", amount.String()),
		zap.Uint64("gas-limit", gasLimit))

	start := time.Now()
	hash, err := m.tx.Send(ctx, txmgr.Payload{
		To:       m.contracts.CTFAddress(),
		GasLimit: gasLimit,
		Data:     data,
	})
	if err != nil {
		MergesTotal.WithLabelValues("send_failed").Inc()
		return nil, err
	}

	receipt, err := m.tx.AwaitConfirmation(ctx, hash, m.cfg.ConfirmTimeout)
	if err != nil {
		MergesTotal.WithLabelValues("confirm_failed").Inc()
		return nil, err
	}
	MergeConfirmSeconds.Observe(time.Since(start).Seconds())

	collateralAfter, err := m.balances.CollateralBalance(ctx, m.owner)
	if err != nil {
		return nil, err
	}

	redeemed := collateralAfter - collateralBefore
	if (redeemed - amount).Abs() > m.cfg.Tolerance {
		m.halted.Store(true)
		MergesTotal.WithLabelValues("invariant_violation").Inc()
		m.logger.Error("redemption-invariant-violated-halting",
			zap.String("tx-hash", hash.Hex()),
			zap.String("merged", amount.String()),
			zap.String("redeemed", redeemed.String()),
			zap.String("tolerance", m.cfg.Tolerance.String()))
		return receipt, &types.RedemptionInvariantError{
			Expected:  amount,
			Redeemed:  redeemed,
			Tolerance: m.cfg.Tolerance,
		}
	}

	MergesTotal.WithLabelValues("success").Inc()
	RedeemedTotal.Add(redeemed.Float64())
	m.logger.Info("merge-confirmed",
		zap.String("tx-hash", hash.Hex()),
		zap.String("redeemed", redeemed.String()),
		zap.Uint64("gas-used", receipt.GasUsed))

	return receipt, nil
}

// estimateGas estimates gas for the merge call with a 20% buffer, falling
// back to the configured default when estimation itself fails.
func (m *Merger) estimateGas(ctx context.Context, data []byte) uint64 {
	to := m.contracts.CTFAddress()
	estimate, err := m.estimator.EstimateGas(ctx, ethereum.CallMsg{
		From: m.owner,
		To:   &to,
		Data: data,
	})
	if err != nil {
		m.logger.Warn("gas-estimation-failed-using-default",
			zap.Uint64("default", m.cfg.GasLimitDefault),
			zap.Error(err))
		return m.cfg.GasLimitDefault
	}
	return estimate + estimate/5
}

// Halted reports whether automated merging is stopped.
func (m *Merger) Halted() bool {
	return m.halted.Load()
}

// Resume clears the halt after manual review of a redemption violation.
func (m *Merger) Resume() {
	m.halted.Store(false)
	m.logger.Warn("merge-halt-cleared")
}
