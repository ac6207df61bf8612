package types

import (
	"fmt"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

// ValidationError reports bad inputs, rejected before any I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CapacityError reports that the pending-transaction limit was reached.
type CapacityError struct {
	Pending int
	Max     int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("pending transaction limit reached: %d/%d", e.Pending, e.Max)
}

// NotFilledError reports a routine FOK outcome: neither leg filled.
type NotFilledError struct {
	MarketID string
}

func (e *NotFilledError) Error() string {
	return fmt.Sprintf("FOK pair not filled: market %s", e.MarketID)
}

// SlippageError reports a fill whose price exceeded the slippage ceiling.
type SlippageError struct {
	Side       Side
	LimitPrice fixedpoint.Amount
	FillPrice  fixedpoint.Amount
	Ceiling    fixedpoint.Amount
}

func (e *SlippageError) Error() string {
	return fmt.Sprintf("%s fill price %s exceeds slippage ceiling %s (limit %s)",
		e.Side, e.FillPrice, e.Ceiling, e.LimitPrice)
}

// AtomicExecutionError reports that exactly one leg of a pair filled. This is
// abnormal and signals possible unhedged exposure. Unhedged is true when the
// best-effort cancellation of the filled leg also failed, which requires
// manual intervention.
type AtomicExecutionError struct {
	MarketID   string
	FilledSide Side
	Unhedged   bool
	CancelErr  error
}

func (e *AtomicExecutionError) Error() string {
	if e.Unhedged {
		return fmt.Sprintf("atomic execution violated: %s leg filled on market %s and cancellation failed (%v) - UNHEDGED POSITION, manual intervention required",
			e.FilledSide, e.MarketID, e.CancelErr)
	}
	return fmt.Sprintf("atomic execution violated: %s leg filled on market %s, filled side cancelled",
		e.FilledSide, e.MarketID)
}

// TxErrorKind classifies transaction failures.
type TxErrorKind string

const (
	TxErrSign      TxErrorKind = "sign"
	TxErrBroadcast TxErrorKind = "broadcast"
	TxErrReverted  TxErrorKind = "reverted"
	TxErrTimeout   TxErrorKind = "timeout"
)

// TransactionError reports a signing, broadcast, revert or confirmation
// failure for one blockchain write.
type TransactionError struct {
	Kind TxErrorKind
	Hash string
	Err  error
}

func (e *TransactionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transaction %s: %s: %v", e.Hash, e.Kind, e.Err)
	}
	return fmt.Sprintf("transaction %s: %s", e.Hash, e.Kind)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// InsufficientBalanceError reports that a merge was refused because one side's
// position balance was short.
type InsufficientBalanceError struct {
	Side Side
	Have fixedpoint.Amount
	Need fixedpoint.Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: have %s, need %s (short %s)",
		e.Side, e.Have, e.Need, e.Need-e.Have)
}

// RedemptionInvariantError reports that a merge redeemed an amount
// inconsistent with what was merged. This indicates the $1.00 redemption
// assumption itself is broken and must halt further automated merging.
type RedemptionInvariantError struct {
	Expected  fixedpoint.Amount
	Redeemed  fixedpoint.Amount
	Tolerance fixedpoint.Amount
}

func (e *RedemptionInvariantError) Error() string {
	return fmt.Sprintf("redemption invariant violated: merged %s but redeemed %s (tolerance %s)",
		e.Expected, e.Redeemed, e.Tolerance)
}

// Known Polymarket CLOB API error codes.
const (
	ErrCodeFOKNotFilled     = "FOK_ORDER_NOT_FILLED_ERROR"
	ErrCodeNotEnoughBalance = "INVALID_ORDER_NOT_ENOUGH_BALANCE"
	ErrCodeMinTickSize      = "INVALID_ORDER_MIN_TICK_SIZE"
	ErrCodeMarketNotReady   = "MARKET_NOT_READY"
)
