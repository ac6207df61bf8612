package types

import (
	"time"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

// TradeStatus is the terminal state of one opportunity execution.
type TradeStatus string

const (
	TradeSuccess TradeStatus = "success"
	TradeFailed  TradeStatus = "failed"
)

// LegResult records the terminal fill state of one order leg.
type LegResult struct {
	OrderID       string
	Filled        bool
	FillPrice     fixedpoint.Amount
	SettlementRef string
}

// TradeResult is the write-once outcome of one full opportunity execution:
// paired acquisition plus merge. Created when execution terminates and never
// mutated afterwards.
type TradeResult struct {
	TradeID       string
	OpportunityID string
	MarketID      string
	ExecutedAt    time.Time
	Yes           LegResult
	No            LegResult
	ActualCost    fixedpoint.Amount
	ActualProfit  fixedpoint.Amount
	GasCost       fixedpoint.Amount
	NetProfit     fixedpoint.Amount
	MergeTxHash   string
	Status        TradeStatus
	ErrorMessage  string
}
