package orders

import (
	"time"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
	"github.com/quantfold/polyarb/pkg/types"
)

// KindFOK is the only order kind the execution core submits. Fill-Or-Kill
// prevents partial fills that would leave an unhedged position.
const KindFOK = "FOK"

// MaxSlippage is the protocol ceiling on slippage tolerance (0.1%). It is
// also the default when no tolerance is requested.
var MaxSlippage = fixedpoint.MustParse("0.001")

// Order is one leg of a paired trade. It is created by the Manager, mutated
// exactly once by the submission result handler, and owned by the Manager's
// active table until cancelled or garbage-collected after settlement.
type Order struct {
	ID            string
	MarketID      string
	TokenID       string
	Side          types.Side
	Price         fixedpoint.Amount
	Size          fixedpoint.Amount
	Kind          string
	Slippage      fixedpoint.Amount
	CreatedAt     time.Time
	Filled        bool
	FillPrice     fixedpoint.Amount
	SettlementRef string
	Err           error
}

// PriceCeiling returns the maximum acceptable fill price:
// price * (1 + slippage). A fill at exactly the ceiling is acceptable.
func (o *Order) PriceCeiling() fixedpoint.Amount {
	return o.Price.Mul(fixedpoint.One + o.Slippage)
}

// Result is the venue's report for one submitted order.
type Result struct {
	Filled        bool
	FillPrice     fixedpoint.Amount
	SettlementRef string
}
