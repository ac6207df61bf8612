// Package feecalc computes venue fee rates and the total cost of acquiring
// both outcomes of a binary market. The default schedule is the 2025 dynamic
// fee formula: fees peak at even odds and floor out near the extremes.
package feecalc

import (
	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

// Calculator maps prices to fee rates and paired-acquisition cost. The
// execution core treats the schedule as externally supplied; any
// implementation can be injected.
type Calculator interface {
	// FeeRate returns the taker fee rate for a fill at the given price.
	FeeRate(price fixedpoint.Amount) fixedpoint.Amount

	// TotalCost returns both legs' fee rates and the total cost of buying
	// one YES and one NO at the given prices:
	// yes*(1+yesFee) + no*(1+noFee).
	TotalCost(yesPrice, noPrice fixedpoint.Amount) (yesFee, noFee, totalCost fixedpoint.Amount)
}

// Dynamic fee schedule parameters.
var (
	feeBase  = fixedpoint.MustParse("0.03")  // peak rate at 50/50 odds
	feeFloor = fixedpoint.MustParse("0.001") // minimum rate
)

// Dynamic implements Calculator with the dynamic fee formula:
// fee(p) = max(0.001, 0.03 * (1 - |2p - 1|)).
type Dynamic struct{}

// NewDynamic creates the default dynamic fee calculator.
func NewDynamic() *Dynamic {
	return &Dynamic{}
}

// FeeRate computes the dynamic fee rate for a price.
func (d *Dynamic) FeeRate(price fixedpoint.Amount) fixedpoint.Amount {
	// Distance from even odds, in [0, 1].
	dist := (2*price - fixedpoint.One).Abs()
	if dist > fixedpoint.One {
		dist = fixedpoint.One
	}

	fee := feeBase.Mul(fixedpoint.One - dist)
	if fee < feeFloor {
		fee = feeFloor
	}
	return fee
}

// TotalCost computes per-leg fee rates and the fee-inclusive cost of the pair.
func (d *Dynamic) TotalCost(yesPrice, noPrice fixedpoint.Amount) (yesFee, noFee, totalCost fixedpoint.Amount) {
	yesFee = d.FeeRate(yesPrice)
	noFee = d.FeeRate(noPrice)

	yesCost := yesPrice.Mul(fixedpoint.One + yesFee)
	noCost := noPrice.Mul(fixedpoint.One + noFee)

	return yesFee, noFee, yesCost + noCost
}

// Zero implements Calculator with no fees. Used on fee-free markets and in
// tests.
type Zero struct{}

// FeeRate always returns zero.
func (Zero) FeeRate(fixedpoint.Amount) fixedpoint.Amount {
	return 0
}

// TotalCost returns zero fees and the plain price sum.
func (Zero) TotalCost(yesPrice, noPrice fixedpoint.Amount) (yesFee, noFee, totalCost fixedpoint.Amount) {
	return 0, 0, yesPrice + noPrice
}
