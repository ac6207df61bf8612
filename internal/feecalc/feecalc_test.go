package feecalc

import (
	"testing"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

func TestDynamicFeeRate(t *testing.T) {
	calc := NewDynamic()

	tests := []struct {
		name  string
		price string
		want  string
	}{
		{name: "even-odds-peak", price: "0.5", want: "0.03"},
		{name: "quarter", price: "0.25", want: "0.015"},
		{name: "three-quarters", price: "0.75", want: "0.015"},
		{name: "near-certain-floor", price: "0.99", want: "0.001"},
		{name: "near-zero-floor", price: "0.01", want: "0.001"},
		{name: "slightly-off-even", price: "0.46", want: "0.0276"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.FeeRate(fixedpoint.MustParse(tt.price))
			want := fixedpoint.MustParse(tt.want)
			if got != want {
				t.Errorf("FeeRate(%s) = %s, want %s", tt.price, got, want)
			}
		})
	}
}

func TestDynamicFeeSymmetry(t *testing.T) {
	calc := NewDynamic()

	// fee(p) must equal fee(1-p) across the price range.
	for _, p := range []string{"0.1", "0.25", "0.4", "0.45", "0.49"} {
		price := fixedpoint.MustParse(p)
		mirror := fixedpoint.One - price
		if calc.FeeRate(price) != calc.FeeRate(mirror) {
			t.Errorf("fee asymmetry: fee(%s)=%s, fee(%s)=%s",
				price, calc.FeeRate(price), mirror, calc.FeeRate(mirror))
		}
	}
}

func TestDynamicTotalCost(t *testing.T) {
	calc := NewDynamic()

	yes := fixedpoint.MustParse("0.46")
	no := fixedpoint.MustParse("0.49")

	yesFee, noFee, total := calc.TotalCost(yes, no)

	// fee(0.46) = 0.03 * 0.92 = 0.0276, fee(0.49) = 0.03 * 0.98 = 0.0294
	if yesFee != fixedpoint.MustParse("0.0276") {
		t.Errorf("yes fee = %s, want 0.0276", yesFee)
	}
	if noFee != fixedpoint.MustParse("0.0294") {
		t.Errorf("no fee = %s, want 0.0294", noFee)
	}

	wantTotal := yes.Mul(fixedpoint.One+yesFee) + no.Mul(fixedpoint.One+noFee)
	if total != wantTotal {
		t.Errorf("total cost = %s, want %s", total, wantTotal)
	}
	if total >= fixedpoint.One {
		t.Errorf("expected paired cost below 1.00, got %s", total)
	}
}

func TestZeroCalculator(t *testing.T) {
	calc := Zero{}

	if got := calc.FeeRate(fixedpoint.MustParse("0.5")); got != 0 {
		t.Errorf("Zero.FeeRate = %s, want 0", got)
	}

	yesFee, noFee, total := calc.TotalCost(fixedpoint.MustParse("0.4"), fixedpoint.MustParse("0.5"))
	if yesFee != 0 || noFee != 0 {
		t.Errorf("Zero fees = %s/%s, want 0/0", yesFee, noFee)
	}
	if total != fixedpoint.MustParse("0.9") {
		t.Errorf("Zero total = %s, want 0.9", total)
	}
}
