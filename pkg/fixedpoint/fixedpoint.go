// Package fixedpoint provides a fixed-point decimal amount with six decimal
// places, matching the precision of USDC and Polymarket outcome tokens on
// Polygon. Using integer micro-units keeps profit, slippage and redemption
// checks exact instead of approximate.
package fixedpoint

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

// Scale is the number of micro-units per whole unit.
const Scale = 1_000_000

// Amount is a fixed-point value in micro-units (scale 6).
type Amount int64

// Common constants.
const (
	Zero Amount = 0
	One  Amount = Scale
	Cent Amount = Scale / 100
)

// FromFloat converts a float to an Amount, rounding to the nearest micro-unit.
func FromFloat(f float64) Amount {
	return Amount(math.Round(f * Scale))
}

// FromInt converts a whole-unit integer to an Amount.
func FromInt(n int64) Amount {
	return Amount(n * Scale)
}

// FromBigInt converts a raw micro-unit big.Int (e.g. an on-chain uint256
// balance) to an Amount.
func FromBigInt(raw *big.Int) Amount {
	return Amount(raw.Int64())
}

// Parse parses a decimal string like "0.465" or "12.5" into an Amount.
// At most six fractional digits are accepted.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse amount: empty string")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	whole := s
	frac := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		whole = s[:idx]
		frac = s[idx+1:]
	}

	if len(frac) > 6 {
		return 0, fmt.Errorf("parse amount %q: more than 6 decimal places", s)
	}

	// Right-pad the fraction to exactly six digits.
	frac += strings.Repeat("0", 6-len(frac))

	if whole == "" {
		whole = "0"
	}

	var wholeN, fracN int64
	_, err := fmt.Sscanf(whole, "%d", &wholeN)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	_, err = fmt.Sscanf(frac, "%d", &fracN)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}

	v := Amount(wholeN*Scale + fracN)
	if neg {
		v = -v
	}
	return v, nil
}

// MustParse parses s or panics. For constants in tests and wiring code.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Float64 converts the Amount to a float. Lossy; for logging and metrics only.
func (a Amount) Float64() float64 {
	return float64(a) / Scale
}

// BigInt returns the raw micro-unit value, as expected by contract calls.
func (a Amount) BigInt() *big.Int {
	return big.NewInt(int64(a))
}

// Mul multiplies two amounts, truncating toward zero. The intermediate
// product is computed in big.Int to avoid int64 overflow.
func (a Amount) Mul(b Amount) Amount {
	p := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(int64(b)))
	p.Quo(p, big.NewInt(Scale))
	return Amount(p.Int64())
}

// Div divides a by b, truncating toward zero.
func (a Amount) Div(b Amount) Amount {
	if b == 0 {
		panic("fixedpoint: division by zero")
	}
	p := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(Scale))
	p.Quo(p, big.NewInt(int64(b)))
	return Amount(p.Int64())
}

// Abs returns the absolute value.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// String formats the Amount as a decimal with trailing zeros trimmed.
func (a Amount) String() string {
	neg := a < 0
	v := int64(a)
	if neg {
		v = -v
	}

	whole := v / Scale
	frac := v % Scale

	var s string
	if frac == 0 {
		s = fmt.Sprintf("%d", whole)
	} else {
		s = strings.TrimRight(fmt.Sprintf("%d.%06d", whole, frac), "0")
	}

	if neg {
		return "-" + s
	}
	return s
}
