package types

import (
	"time"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

// Side identifies one leg of a binary market.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Valid reports whether s is a recognized side.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// MarketQuote is a snapshot of the best executable prices for both outcomes
// of one binary market.
type MarketQuote struct {
	MarketID    string
	ConditionID string
	YesTokenID  string
	NoTokenID   string
	YesPrice    fixedpoint.Amount
	NoPrice     fixedpoint.Amount
	Timestamp   time.Time
}

// VenueQuote is one independently-priced leg for cross-venue detection.
// WithdrawalFee is the venue's flat settlement surcharge, added to the cost
// of any leg acquired there.
type VenueQuote struct {
	Venue         string
	MarketID      string
	TokenID       string
	Price         fixedpoint.Amount
	WithdrawalFee fixedpoint.Amount
}
