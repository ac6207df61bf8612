// Package testutil provides shared fixtures and fakes for package tests.
package testutil

import (
	"time"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
	"github.com/quantfold/polyarb/pkg/types"
)

// Quote builds a market quote with the given YES and NO ask prices.
func Quote(marketID string, yesPrice, noPrice fixedpoint.Amount) types.MarketQuote {
	return types.MarketQuote{
		MarketID:    marketID,
		ConditionID: "0x" + marketID + "c0nd",
		YesTokenID:  "1111",
		NoTokenID:   "2222",
		YesPrice:    yesPrice,
		NoPrice:     noPrice,
		Timestamp:   time.Now(),
	}
}

// GammaMarket builds a binary market in the Gamma API's wire shape, with
// the outcome and token arrays string-encoded the way the API returns them.
func GammaMarket(id, slug, question string) types.GammaMarket {
	return types.GammaMarket{
		ID:          id,
		Question:    question,
		Slug:        slug,
		ConditionID: "0x" + id,
		Closed:      false,
		Active:      true,
		Outcomes:    `["Yes", "No"]`,
		ClobTokens:  `["` + id + `01", "` + id + `02"]`,
		Tokens: []types.Token{
			{TokenID: id + "01", Outcome: "Yes"},
			{TokenID: id + "02", Outcome: "No"},
		},
		CreatedAt: time.Now(),
	}
}
