package types

import (
	"time"

	json "github.com/goccy/go-json"
)

// GammaMarket is a market record from the metadata API. Outcomes and token
// IDs arrive as JSON-encoded string arrays and are unpacked into Tokens.
type GammaMarket struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	Slug        string    `json:"slug"`
	ConditionID string    `json:"conditionId"`
	Closed      bool      `json:"closed"`
	Active      bool      `json:"active"`
	Tokens      []Token   `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	EndDate     time.Time `json:"endDate"`
	Outcomes    string    `json:"outcomes"`
	ClobTokens  string    `json:"clobTokenIds"`
}

// UnmarshalJSON unpacks the string-encoded outcome and token arrays.
func (m *GammaMarket) UnmarshalJSON(data []byte) error {
	type Alias GammaMarket
	aux := &struct{ *Alias }{Alias: (*Alias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if m.Outcomes == "" || m.ClobTokens == "" {
		return nil
	}

	var outcomes, tokenIDs []string
	if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(m.ClobTokens), &tokenIDs); err != nil {
		return nil
	}

	m.Tokens = make([]Token, 0, len(outcomes))
	for i, outcome := range outcomes {
		if i < len(tokenIDs) {
			m.Tokens = append(m.Tokens, Token{TokenID: tokenIDs[i], Outcome: outcome})
		}
	}
	return nil
}

// Token is one outcome token of a market.
type Token struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
}

// TokenByOutcome returns the token for an outcome, matching YES/Yes and
// NO/No spellings.
func (m *GammaMarket) TokenByOutcome(outcome string) *Token {
	for i := range m.Tokens {
		got := m.Tokens[i].Outcome
		if got == outcome ||
			(outcome == "YES" && got == "Yes") ||
			(outcome == "NO" && got == "No") {
			return &m.Tokens[i]
		}
	}
	return nil
}

// Binary reports whether the market is a two-outcome YES/NO market with a
// condition ID, the only shape the engine trades.
func (m *GammaMarket) Binary() bool {
	return m.ConditionID != "" &&
		len(m.Tokens) == 2 &&
		m.TokenByOutcome("YES") != nil &&
		m.TokenByOutcome("NO") != nil
}
