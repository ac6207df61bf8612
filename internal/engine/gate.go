package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/quantfold/polyarb/internal/detector"
	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

// DefaultGate enforces per-trade and per-day limits before execution.
type DefaultGate struct {
	maxTradeCost   fixedpoint.Amount
	maxDailyTrades int

	mu         sync.Mutex
	day        time.Time
	tradesDone int
}

// NewDefaultGate creates a gate. Zero limits disable the corresponding check.
func NewDefaultGate(maxTradeCost fixedpoint.Amount, maxDailyTrades int) *DefaultGate {
	return &DefaultGate{
		maxTradeCost:   maxTradeCost,
		maxDailyTrades: maxDailyTrades,
	}
}

// Approve vetoes opportunities that exceed configured limits and counts the
// approval against the daily budget.
func (g *DefaultGate) Approve(opp *detector.Opportunity) error {
	if g.maxTradeCost > 0 && opp.TotalCost > g.maxTradeCost {
		return fmt.Errorf("pair cost %s exceeds limit %s", opp.TotalCost, g.maxTradeCost)
	}

	if g.maxDailyTrades <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	today := time.Now().Truncate(24 * time.Hour)
	if !today.Equal(g.day) {
		g.day = today
		g.tradesDone = 0
	}
	if g.tradesDone >= g.maxDailyTrades {
		return fmt.Errorf("daily trade limit %d reached", g.maxDailyTrades)
	}
	g.tradesDone++
	return nil
}

// MultiGate runs several gates in order; the first veto wins. RecordTrade
// fans out to every member that tracks trade history.
type MultiGate []SafetyGate

// Approve returns the first member veto, or nil if all approve.
func (g MultiGate) Approve(opp *detector.Opportunity) error {
	for _, gate := range g {
		if err := gate.Approve(opp); err != nil {
			return err
		}
	}
	return nil
}

// RecordTrade forwards an executed trade's cost to member gates.
func (g MultiGate) RecordTrade(cost fixedpoint.Amount) {
	for _, gate := range g {
		if r, ok := gate.(tradeRecorder); ok {
			r.RecordTrade(cost)
		}
	}
}

// FixedSizer always sizes to the same pair count.
type FixedSizer struct {
	Pairs fixedpoint.Amount
}

// Size returns the configured pair count.
func (s FixedSizer) Size(*detector.Opportunity) fixedpoint.Amount {
	return s.Pairs
}
