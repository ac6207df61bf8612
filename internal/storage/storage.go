// Package storage persists detected opportunities and executed trades.
package storage

import (
	"context"

	"github.com/quantfold/polyarb/internal/detector"
	"github.com/quantfold/polyarb/pkg/types"
)

// Storage records opportunities and trade outcomes.
type Storage interface {
	// StoreOpportunity records a detected opportunity.
	StoreOpportunity(ctx context.Context, opp *detector.Opportunity) error

	// StoreTrade records the terminal outcome of one execution.
	StoreTrade(ctx context.Context, trade *types.TradeResult) error

	// Close closes the storage connection.
	Close() error
}
