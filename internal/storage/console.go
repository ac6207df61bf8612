package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quantfold/polyarb/internal/detector"
	"github.com/quantfold/polyarb/pkg/fixedpoint"
	"github.com/quantfold/polyarb/pkg/types"
)

// ConsoleStorage implements Storage by pretty-printing to console.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{logger: logger}
}

// StoreOpportunity pretty-prints a detected opportunity.
func (c *ConsoleStorage) StoreOpportunity(ctx context.Context, opp *detector.Opportunity) error {
	fmt.Println("\n" + "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("🎯 ARBITRAGE OPPORTUNITY DETECTED\n")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("ID:        %s\n", shortID(opp.ID))
	fmt.Printf("Market:    %s\n", opp.MarketID)
	fmt.Printf("Strategy:  %s\n", opp.Strategy)
	fmt.Printf("Time:      %s\n", opp.DetectedAt.Format("2006-01-02 15:04:05"))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("📊 PRICES\n")
	fmt.Printf("  YES Ask:  %s (fee %s)\n", opp.YesPrice, opp.YesFee)
	fmt.Printf("  NO Ask:   %s (fee %s)\n", opp.NoPrice, opp.NoFee)
	fmt.Printf("  Cost:     %s per pair\n", opp.TotalCost)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("💰 PROFIT ANALYSIS\n")
	fmt.Printf("  Position Size:    %s pairs\n", opp.PositionSize)
	fmt.Printf("  Expected Profit:  $%s per pair (%s%%)\n", opp.ExpectedProfit, opp.ProfitPct.Mul(fixedpoint.FromInt(100)))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return nil
}

// StoreTrade pretty-prints a trade outcome.
func (c *ConsoleStorage) StoreTrade(ctx context.Context, trade *types.TradeResult) error {
	fmt.Println("\n" + "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	if trade.Status == types.TradeSuccess {
		fmt.Printf("✅ TRADE EXECUTED\n")
	} else {
		fmt.Printf("❌ TRADE FAILED\n")
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Trade:     %s (opportunity %s)\n", shortID(trade.TradeID), shortID(trade.OpportunityID))
	fmt.Printf("Market:    %s\n", trade.MarketID)
	fmt.Printf("Time:      %s\n", trade.ExecutedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("YES fill:  %v @ %s\n", trade.Yes.Filled, trade.Yes.FillPrice)
	fmt.Printf("NO fill:   %v @ %s\n", trade.No.Filled, trade.No.FillPrice)
	fmt.Printf("Cost:      $%s   Profit: $%s   Gas: $%s   Net: $%s\n",
		trade.ActualCost, trade.ActualProfit, trade.GasCost, trade.NetProfit)
	if trade.MergeTxHash != "" {
		fmt.Printf("Merge tx:  %s\n", trade.MergeTxHash)
	}
	if trade.ErrorMessage != "" {
		fmt.Printf("Error:     %s\n", trade.ErrorMessage)
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
