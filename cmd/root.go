package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "polyarb",
	Short: "Prediction market arbitrage engine",
	Long: `Arbitrage engine for binary prediction markets. It watches market
quotes, detects markets where YES + NO cost less than $1.00 after fees,
buys both sides atomically with Fill-Or-Kill orders, and merges the paired
positions on-chain to redeem collateral.

Paper mode simulates fills and merges; live mode trades with real funds.`,
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
