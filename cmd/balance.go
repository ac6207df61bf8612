package cmd

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/quantfold/polyarb/pkg/config"
	"github.com/quantfold/polyarb/pkg/ledger"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance [token-id...]",
	Short: "Check collateral and position balances",
	Long: `Display the signer's collateral balance and, for any token IDs
given as arguments, outcome token position balances.`,
	RunE: runBalance,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY not set")
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := ledger.Dial(ctx, cfg.RPCURL, cfg.ChainID, logger)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}

	signer, err := ledger.NewSigner(cfg.PrivateKey, cfg.ChainID)
	if err != nil {
		return fmt.Errorf("create signer: %w", err)
	}

	contracts := ledger.NewContracts(client, cfg.CTFAddress, cfg.CollateralAddr)
	owner := signer.Address()

	collateral, err := contracts.CollateralBalance(ctx, owner)
	if err != nil {
		return fmt.Errorf("collateral balance: %w", err)
	}

	fmt.Printf("Address:    %s\n", owner.Hex())
	fmt.Printf("Collateral: $%s\n", collateral)

	for _, tokenID := range args {
		id, ok := new(big.Int).SetString(tokenID, 10)
		if !ok {
			return fmt.Errorf("invalid token id: %s", tokenID)
		}
		position, err := contracts.PositionBalance(ctx, owner, id)
		if err != nil {
			return fmt.Errorf("position balance for %s: %w", tokenID, err)
		}
		fmt.Printf("Position %s: %s\n", shortToken(tokenID), position)
	}

	return nil
}

func shortToken(id string) string {
	if len(id) > 12 {
		return id[:6] + ".." + id[len(id)-4:]
	}
	return id
}
