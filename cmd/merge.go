package cmd

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/quantfold/polyarb/internal/merger"
	"github.com/quantfold/polyarb/internal/txmgr"
	"github.com/quantfold/polyarb/pkg/config"
	"github.com/quantfold/polyarb/pkg/fixedpoint"
	"github.com/quantfold/polyarb/pkg/ledger"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	mergeCondition string
	mergeYesToken  string
	mergeNoToken   string
	mergeAmount    string
)

//nolint:gochecknoglobals // Cobra boilerplate
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Manually merge matched YES+NO positions for collateral",
	Long: `Merges matched YES+NO outcome tokens back into collateral via the
conditional tokens contract. Balances are checked before submitting and the
redeemed amount is verified after confirmation.`,
	RunE: runMerge,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringVar(&mergeCondition, "condition", "", "Condition ID (0x-prefixed hex)")
	mergeCmd.Flags().StringVar(&mergeYesToken, "yes-token", "", "YES token ID (decimal)")
	mergeCmd.Flags().StringVar(&mergeNoToken, "no-token", "", "NO token ID (decimal)")
	mergeCmd.Flags().StringVar(&mergeAmount, "amount", "", "Pairs to merge (decimal, e.g. 10.5)")
	_ = mergeCmd.MarkFlagRequired("condition")
	_ = mergeCmd.MarkFlagRequired("yes-token")
	_ = mergeCmd.MarkFlagRequired("no-token")
	_ = mergeCmd.MarkFlagRequired("amount")
}

func runMerge(cmd *cobra.Command, args []string) error {
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

	amount, err := fixedpoint.Parse(mergeAmount)
	if err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}
	yesToken, ok := new(big.Int).SetString(mergeYesToken, 10)
	if !ok {
		return fmt.Errorf("invalid yes token id: %s", mergeYesToken)
	}
	noToken, ok := new(big.Int).SetString(mergeNoToken, 10)
	if !ok {
		return fmt.Errorf("invalid no token id: %s", mergeNoToken)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := ledger.Dial(ctx, cfg.RPCURL, cfg.ChainID, logger)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	signer, err := ledger.NewSigner(cfg.PrivateKey, cfg.ChainID)
	if err != nil {
		return fmt.Errorf("create signer: %w", err)
	}

	txManager := txmgr.New(client, signer, txmgr.Config{
		MaxPending:     cfg.MaxPendingTxs,
		StuckAfter:     cfg.StuckAfter,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         logger,
	})

	contracts := ledger.NewContracts(client, cfg.CTFAddress, cfg.CollateralAddr)
	mg := merger.New(contracts, contracts, client, txManager, signer.Address(), merger.Config{
		Tolerance:      cfg.MergeTolerance,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         logger,
	})

	receipt, err := mg.Merge(ctx, common.HexToHash(mergeCondition), yesToken, noToken, amount)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	fmt.Printf("Merged %s pairs\n", amount)
	fmt.Printf("Tx:       %s\n", receipt.TxHash.Hex())
	fmt.Printf("Gas used: %d\n", receipt.GasUsed)
	return nil
}
