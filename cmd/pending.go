package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/quantfold/polyarb/pkg/config"
	"github.com/quantfold/polyarb/pkg/ledger"
)

//nolint:gochecknoglobals // Cobra boilerplate
var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Show the signer's pending transaction window",
	Long: `Compares the signer's confirmed and pending nonces on the chain.
A gap means transactions are waiting in the mempool, possibly stuck.`,
	RunE: runPending,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(pendingCmd)
}

func runPending(cmd *cobra.Command, args []string) error {
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

	signer, err := ledger.NewSigner(cfg.PrivateKey, cfg.ChainID)
	if err != nil {
		return fmt.Errorf("create signer: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	defer client.Close()

	confirmed, err := client.NonceAt(ctx, signer.Address(), nil)
	if err != nil {
		return fmt.Errorf("confirmed nonce: %w", err)
	}
	pending, err := client.PendingNonceAt(ctx, signer.Address())
	if err != nil {
		return fmt.Errorf("pending nonce: %w", err)
	}

	fmt.Printf("Address:         %s\n", signer.Address().Hex())
	fmt.Printf("Confirmed nonce: %d\n", confirmed)
	fmt.Printf("Pending nonce:   %d\n", pending)
	if gap := pending - confirmed; gap > 0 {
		fmt.Printf("In flight:       %d transaction(s) waiting in the mempool\n", gap)
	} else {
		fmt.Println("In flight:       none")
	}
	return nil
}
