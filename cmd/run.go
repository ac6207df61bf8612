package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/quantfold/polyarb/internal/app"
	"github.com/quantfold/polyarb/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the arbitrage engine",
	Long: `Starts the engine, which will:
1. Discover tradable binary markets from the metadata API
2. Stream their books over WebSocket
3. Detect markets where YES + NO cost less than $1.00 after fees
4. Buy both sides with paired Fill-Or-Kill orders and merge the positions

Use --single-market to track only one market for debugging.`,
	RunE: runEngine,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("single-market", "s", "", "Track only a single market by slug (for debugging)")
}

func runEngine(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	singleMarket, _ := cmd.Flags().GetString("single-market")

	application, err := app.New(cfg, logger, &app.Options{SingleMarket: singleMarket})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	if err := application.Run(); err != nil {
		return fmt.Errorf("run app: %w", err)
	}
	return nil
}
