package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/quantfold/polyarb/internal/detector"
	"github.com/quantfold/polyarb/pkg/types"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreOpportunity inserts a detected opportunity. Money columns are NUMERIC;
// amounts are passed as their decimal string form to avoid float rounding in
// the driver.
func (p *PostgresStorage) StoreOpportunity(ctx context.Context, opp *detector.Opportunity) error {
	query := `
		INSERT INTO opportunities (
			id, strategy, market_id, condition_id,
			yes_token_id, no_token_id, yes_venue, no_venue,
			yes_price, no_price, yes_fee, no_fee,
			total_cost, expected_profit, profit_pct, position_size,
			detected_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		opp.ID,
		string(opp.Strategy),
		opp.MarketID,
		opp.ConditionID,
		opp.YesTokenID,
		opp.NoTokenID,
		opp.YesVenue,
		opp.NoVenue,
		opp.YesPrice.String(),
		opp.NoPrice.String(),
		opp.YesFee.String(),
		opp.NoFee.String(),
		opp.TotalCost.String(),
		opp.ExpectedProfit.String(),
		opp.ProfitPct.String(),
		opp.PositionSize.String(),
		opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}

	p.logger.Debug("opportunity-stored",
		zap.String("opportunity-id", opp.ID),
		zap.String("market-id", opp.MarketID))

	return nil
}

// StoreTrade inserts a terminal trade outcome.
func (p *PostgresStorage) StoreTrade(ctx context.Context, trade *types.TradeResult) error {
	query := `
		INSERT INTO trades (
			id, opportunity_id, market_id, executed_at,
			yes_order_id, yes_filled, yes_fill_price,
			no_order_id, no_filled, no_fill_price,
			actual_cost, actual_profit, gas_cost, net_profit,
			merge_tx_hash, status, error_message
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		trade.TradeID,
		trade.OpportunityID,
		trade.MarketID,
		trade.ExecutedAt,
		trade.Yes.OrderID,
		trade.Yes.Filled,
		trade.Yes.FillPrice.String(),
		trade.No.OrderID,
		trade.No.Filled,
		trade.No.FillPrice.String(),
		trade.ActualCost.String(),
		trade.ActualProfit.String(),
		trade.GasCost.String(),
		trade.NetProfit.String(),
		trade.MergeTxHash,
		string(trade.Status),
		trade.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}

	p.logger.Debug("trade-stored",
		zap.String("trade-id", trade.TradeID),
		zap.String("status", string(trade.Status)))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
