// Package engine drives the full trade pipeline: quotes in, detection,
// safety gating, paired execution, merge, persistence. One trade executes at
// a time; a quote that arrives mid-execution is simply evaluated on the next
// loop iteration against fresh prices.
package engine

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantfold/polyarb/internal/detector"
	"github.com/quantfold/polyarb/internal/markets"
	"github.com/quantfold/polyarb/internal/orders"
	"github.com/quantfold/polyarb/internal/storage"
	"github.com/quantfold/polyarb/internal/txmgr"
	"github.com/quantfold/polyarb/pkg/fixedpoint"
	"github.com/quantfold/polyarb/pkg/types"
)

// SafetyGate approves or vetoes an opportunity before any order is created.
type SafetyGate interface {
	Approve(opp *detector.Opportunity) error
}

// tradeRecorder is implemented by gates that size their limits from recent
// trade history.
type tradeRecorder interface {
	RecordTrade(cost fixedpoint.Amount)
}

// Sizer decides how many pairs to execute for an approved opportunity.
type Sizer interface {
	Size(opp *detector.Opportunity) fixedpoint.Amount
}

// RulesSource resolves venue trading rules for a token.
// *markets.CachedMetadataClient satisfies it.
type RulesSource interface {
	GetRules(ctx context.Context, tokenID string) (*markets.Rules, error)
}

// Merger is the position merge surface the engine uses. *merger.Merger
// satisfies it.
type Merger interface {
	Merge(ctx context.Context, conditionID common.Hash, yesToken, noToken *big.Int, amount fixedpoint.Amount) (*ethtypes.Receipt, error)
	Halted() bool
}

// TxMaintenance is the transaction manager surface for the periodic sweep.
// *txmgr.Manager satisfies it.
type TxMaintenance interface {
	Reconcile(ctx context.Context) int
	StuckTransactions() []*txmgr.PendingTransaction
	ResubmitStuck(ctx context.Context, hash common.Hash) (common.Hash, error)
}

// Config holds engine configuration.
type Config struct {
	SweepInterval time.Duration // stuck transaction sweep cadence, default 15s
	Slippage      fixedpoint.Amount
	Rules         RulesSource // optional, skips trades below the venue minimum
	Logger        *zap.Logger
}

// Engine wires detection to execution.
type Engine struct {
	detector *detector.Detector
	orders   *orders.Manager
	merger   Merger
	txs      TxMaintenance
	store    storage.Storage
	gate     SafetyGate
	sizer    Sizer
	quotes   <-chan types.MarketQuote
	cfg      Config
	logger   *zap.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates an engine. All collaborators are required except txs, which
// may be nil to disable the stuck sweep (used by one-shot commands).
func New(det *detector.Detector, om *orders.Manager, mg Merger, txs TxMaintenance, store storage.Storage, gate SafetyGate, sizer Sizer, quotes <-chan types.MarketQuote, cfg Config) *Engine {
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 15 * time.Second
	}

	return &Engine{
		detector: det,
		orders:   om,
		merger:   mg,
		txs:      txs,
		store:    store,
		gate:     gate,
		sizer:    sizer,
		quotes:   quotes,
		cfg:      cfg,
		logger:   cfg.Logger,
	}
}

// Start launches the trade loop and the transaction sweep.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go e.tradeLoop(ctx)

	if e.txs != nil {
		e.wg.Add(1)
		go e.sweepLoop(ctx)
	}
}

// Close stops the engine and waits for in-flight work.
func (e *Engine) Close() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) tradeLoop(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case quote, ok := <-e.quotes:
			if !ok {
				return
			}
			e.handleQuote(ctx, quote)
		}
	}
}

func (e *Engine) handleQuote(ctx context.Context, quote types.MarketQuote) {
	opp, err := e.detector.Detect(quote)
	if err != nil {
		e.logger.Warn("quote-rejected", zap.String("market-id", quote.MarketID), zap.Error(err))
		return
	}
	if opp == nil {
		return
	}

	if e.merger.Halted() {
		e.logger.Warn("opportunity-skipped-merging-halted", zap.String("opportunity-id", opp.ID))
		TradesTotal.WithLabelValues("skipped_halted").Inc()
		return
	}
	if err := e.gate.Approve(opp); err != nil {
		e.logger.Info("opportunity-vetoed",
			zap.String("opportunity-id", opp.ID),
			zap.Error(err))
		TradesTotal.WithLabelValues("vetoed").Inc()
		return
	}

	opp.PositionSize = e.sizer.Size(opp)
	if opp.PositionSize <= 0 {
		TradesTotal.WithLabelValues("sized_zero").Inc()
		return
	}
	if !e.meetsVenueMinimum(ctx, opp) {
		TradesTotal.WithLabelValues("below_min_size").Inc()
		return
	}

	if err := e.store.StoreOpportunity(ctx, opp); err != nil {
		e.logger.Warn("store-opportunity-failed", zap.Error(err))
	}

	trade := e.execute(ctx, opp)
	if trade.Status == types.TradeSuccess {
		if r, ok := e.gate.(tradeRecorder); ok {
			r.RecordTrade(trade.ActualCost)
		}
	}
	if err := e.store.StoreTrade(ctx, trade); err != nil {
		e.logger.Warn("store-trade-failed", zap.Error(err))
	}
}

// meetsVenueMinimum checks the sized position against the venue's minimum
// order size for both legs. A rules lookup failure does not block the trade;
// the venue rejects undersized orders anyway.
func (e *Engine) meetsVenueMinimum(ctx context.Context, opp *detector.Opportunity) bool {
	if e.cfg.Rules == nil {
		return true
	}

	for _, tokenID := range []string{opp.YesTokenID, opp.NoTokenID} {
		rules, err := e.cfg.Rules.GetRules(ctx, tokenID)
		if err != nil {
			e.logger.Warn("trading-rules-unavailable",
				zap.String("token-id", tokenID),
				zap.Error(err))
			continue
		}
		if opp.PositionSize < rules.MinOrderSize {
			e.logger.Info("opportunity-below-venue-minimum",
				zap.String("opportunity-id", opp.ID),
				zap.String("position-size", opp.PositionSize.String()),
				zap.String("min-order-size", rules.MinOrderSize.String()))
			return false
		}
	}
	return true
}

// execute runs one opportunity to a terminal TradeResult. Failures are
// recorded, never returned; the loop must survive every trade outcome.
func (e *Engine) execute(ctx context.Context, opp *detector.Opportunity) *types.TradeResult {
	trade := &types.TradeResult{
		TradeID:       uuid.New().String(),
		OpportunityID: opp.ID,
		MarketID:      opp.MarketID,
		ExecutedAt:    time.Now(),
		Status:        types.TradeFailed,
	}

	start := time.Now()
	defer func() {
		TradeDurationSeconds.Observe(time.Since(start).Seconds())
		TradesTotal.WithLabelValues(string(trade.Status)).Inc()
	}()

	yes, err := e.orders.CreateOrder(opp.MarketID, opp.YesTokenID, types.SideYes, opp.YesPrice, opp.PositionSize, e.cfg.Slippage)
	if err != nil {
		trade.ErrorMessage = err.Error()
		return trade
	}
	no, err := e.orders.CreateOrder(opp.MarketID, opp.NoTokenID, types.SideNo, opp.NoPrice, opp.PositionSize, e.cfg.Slippage)
	if err != nil {
		trade.ErrorMessage = err.Error()
		return trade
	}

	yesFilled, noFilled, err := e.orders.SubmitPair(ctx, yes, no)
	trade.Yes = legResult(yes, yesFilled)
	trade.No = legResult(no, noFilled)
	if err != nil {
		trade.ErrorMessage = err.Error()
		e.logger.Warn("pair-execution-failed",
			zap.String("opportunity-id", opp.ID),
			zap.Error(err))
		return trade
	}

	// Both legs filled. Actual cost uses realized fill prices with the fee
	// rates the detector quoted.
	pairCost := yes.FillPrice.Mul(fixedpoint.One+opp.YesFee) + no.FillPrice.Mul(fixedpoint.One+opp.NoFee)
	trade.ActualCost = pairCost.Mul(opp.PositionSize)
	trade.ActualProfit = (fixedpoint.One - pairCost).Mul(opp.PositionSize)

	receipt, err := e.mergePositions(ctx, opp)
	if err != nil {
		trade.ErrorMessage = fmt.Sprintf("merge: %v", err)
		e.logger.Error("merge-failed-position-held",
			zap.String("opportunity-id", opp.ID),
			zap.Error(err))
		return trade
	}

	trade.MergeTxHash = receipt.TxHash.Hex()
	trade.GasCost = gasCost(receipt)
	trade.NetProfit = trade.ActualProfit - trade.GasCost
	trade.Status = types.TradeSuccess
	ProfitTotal.Add(trade.NetProfit.Float64())

	e.logger.Info("trade-complete",
		zap.String("trade-id", trade.TradeID),
		zap.String("net-profit", trade.NetProfit.String()),
		zap.String("merge-tx", trade.MergeTxHash))

	return trade
}

func (e *Engine) mergePositions(ctx context.Context, opp *detector.Opportunity) (*ethtypes.Receipt, error) {
	yesToken, ok := new(big.Int).SetString(opp.YesTokenID, 10)
	if !ok {
		return nil, &types.ValidationError{Field: "yes_token_id", Reason: "not a decimal token id"}
	}
	noToken, ok := new(big.Int).SetString(opp.NoTokenID, 10)
	if !ok {
		return nil, &types.ValidationError{Field: "no_token_id", Reason: "not a decimal token id"}
	}

	return e.merger.Merge(ctx, common.HexToHash(opp.ConditionID), yesToken, noToken, opp.PositionSize)
}

// gasCost converts the receipt's gas spend to native-token units at the
// fixed-point scale (wei has 18 decimals, Amount has 6).
func gasCost(receipt *ethtypes.Receipt) fixedpoint.Amount {
	price := receipt.EffectiveGasPrice
	if price == nil {
		return 0
	}
	wei := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), price)
	return fixedpoint.Amount(new(big.Int).Div(wei, big.NewInt(1_000_000_000_000)).Int64())
}

func legResult(o *orders.Order, filled bool) types.LegResult {
	return types.LegResult{
		OrderID:       o.ID,
		Filled:        filled,
		FillPrice:     o.FillPrice,
		SettlementRef: o.SettlementRef,
	}
}

// sweepLoop periodically reconciles pending transactions and resubmits any
// that have been stuck past the threshold.
func (e *Engine) sweepLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.txs.Reconcile(ctx); n > 0 {
				e.logger.Info("reconciled-confirmed-transactions", zap.Int("count", n))
			}
			for _, stuck := range e.txs.StuckTransactions() {
				newHash, err := e.txs.ResubmitStuck(ctx, stuck.Hash)
				if err != nil {
					e.logger.Warn("stuck-resubmit-failed",
						zap.String("tx-hash", stuck.Hash.Hex()),
						zap.Error(err))
					continue
				}
				StuckResubmitsTotal.Inc()
				e.logger.Info("stuck-transaction-resubmitted",
					zap.String("old-hash", stuck.Hash.Hex()),
					zap.String("new-hash", newHash.Hex()))
			}
		}
	}
}
