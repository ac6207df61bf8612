// Package orders builds and submits paired Fill-Or-Kill orders against the
// matching venue and enforces the pair invariant: both legs fill within
// their slippage ceilings or the pair is unwound.
package orders

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
	"github.com/quantfold/polyarb/pkg/types"
)

// VenueClient is the matching-venue collaborator. Submission is off-chain;
// settlement references returned by the venue are opaque to the Manager.
type VenueClient interface {
	SubmitOrder(ctx context.Context, o *Order) (*Result, error)
	CancelOrder(ctx context.Context, ref string) (bool, error)
}

// Config holds order manager configuration.
type Config struct {
	SubmitTimeout time.Duration // per-leg bound so a hung leg cannot block unwinding
	Logger        *zap.Logger
}

// DefaultSubmitTimeout bounds one leg's venue round trip.
const DefaultSubmitTimeout = 30 * time.Second

// Manager owns the active-order table and is its only mutator.
type Manager struct {
	venue  VenueClient
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	active map[string]*Order
}

// New creates an order manager.
func New(venue VenueClient, cfg Config) *Manager {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}

	return &Manager{
		venue:  venue,
		cfg:    cfg,
		logger: cfg.Logger,
		active: make(map[string]*Order),
	}
}

// CreateOrder validates inputs and records a fresh FOK order in the active
// table. A slippage tolerance above the protocol maximum is capped and
// logged, never rejected; zero means "use the default".
func (m *Manager) CreateOrder(marketID, tokenID string, side types.Side, price, size, slippage fixedpoint.Amount) (*Order, error) {
	if !side.Valid() {
		return nil, &types.ValidationError{Field: "side", Reason: "must be YES or NO, got " + string(side)}
	}
	if price <= 0 || price >= fixedpoint.One {
		return nil, &types.ValidationError{Field: "price", Reason: "must be strictly between 0 and 1, got " + price.String()}
	}
	if size <= 0 {
		return nil, &types.ValidationError{Field: "size", Reason: "must be positive, got " + size.String()}
	}

	if slippage <= 0 {
		slippage = MaxSlippage
	}
	if slippage > MaxSlippage {
		m.logger.Warn("slippage-tolerance-capped",
			zap.String("requested", slippage.String()),
			zap.String("max", MaxSlippage.String()))
		slippage = MaxSlippage
	}

	order := &Order{
		ID:        uuid.New().String(),
		MarketID:  marketID,
		TokenID:   tokenID,
		Side:      side,
		Price:     price,
		Size:      size,
		Kind:      KindFOK,
		Slippage:  slippage,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.active[order.ID] = order
	m.mu.Unlock()

	OrdersCreatedTotal.WithLabelValues(string(side)).Inc()
	m.logger.Debug("order-created",
		zap.String("order-id", order.ID),
		zap.String("market-id", marketID),
		zap.String("side", string(side)),
		zap.String("price", price.String()),
		zap.String("size", size.String()))

	return order, nil
}

type legOutcome struct {
	result *Result
	err    error
}

// SubmitPair submits a YES and a NO order for the same market concurrently
// and resolves the pair to exactly one of {both filled, neither filled}.
// "Exactly one filled" (including a fill that violated its slippage ceiling)
// becomes an AtomicExecutionError after best-effort cancellation of whatever
// filled; a failed cancellation escalates as an unhedged-position alert.
func (m *Manager) SubmitPair(ctx context.Context, yes, no *Order) (yesFilled, noFilled bool, err error) {
	if yes.Side != types.SideYes {
		return false, false, &types.ValidationError{Field: "pair", Reason: "first order must be YES, got " + string(yes.Side)}
	}
	if no.Side != types.SideNo {
		return false, false, &types.ValidationError{Field: "pair", Reason: "second order must be NO, got " + string(no.Side)}
	}
	if yes.MarketID != no.MarketID {
		return false, false, &types.ValidationError{Field: "pair", Reason: "orders span different markets"}
	}
	if yes.Kind != KindFOK || no.Kind != KindFOK {
		return false, false, &types.ValidationError{Field: "pair", Reason: "both orders must be FOK"}
	}

	m.logger.Info("submitting-order-pair",
		zap.String("market-id", yes.MarketID),
		zap.String("yes-price", yes.Price.String()),
		zap.String("no-price", no.Price.String()),
		zap.String("size", yes.Size.String()))

	start := time.Now()
	outcomes := make([]legOutcome, 2)
	legs := []*Order{yes, no}

	var wg sync.WaitGroup
	for i, leg := range legs {
		wg.Add(1)
		go func(i int, leg *Order) {
			defer wg.Done()
			legCtx, cancel := context.WithTimeout(ctx, m.cfg.SubmitTimeout)
			defer cancel()
			result, err := m.venue.SubmitOrder(legCtx, leg)
			outcomes[i] = legOutcome{result: result, err: err}
		}(i, leg)
	}
	wg.Wait()
	PairSubmitSeconds.Observe(time.Since(start).Seconds())

	filled := make([]bool, 2)   // venue reported a fill
	accepted := make([]bool, 2) // filled within the slippage ceiling
	for i, leg := range legs {
		out := outcomes[i]
		if out.err != nil {
			leg.Err = out.err
			m.logger.Warn("leg-submission-failed",
				zap.String("order-id", leg.ID),
				zap.String("side", string(leg.Side)),
				zap.Error(out.err))
			continue
		}
		if out.result == nil || !out.result.Filled {
			continue
		}

		filled[i] = true
		leg.FillPrice = out.result.FillPrice
		leg.SettlementRef = out.result.SettlementRef

		if out.result.FillPrice <= leg.PriceCeiling() {
			accepted[i] = true
			continue
		}

		leg.Err = &types.SlippageError{
			Side:       leg.Side,
			LimitPrice: leg.Price,
			FillPrice:  out.result.FillPrice,
			Ceiling:    leg.PriceCeiling(),
		}
		m.logger.Error("fill-exceeded-slippage-ceiling",
			zap.String("order-id", leg.ID),
			zap.String("side", string(leg.Side)),
			zap.String("fill-price", out.result.FillPrice.String()),
			zap.String("ceiling", leg.PriceCeiling().String()))
	}

	switch {
	case accepted[0] && accepted[1]:
		for _, leg := range legs {
			leg.Filled = true
		}
		m.remove(yes.ID, no.ID)
		PairsSubmittedTotal.WithLabelValues("filled").Inc()
		m.logger.Info("order-pair-filled",
			zap.String("market-id", yes.MarketID),
			zap.String("yes-fill-price", yes.FillPrice.String()),
			zap.String("no-fill-price", no.FillPrice.String()))
		return true, true, nil

	case !filled[0] && !filled[1]:
		m.remove(yes.ID, no.ID)
		PairsSubmittedTotal.WithLabelValues("not_filled").Inc()
		m.logger.Info("order-pair-not-filled", zap.String("market-id", yes.MarketID))
		return false, false, &types.NotFilledError{MarketID: yes.MarketID}

	default:
		return false, false, m.unwindPartialFill(ctx, legs, filled, accepted)
	}
}

// unwindPartialFill handles the abnormal outcome: at least one leg filled but
// the pair did not resolve. Every venue-filled leg is cancelled best-effort;
// a cancellation failure is escalated, never swallowed.
func (m *Manager) unwindPartialFill(ctx context.Context, legs []*Order, filled, accepted []bool) error {
	var filledSide types.Side
	var cancelErr error

	for i, leg := range legs {
		if !filled[i] {
			continue
		}
		if accepted[i] || filledSide == "" {
			filledSide = leg.Side
		}

		ref := leg.SettlementRef
		if ref == "" {
			ref = leg.ID
		}

		ok, err := m.venue.CancelOrder(ctx, ref)
		if err != nil || !ok {
			if err == nil {
				err = &types.ValidationError{Field: "cancel", Reason: "venue refused cancellation"}
			}
			cancelErr = err
			UnhedgedAlertsTotal.Inc()
			m.logger.Error("unhedged-position-alert",
				zap.String("order-id", leg.ID),
				zap.String("market-id", leg.MarketID),
				zap.String("side", string(leg.Side)),
				zap.Error(err))
			continue
		}

		m.logger.Warn("filled-leg-cancelled",
			zap.String("order-id", leg.ID),
			zap.String("side", string(leg.Side)))
	}

	m.remove(legs[0].ID, legs[1].ID)
	PairsSubmittedTotal.WithLabelValues("atomic_violation").Inc()

	return &types.AtomicExecutionError{
		MarketID:   legs[0].MarketID,
		FilledSide: filledSide,
		Unhedged:   cancelErr != nil,
		CancelErr:  cancelErr,
	}
}

// CancelOrder cancels an active order. Returns false without side effects if
// the order already filled.
func (m *Manager) CancelOrder(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	order, ok := m.active[id]
	m.mu.Unlock()
	if !ok {
		return false, &types.ValidationError{Field: "order-id", Reason: "not an active order: " + id}
	}

	if order.Filled {
		m.logger.Warn("cannot-cancel-filled-order", zap.String("order-id", id))
		return false, nil
	}

	ref := order.SettlementRef
	if ref == "" {
		ref = order.ID
	}

	cancelled, err := m.venue.CancelOrder(ctx, ref)
	if err != nil {
		return false, err
	}

	m.remove(id)
	CancellationsTotal.Inc()
	m.logger.Info("order-cancelled", zap.String("order-id", id))
	return cancelled, nil
}

// ActiveOrders returns a snapshot of the active-order table.
func (m *Manager) ActiveOrders() []*Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Order, 0, len(m.active))
	for _, o := range m.active {
		out = append(out, o)
	}
	return out
}

// GetOrder returns an active order by id.
func (m *Manager) GetOrder(id string) (*Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.active[id]
	return o, ok
}

func (m *Manager) remove(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.active, id)
	}
}
