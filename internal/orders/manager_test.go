package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
	"github.com/quantfold/polyarb/pkg/types"
)

// scriptedVenue returns per-token scripted results; unscripted tokens fill
// at their limit price.
type scriptedVenue struct {
	mu           sync.Mutex
	results      map[string]Result
	errs         map[string]error
	cancelOK     bool
	cancelErr    error
	cancelled    []string
	submitCount  int
}

func (v *scriptedVenue) SubmitOrder(_ context.Context, o *Order) (*Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.submitCount++

	if err, ok := v.errs[o.TokenID]; ok {
		return nil, err
	}
	if res, ok := v.results[o.TokenID]; ok {
		return &res, nil
	}
	return &Result{Filled: true, FillPrice: o.Price, SettlementRef: "ref-" + o.TokenID}, nil
}

func (v *scriptedVenue) CancelOrder(_ context.Context, ref string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cancelled = append(v.cancelled, ref)
	return v.cancelOK, v.cancelErr
}

func newTestManager(venue VenueClient) *Manager {
	return New(venue, Config{Logger: zap.NewNop()})
}

func mustPair(t *testing.T, m *Manager) (*Order, *Order) {
	t.Helper()
	yes, err := m.CreateOrder("mkt-1", "tok-yes", types.SideYes,
		fixedpoint.MustParse("0.46"), fixedpoint.FromInt(100), 0)
	if err != nil {
		t.Fatalf("create yes order: %v", err)
	}
	no, err := m.CreateOrder("mkt-1", "tok-no", types.SideNo,
		fixedpoint.MustParse("0.49"), fixedpoint.FromInt(100), 0)
	if err != nil {
		t.Fatalf("create no order: %v", err)
	}
	return yes, no
}

func TestCreateOrderValidation(t *testing.T) {
	m := newTestManager(&scriptedVenue{})

	tests := []struct {
		name  string
		side  types.Side
		price string
		size  string
	}{
		{name: "bad-side", side: "MAYBE", price: "0.5", size: "10"},
		{name: "zero-price", side: types.SideYes, price: "0", size: "10"},
		{name: "price-at-one", side: types.SideYes, price: "1", size: "10"},
		{name: "negative-size", side: types.SideNo, price: "0.5", size: "-1"},
		{name: "zero-size", side: types.SideNo, price: "0.5", size: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreateOrder("mkt-1", "tok", tt.side,
				fixedpoint.MustParse(tt.price), fixedpoint.MustParse(tt.size), 0)
			var verr *types.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestCreateOrderSlippageCap(t *testing.T) {
	m := newTestManager(&scriptedVenue{})

	// Above the protocol maximum: capped, not rejected.
	o, err := m.CreateOrder("mkt-1", "tok", types.SideYes,
		fixedpoint.MustParse("0.5"), fixedpoint.FromInt(10), fixedpoint.MustParse("0.05"))
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o.Slippage != MaxSlippage {
		t.Errorf("slippage = %s, want capped at %s", o.Slippage, MaxSlippage)
	}

	// Zero uses the default.
	o, err = m.CreateOrder("mkt-1", "tok", types.SideYes,
		fixedpoint.MustParse("0.5"), fixedpoint.FromInt(10), 0)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o.Slippage != MaxSlippage {
		t.Errorf("default slippage = %s, want %s", o.Slippage, MaxSlippage)
	}
	if o.Kind != KindFOK {
		t.Errorf("kind = %s, want %s", o.Kind, KindFOK)
	}
}

func TestSubmitPairBothFilled(t *testing.T) {
	venue := &scriptedVenue{}
	m := newTestManager(venue)
	yes, no := mustPair(t, m)

	yesFilled, noFilled, err := m.SubmitPair(context.Background(), yes, no)
	if err != nil {
		t.Fatalf("SubmitPair: %v", err)
	}
	if !yesFilled || !noFilled {
		t.Fatalf("filled = %v/%v, want true/true", yesFilled, noFilled)
	}
	if !yes.Filled || !no.Filled {
		t.Error("orders not marked filled")
	}
	if len(m.ActiveOrders()) != 0 {
		t.Errorf("active orders = %d after fill, want 0", len(m.ActiveOrders()))
	}
}

func TestSubmitPairNeitherFilled(t *testing.T) {
	venue := &scriptedVenue{results: map[string]Result{
		"tok-yes": {Filled: false},
		"tok-no":  {Filled: false},
	}}
	m := newTestManager(venue)
	yes, no := mustPair(t, m)

	_, _, err := m.SubmitPair(context.Background(), yes, no)
	var nf *types.NotFilledError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFilledError, got %v", err)
	}
	if len(venue.cancelled) != 0 {
		t.Errorf("cancelled %v, want none", venue.cancelled)
	}
	if len(m.ActiveOrders()) != 0 {
		t.Errorf("active orders = %d, want 0", len(m.ActiveOrders()))
	}
}

func TestSubmitPairPartialFillUnwinds(t *testing.T) {
	venue := &scriptedVenue{
		results: map[string]Result{
			"tok-no": {Filled: false},
		},
		cancelOK: true,
	}
	m := newTestManager(venue)
	yes, no := mustPair(t, m)

	yesFilled, noFilled, err := m.SubmitPair(context.Background(), yes, no)
	if yesFilled || noFilled {
		t.Errorf("filled = %v/%v, want false/false", yesFilled, noFilled)
	}

	var atomicErr *types.AtomicExecutionError
	if !errors.As(err, &atomicErr) {
		t.Fatalf("expected AtomicExecutionError, got %v", err)
	}
	if atomicErr.FilledSide != types.SideYes {
		t.Errorf("filled side = %s, want YES", atomicErr.FilledSide)
	}
	if atomicErr.Unhedged {
		t.Error("unwound pair reported as unhedged")
	}
	if len(venue.cancelled) != 1 || venue.cancelled[0] != "ref-tok-yes" {
		t.Errorf("cancelled = %v, want [ref-tok-yes]", venue.cancelled)
	}
}

func TestSubmitPairUnhedgedEscalation(t *testing.T) {
	venue := &scriptedVenue{
		results: map[string]Result{
			"tok-yes": {Filled: false},
		},
		cancelErr: errors.New("venue unavailable"),
	}
	m := newTestManager(venue)
	yes, no := mustPair(t, m)

	_, _, err := m.SubmitPair(context.Background(), yes, no)
	var atomicErr *types.AtomicExecutionError
	if !errors.As(err, &atomicErr) {
		t.Fatalf("expected AtomicExecutionError, got %v", err)
	}
	if !atomicErr.Unhedged {
		t.Error("cancel failure not escalated as unhedged")
	}
	if atomicErr.FilledSide != types.SideNo {
		t.Errorf("filled side = %s, want NO", atomicErr.FilledSide)
	}
	if atomicErr.CancelErr == nil {
		t.Error("cancel error not propagated")
	}
}

func TestSubmitPairSlippageCeiling(t *testing.T) {
	// Ceiling for 0.46 at max slippage 0.001 is 0.46046.
	tests := []struct {
		name      string
		fillPrice string
		accepted  bool
	}{
		{name: "exactly-at-ceiling", fillPrice: "0.46046", accepted: true},
		{name: "above-ceiling", fillPrice: "0.460461", accepted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			venue := &scriptedVenue{
				results: map[string]Result{
					"tok-yes": {Filled: true, FillPrice: fixedpoint.MustParse(tt.fillPrice), SettlementRef: "ref-tok-yes"},
				},
				cancelOK: true,
			}
			m := newTestManager(venue)
			yes, no := mustPair(t, m)

			yesFilled, noFilled, err := m.SubmitPair(context.Background(), yes, no)
			if tt.accepted {
				if err != nil {
					t.Fatalf("SubmitPair: %v", err)
				}
				if !yesFilled || !noFilled {
					t.Errorf("filled = %v/%v, want true/true", yesFilled, noFilled)
				}
				return
			}

			// A fill past the ceiling counts as a violated leg: the venue
			// filled it, so the pair must unwind.
			var atomicErr *types.AtomicExecutionError
			if !errors.As(err, &atomicErr) {
				t.Fatalf("expected AtomicExecutionError, got %v", err)
			}
			var slipErr *types.SlippageError
			if !errors.As(yes.Err, &slipErr) {
				t.Fatalf("expected SlippageError on yes leg, got %v", yes.Err)
			}
		})
	}
}

func TestSubmitPairValidation(t *testing.T) {
	m := newTestManager(&scriptedVenue{})
	yes, no := mustPair(t, m)

	// Wrong order of legs.
	if _, _, err := m.SubmitPair(context.Background(), no, yes); err == nil {
		t.Error("expected error for swapped legs")
	}

	// Different markets.
	other, err := m.CreateOrder("mkt-2", "tok-no", types.SideNo,
		fixedpoint.MustParse("0.49"), fixedpoint.FromInt(100), 0)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, _, err := m.SubmitPair(context.Background(), yes, other); err == nil {
		t.Error("expected error for cross-market pair")
	}
}

func TestCancelOrder(t *testing.T) {
	venue := &scriptedVenue{cancelOK: true}
	m := newTestManager(venue)

	o, err := m.CreateOrder("mkt-1", "tok", types.SideYes,
		fixedpoint.MustParse("0.5"), fixedpoint.FromInt(10), 0)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	cancelled, err := m.CancelOrder(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if !cancelled {
		t.Error("order not cancelled")
	}
	if _, ok := m.GetOrder(o.ID); ok {
		t.Error("cancelled order still active")
	}

	// Unknown id.
	if _, err := m.CancelOrder(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown order")
	}
}

func TestCancelFilledOrderNoop(t *testing.T) {
	venue := &scriptedVenue{cancelOK: true}
	m := newTestManager(venue)

	o, err := m.CreateOrder("mkt-1", "tok", types.SideYes,
		fixedpoint.MustParse("0.5"), fixedpoint.FromInt(10), 0)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	o.Filled = true

	cancelled, err := m.CancelOrder(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if cancelled {
		t.Error("filled order reported cancelled")
	}
	if len(venue.cancelled) != 0 {
		t.Errorf("venue cancel called %v for a filled order", venue.cancelled)
	}
}
