package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/quantfold/polyarb/internal/orders"
	"github.com/quantfold/polyarb/pkg/types"
)

// MockGammaAPI simulates the Gamma metadata API for discovery tests. It
// serves /markets with limit/offset pagination over the configured set.
type MockGammaAPI struct {
	*httptest.Server

	mu      sync.RWMutex
	markets []types.GammaMarket
}

// NewMockGammaAPI starts a mock Gamma server.
func NewMockGammaAPI(markets []types.GammaMarket) *MockGammaAPI {
	mock := &MockGammaAPI{markets: markets}

	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			http.NotFound(w, r)
			return
		}

		mock.mu.RLock()
		defer mock.mu.RUnlock()

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if limit <= 0 {
			limit = len(mock.markets)
		}

		page := []types.GammaMarket{}
		for i := offset; i < len(mock.markets) && len(page) < limit; i++ {
			page = append(page, mock.markets[i])
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))

	return mock
}

// SetMarkets replaces the served market set.
func (m *MockGammaAPI) SetMarkets(markets []types.GammaMarket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets = markets
}

// VenueCall records one order submitted to the fake venue.
type VenueCall struct {
	TokenID string
	Side    types.Side
}

// FakeVenue is a scripted orders.VenueClient. Results and Errs are keyed by
// token id; a token with no script fills at its limit price. CancelResult
// and CancelErr script CancelOrder.
type FakeVenue struct {
	mu           sync.Mutex
	Results      map[string]orders.Result
	Errs         map[string]error
	CancelResult bool
	CancelErr    error

	Submitted []VenueCall
	Cancelled []string
}

// SubmitOrder returns the scripted result for the order's token.
func (f *FakeVenue) SubmitOrder(_ context.Context, o *orders.Order) (*orders.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Submitted = append(f.Submitted, VenueCall{TokenID: o.TokenID, Side: o.Side})

	if err, ok := f.Errs[o.TokenID]; ok {
		return nil, err
	}
	if res, ok := f.Results[o.TokenID]; ok {
		return &res, nil
	}
	return &orders.Result{
		Filled:        true,
		FillPrice:     o.Price,
		SettlementRef: "ref-" + o.TokenID,
	}, nil
}

// CancelOrder records the cancellation and returns the scripted outcome.
func (f *FakeVenue) CancelOrder(_ context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Cancelled = append(f.Cancelled, ref)
	if f.CancelErr != nil {
		return false, f.CancelErr
	}
	return f.CancelResult, nil
}
