package discovery

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/quantfold/polyarb/internal/testutil"
	"github.com/quantfold/polyarb/pkg/types"
)

func TestFetchActiveMarketsPagination(t *testing.T) {
	// 150 markets force two pages at the 100-per-request cap.
	markets := make([]types.GammaMarket, 150)
	for i := range markets {
		id := fmt.Sprintf("%03d", i)
		markets[i] = testutil.GammaMarket(id, "slug-"+id, "Question "+id+"?")
	}
	api := testutil.NewMockGammaAPI(markets)
	defer api.Close()

	client := NewClient(api.URL, zap.NewNop())

	got, err := client.FetchActiveMarkets(context.Background(), 0)
	if err != nil {
		t.Fatalf("FetchActiveMarkets: %v", err)
	}
	if len(got) != 150 {
		t.Fatalf("fetched %d markets, want 150", len(got))
	}
	if got[0].ID != "000" || got[149].ID != "149" {
		t.Errorf("pagination order broken: first %s last %s", got[0].ID, got[149].ID)
	}
}

func TestFetchActiveMarketsLimit(t *testing.T) {
	markets := make([]types.GammaMarket, 30)
	for i := range markets {
		id := fmt.Sprintf("%03d", i)
		markets[i] = testutil.GammaMarket(id, "slug-"+id, "Question "+id+"?")
	}
	api := testutil.NewMockGammaAPI(markets)
	defer api.Close()

	client := NewClient(api.URL, zap.NewNop())

	got, err := client.FetchActiveMarkets(context.Background(), 10)
	if err != nil {
		t.Fatalf("FetchActiveMarkets: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("fetched %d markets, want limit 10", len(got))
	}
}

func TestFetchMarketBySlug(t *testing.T) {
	api := testutil.NewMockGammaAPI([]types.GammaMarket{
		testutil.GammaMarket("001", "rain-tomorrow", "Will it rain tomorrow?"),
		testutil.GammaMarket("002", "snow-tomorrow", "Will it snow tomorrow?"),
	})
	defer api.Close()

	client := NewClient(api.URL, zap.NewNop())

	market, err := client.FetchMarketBySlug(context.Background(), "snow-tomorrow")
	if err != nil {
		t.Fatalf("FetchMarketBySlug: %v", err)
	}
	if market.ID != "002" {
		t.Errorf("market ID = %s, want 002", market.ID)
	}

	if _, err := client.FetchMarketBySlug(context.Background(), "no-such-market"); err == nil {
		t.Error("expected error for unknown slug")
	}
}

func TestServiceAdmitsBinaryMarketsOnce(t *testing.T) {
	api := testutil.NewMockGammaAPI([]types.GammaMarket{
		testutil.GammaMarket("001", "rain-tomorrow", "Will it rain tomorrow?"),
	})
	defer api.Close()

	svc := New(&Config{
		Client: NewClient(api.URL, zap.NewNop()),
		Logger: zap.NewNop(),
	})

	if err := svc.poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	select {
	case m := <-svc.NewMarkets():
		if m.MarketID != "001" {
			t.Errorf("market ID = %s, want 001", m.MarketID)
		}
		if m.YesTokenID != "00101" || m.NoTokenID != "00102" {
			t.Errorf("token IDs = %s/%s, want 00101/00102", m.YesTokenID, m.NoTokenID)
		}
	default:
		t.Fatal("no market emitted")
	}

	// Second poll of the same set must not re-emit.
	if err := svc.poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	select {
	case m := <-svc.NewMarkets():
		t.Fatalf("market %s emitted twice", m.MarketID)
	default:
	}

	if got := len(svc.SubscribedMarkets()); got != 1 {
		t.Errorf("subscribed markets = %d, want 1", got)
	}
}

func TestServiceSkipsNonBinaryMarkets(t *testing.T) {
	multi := testutil.GammaMarket("003", "election-winner", "Who wins the election?")
	multi.Outcomes = `["Alice", "Bob", "Carol"]`
	multi.ClobTokens = `["a", "b", "c"]`
	noCondition := testutil.GammaMarket("004", "no-condition", "Odd one?")
	noCondition.ConditionID = ""

	api := testutil.NewMockGammaAPI([]types.GammaMarket{multi, noCondition})
	defer api.Close()

	svc := New(&Config{
		Client: NewClient(api.URL, zap.NewNop()),
		Logger: zap.NewNop(),
	})

	if err := svc.poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	select {
	case m := <-svc.NewMarkets():
		t.Fatalf("non-binary market %s emitted", m.MarketID)
	default:
	}
}

func TestServiceSingleMarketMode(t *testing.T) {
	api := testutil.NewMockGammaAPI([]types.GammaMarket{
		testutil.GammaMarket("001", "rain-tomorrow", "Will it rain tomorrow?"),
		testutil.GammaMarket("002", "snow-tomorrow", "Will it snow tomorrow?"),
	})
	defer api.Close()

	svc := New(&Config{
		Client:       NewClient(api.URL, zap.NewNop()),
		SingleMarket: "snow-tomorrow",
		Logger:       zap.NewNop(),
	})

	if err := svc.poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	select {
	case m := <-svc.NewMarkets():
		if m.MarketID != "002" {
			t.Errorf("market ID = %s, want 002", m.MarketID)
		}
	default:
		t.Fatal("tracked market not emitted")
	}
	if got := len(svc.SubscribedMarkets()); got != 1 {
		t.Errorf("subscribed markets = %d, want only the tracked one", got)
	}
}
