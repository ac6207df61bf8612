package quotes

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
	"github.com/quantfold/polyarb/pkg/types"
)

type fakeStream struct {
	mu         sync.Mutex
	messages   chan *types.BookMessage
	connected  bool
	subscribed []string
}

func newFakeStream(connected bool) *fakeStream {
	return &fakeStream{
		messages:  make(chan *types.BookMessage, 16),
		connected: connected,
	}
}

func (s *fakeStream) Subscribe(_ context.Context, tokenIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = append(s.subscribed, tokenIDs...)
	return nil
}

func (s *fakeStream) Messages() <-chan *types.BookMessage { return s.messages }

func (s *fakeStream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

type fakePrices struct {
	mu     sync.Mutex
	prices map[string]fixedpoint.Amount
	calls  int
}

func (p *fakePrices) Price(_ context.Context, tokenID, _ string) (fixedpoint.Amount, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.prices[tokenID], nil
}

func (p *fakePrices) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testMarket() Market {
	return Market{
		MarketID:    "market-1",
		ConditionID: "0xc0nd",
		YesTokenID:  "1111",
		NoTokenID:   "2222",
	}
}

func bookMessage(assetID, ask string) *types.BookMessage {
	return &types.BookMessage{
		EventType: types.EventBook,
		AssetID:   assetID,
		Asks:      []types.PriceLevel{{Price: ask, Size: "100"}},
	}
}

func receiveQuote(t *testing.T, feed *Feed) types.MarketQuote {
	t.Helper()
	select {
	case q := <-feed.Quotes():
		return q
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for quote")
		return types.MarketQuote{}
	}
}

func TestWatchSubscribesBothTokens(t *testing.T) {
	stream := newFakeStream(true)
	feed := New(Config{Stream: stream, Logger: zap.NewNop()})

	if err := feed.Watch(context.Background(), []Market{testMarket()}); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if len(stream.subscribed) != 2 {
		t.Fatalf("subscribed to %d tokens, want 2", len(stream.subscribed))
	}

	// Watching the same market again must not resubscribe.
	if err := feed.Watch(context.Background(), []Market{testMarket()}); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if len(stream.subscribed) != 2 {
		t.Errorf("re-watch subscribed again, total %d", len(stream.subscribed))
	}
}

func TestQuoteEmittedWhenBothSidesKnown(t *testing.T) {
	stream := newFakeStream(true)
	feed := New(Config{Stream: stream, Logger: zap.NewNop()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := feed.Watch(ctx, []Market{testMarket()}); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	feed.Start(ctx)
	defer feed.Close()

	// Only the YES side known: no quote yet.
	stream.messages <- bookMessage("1111", "0.46")
	select {
	case q := <-feed.Quotes():
		t.Fatalf("premature quote %+v with only one side known", q)
	case <-time.After(50 * time.Millisecond):
	}

	// NO side arrives: quote emitted.
	stream.messages <- bookMessage("2222", "0.49")
	quote := receiveQuote(t, feed)

	if quote.MarketID != "market-1" {
		t.Errorf("market = %q, want market-1", quote.MarketID)
	}
	if quote.YesPrice != fixedpoint.MustParse("0.46") {
		t.Errorf("yes price = %s, want 0.46", quote.YesPrice)
	}
	if quote.NoPrice != fixedpoint.MustParse("0.49") {
		t.Errorf("no price = %s, want 0.49", quote.NoPrice)
	}
}

func TestQuoteUpdatedOnPriceChange(t *testing.T) {
	stream := newFakeStream(true)
	feed := New(Config{Stream: stream, Logger: zap.NewNop()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := feed.Watch(ctx, []Market{testMarket()}); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	feed.Start(ctx)
	defer feed.Close()

	stream.messages <- bookMessage("1111", "0.46")
	stream.messages <- bookMessage("2222", "0.49")
	receiveQuote(t, feed)

	update := bookMessage("1111", "0.44")
	update.EventType = types.EventPriceChange
	stream.messages <- update

	quote := receiveQuote(t, feed)
	if quote.YesPrice != fixedpoint.MustParse("0.44") {
		t.Errorf("yes price = %s, want updated 0.44", quote.YesPrice)
	}
	if quote.NoPrice != fixedpoint.MustParse("0.49") {
		t.Errorf("no price = %s, want retained 0.49", quote.NoPrice)
	}
}

func TestIgnoresUnwatchedTokensAndOtherEvents(t *testing.T) {
	stream := newFakeStream(true)
	feed := New(Config{Stream: stream, Logger: zap.NewNop()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := feed.Watch(ctx, []Market{testMarket()}); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	feed.Start(ctx)
	defer feed.Close()

	stream.messages <- bookMessage("9999", "0.10")
	trade := bookMessage("1111", "0.46")
	trade.EventType = types.EventLastTrade
	stream.messages <- trade
	stream.messages <- &types.BookMessage{EventType: types.EventBook, AssetID: "1111"}

	select {
	case q := <-feed.Quotes():
		t.Fatalf("unexpected quote %+v", q)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPollFallbackWhenDisconnected(t *testing.T) {
	stream := newFakeStream(false)
	prices := &fakePrices{prices: map[string]fixedpoint.Amount{
		"1111": fixedpoint.MustParse("0.46"),
		"2222": fixedpoint.MustParse("0.49"),
	}}
	feed := New(Config{
		Stream:       stream,
		Prices:       prices,
		PollInterval: 10 * time.Millisecond,
		Logger:       zap.NewNop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := feed.Watch(ctx, []Market{testMarket()}); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	feed.Start(ctx)
	defer feed.Close()

	quote := receiveQuote(t, feed)
	if quote.YesPrice != fixedpoint.MustParse("0.46") || quote.NoPrice != fixedpoint.MustParse("0.49") {
		t.Errorf("polled quote = %s/%s, want 0.46/0.49", quote.YesPrice, quote.NoPrice)
	}
}

func TestPollSkippedWhileConnected(t *testing.T) {
	stream := newFakeStream(true)
	prices := &fakePrices{prices: map[string]fixedpoint.Amount{}}
	feed := New(Config{
		Stream:       stream,
		Prices:       prices,
		PollInterval: 5 * time.Millisecond,
		Logger:       zap.NewNop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := feed.Watch(ctx, []Market{testMarket()}); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	feed.Start(ctx)

	time.Sleep(30 * time.Millisecond)
	feed.Close()

	if got := prices.callCount(); got != 0 {
		t.Errorf("REST polled %d times while the stream was connected", got)
	}
}
