// Package quotes turns raw book events into per-market quotes. A quote is
// emitted whenever both outcome tokens of a watched market have a known best
// ask. When the stream is down, prices are polled over REST so detection
// degrades to slower data instead of going blind.
package quotes

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
	"github.com/quantfold/polyarb/pkg/types"
)

// Market identifies one binary market to watch.
type Market struct {
	MarketID    string
	ConditionID string
	YesTokenID  string
	NoTokenID   string
}

// Stream is the market data connection. pkg/websocket.Manager satisfies it.
type Stream interface {
	Subscribe(ctx context.Context, tokenIDs []string) error
	Messages() <-chan *types.BookMessage
	Connected() bool
}

// PriceSource fetches a best ask over REST. venue.Client satisfies it.
type PriceSource interface {
	Price(ctx context.Context, tokenID, side string) (fixedpoint.Amount, error)
}

// Config holds feed configuration.
type Config struct {
	Stream       Stream
	Prices       PriceSource   // optional REST fallback
	PollInterval time.Duration // fallback poll cadence, default 5s
	BufferSize   int
	Logger       *zap.Logger
}

// Feed aggregates best asks per token and emits market quotes.
type Feed struct {
	stream Stream
	prices PriceSource
	cfg    Config
	logger *zap.Logger

	mu       sync.RWMutex
	byToken  map[string]*marketState // both outcome tokens point at one state
	markets  []Market
	out      chan types.MarketQuote
	wg       sync.WaitGroup
	stopOnce sync.Once
	stop     chan struct{}
}

type marketState struct {
	market   Market
	yesAsk   fixedpoint.Amount
	noAsk    fixedpoint.Amount
	hasYes   bool
	hasNo    bool
	lastSeen time.Time
}

// New creates a feed over the given stream.
func New(cfg Config) *Feed {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 256
	}

	return &Feed{
		stream:  cfg.Stream,
		prices:  cfg.Prices,
		cfg:     cfg,
		logger:  cfg.Logger,
		byToken: make(map[string]*marketState),
		out:     make(chan types.MarketQuote, cfg.BufferSize),
		stop:    make(chan struct{}),
	}
}

// Watch subscribes the feed to a set of markets.
func (f *Feed) Watch(ctx context.Context, markets []Market) error {
	tokenIDs := make([]string, 0, 2*len(markets))

	f.mu.Lock()
	for _, m := range markets {
		if _, ok := f.byToken[m.YesTokenID]; ok {
			continue
		}
		st := &marketState{market: m}
		f.byToken[m.YesTokenID] = st
		f.byToken[m.NoTokenID] = st
		f.markets = append(f.markets, m)
		tokenIDs = append(tokenIDs, m.YesTokenID, m.NoTokenID)
	}
	f.mu.Unlock()

	if len(tokenIDs) == 0 {
		return nil
	}

	WatchedMarkets.Set(float64(len(f.markets)))
	return f.stream.Subscribe(ctx, tokenIDs)
}

// Start launches the consume and poll loops.
func (f *Feed) Start(ctx context.Context) {
	f.wg.Add(1)
	go f.consumeLoop(ctx)

	if f.prices != nil {
		f.wg.Add(1)
		go f.pollLoop(ctx)
	}
}

// Quotes returns the market quote channel.
func (f *Feed) Quotes() <-chan types.MarketQuote {
	return f.out
}

// Close stops the feed and closes the quote channel.
func (f *Feed) Close() {
	f.stopOnce.Do(func() {
		close(f.stop)
		f.wg.Wait()
		close(f.out)
	})
}

func (f *Feed) consumeLoop(ctx context.Context) {
	defer f.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stop:
			return
		case msg, ok := <-f.stream.Messages():
			if !ok {
				return
			}
			f.handleMessage(msg)
		}
	}
}

func (f *Feed) handleMessage(msg *types.BookMessage) {
	if msg.EventType != types.EventBook && msg.EventType != types.EventPriceChange {
		return
	}

	ask, ok := msg.BestAsk()
	if !ok {
		return
	}
	price, err := fixedpoint.Parse(ask)
	if err != nil {
		f.logger.Debug("unparseable-ask-price",
			zap.String("asset-id", msg.AssetID),
			zap.String("price", ask))
		return
	}

	f.setAsk(msg.AssetID, price)
}

// setAsk records the best ask for a token and emits a quote when its market
// has both sides.
func (f *Feed) setAsk(tokenID string, price fixedpoint.Amount) {
	f.mu.Lock()
	st, ok := f.byToken[tokenID]
	if !ok {
		f.mu.Unlock()
		return
	}
	if tokenID == st.market.YesTokenID {
		st.yesAsk = price
		st.hasYes = true
	} else {
		st.noAsk = price
		st.hasNo = true
	}
	st.lastSeen = time.Now()
	complete := st.hasYes && st.hasNo
	quote := types.MarketQuote{
		MarketID:    st.market.MarketID,
		ConditionID: st.market.ConditionID,
		YesTokenID:  st.market.YesTokenID,
		NoTokenID:   st.market.NoTokenID,
		YesPrice:    st.yesAsk,
		NoPrice:     st.noAsk,
		Timestamp:   st.lastSeen,
	}
	f.mu.Unlock()

	if !complete {
		return
	}

	select {
	case f.out <- quote:
		QuotesEmitted.Inc()
	default:
		QuotesDropped.Inc()
	}
}

// pollLoop fetches best asks over REST while the stream is disconnected.
func (f *Feed) pollLoop(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stop:
			return
		case <-ticker.C:
			if f.stream.Connected() {
				continue
			}
			f.pollOnce(ctx)
		}
	}
}

func (f *Feed) pollOnce(ctx context.Context) {
	f.mu.RLock()
	markets := make([]Market, len(f.markets))
	copy(markets, f.markets)
	f.mu.RUnlock()

	for _, m := range markets {
		for _, tokenID := range []string{m.YesTokenID, m.NoTokenID} {
			price, err := f.prices.Price(ctx, tokenID, "SELL")
			if err != nil {
				f.logger.Warn("price-poll-failed",
					zap.String("token-id", tokenID),
					zap.Error(err))
				continue
			}
			PollsTotal.Inc()
			f.setAsk(tokenID, price)
		}
	}
}
