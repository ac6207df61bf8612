// Package discovery finds tradable binary markets by polling the metadata
// API and hands new ones to the quote feed. Only two-outcome YES/NO markets
// with a condition ID are eligible; everything else is skipped.
package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/polyarb/internal/quotes"
	"github.com/quantfold/polyarb/pkg/cache"
	"github.com/quantfold/polyarb/pkg/types"
)

// Service discovers new markets by polling the metadata API.
type Service struct {
	client       *Client
	cache        cache.Cache
	pollInterval time.Duration
	marketLimit  int
	logger       *zap.Logger
	singleMarket string // debugging: track only this slug

	mu         sync.RWMutex
	subscribed map[string]quotes.Market // keyed by slug

	newMarkets chan quotes.Market
}

// Config holds discovery service configuration.
type Config struct {
	Client       *Client
	Cache        cache.Cache
	PollInterval time.Duration
	MarketLimit  int
	SingleMarket string
	Logger       *zap.Logger
}

// New creates a discovery service.
func New(cfg *Config) *Service {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 30 * time.Second
	}

	return &Service{
		client:       cfg.Client,
		cache:        cfg.Cache,
		pollInterval: cfg.PollInterval,
		marketLimit:  cfg.MarketLimit,
		logger:       cfg.Logger,
		singleMarket: cfg.SingleMarket,
		subscribed:   make(map[string]quotes.Market),
		newMarkets:   make(chan quotes.Market, 100),
	}
}

// Run polls until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("discovery-starting",
		zap.Duration("poll-interval", s.pollInterval),
		zap.Int("market-limit", s.marketLimit),
		zap.String("single-market", s.singleMarket))

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	if err := s.poll(ctx); err != nil {
		s.logger.Error("initial-poll-failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("discovery-stopping")
			close(s.newMarkets)
			return ctx.Err()
		case <-ticker.C:
			if err := s.poll(ctx); err != nil {
				s.logger.Error("poll-failed", zap.Error(err))
			}
		}
	}
}

func (s *Service) poll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		PollDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	if s.singleMarket != "" {
		return s.pollSingle(ctx)
	}

	markets, err := s.client.FetchActiveMarkets(ctx, s.marketLimit)
	if err != nil {
		PollErrorsTotal.Inc()
		return fmt.Errorf("fetch active markets: %w", err)
	}
	MarketsDiscoveredTotal.Add(float64(len(markets)))

	added := 0
	for i := range markets {
		if s.admit(&markets[i]) {
			added++
		}
	}

	s.logger.Debug("poll-complete",
		zap.Int("total-markets", len(markets)),
		zap.Int("new-markets", added),
		zap.Duration("duration", time.Since(start)))

	return nil
}

func (s *Service) pollSingle(ctx context.Context) error {
	s.mu.RLock()
	_, exists := s.subscribed[s.singleMarket]
	s.mu.RUnlock()
	if exists {
		return nil
	}

	market, err := s.client.FetchMarketBySlug(ctx, s.singleMarket)
	if err != nil {
		PollErrorsTotal.Inc()
		return fmt.Errorf("fetch market by slug %q: %w", s.singleMarket, err)
	}
	MarketsDiscoveredTotal.Inc()

	if !s.admit(market) {
		return fmt.Errorf("market %q is not a tradable binary market", s.singleMarket)
	}
	return nil
}

// admit registers a market and emits it when it is new and tradable.
func (s *Service) admit(market *types.GammaMarket) bool {
	if !market.Binary() {
		s.logger.Debug("skipping-non-binary-market",
			zap.String("market-id", market.ID),
			zap.String("question", market.Question))
		return false
	}

	s.mu.Lock()
	if _, exists := s.subscribed[market.Slug]; exists {
		s.mu.Unlock()
		return false
	}
	m := quotes.Market{
		MarketID:    market.ID,
		ConditionID: market.ConditionID,
		YesTokenID:  market.TokenByOutcome("YES").TokenID,
		NoTokenID:   market.TokenByOutcome("NO").TokenID,
	}
	s.subscribed[market.Slug] = m
	s.mu.Unlock()

	s.cacheMarket(market)

	select {
	case s.newMarkets <- m:
		NewMarketsTotal.Inc()
		s.logger.Info("new-market-discovered",
			zap.String("market-id", market.ID),
			zap.String("question", market.Question))
		return true
	default:
		s.logger.Warn("new-markets-channel-full", zap.String("market-id", market.ID))
		return false
	}
}

// NewMarkets returns the channel of newly discovered markets.
func (s *Service) NewMarkets() <-chan quotes.Market {
	return s.newMarkets
}

// SubscribedMarkets returns all markets handed to the feed so far.
func (s *Service) SubscribedMarkets() []quotes.Market {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]quotes.Market, 0, len(s.subscribed))
	for _, m := range s.subscribed {
		out = append(out, m)
	}
	return out
}

func (s *Service) cacheMarket(market *types.GammaMarket) {
	if s.cache == nil {
		return
	}
	if !s.cache.Set(market.ID, market, 24*time.Hour) {
		s.logger.Warn("failed-to-cache-market", zap.String("market-id", market.ID))
	}
}

// Market retrieves a cached market, or nil when unknown.
func (s *Service) Market(marketID string) *types.GammaMarket {
	if s.cache == nil {
		return nil
	}
	value, found := s.cache.Get(marketID)
	if !found {
		return nil
	}
	market, ok := value.(*types.GammaMarket)
	if !ok {
		return nil
	}
	return market
}
