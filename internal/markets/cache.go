package markets

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfold/polyarb/pkg/cache"
	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

// Rules holds the venue trading rules for a token.
type Rules struct {
	TickSize     fixedpoint.Amount
	MinOrderSize fixedpoint.Amount
	FetchedAt    time.Time
}

// CachedMetadataClient wraps MetadataClient with caching. Trading rules
// change rarely, so a long TTL is safe.
type CachedMetadataClient struct {
	client *MetadataClient
	cache  cache.Cache
	ttl    time.Duration
}

// NewCachedMetadataClient creates a cached metadata client.
func NewCachedMetadataClient(client *MetadataClient, cache cache.Cache) *CachedMetadataClient {
	return &CachedMetadataClient{
		client: client,
		cache:  cache,
		ttl:    24 * time.Hour,
	}
}

// GetRules fetches the trading rules for a token, consulting the cache first.
func (c *CachedMetadataClient) GetRules(ctx context.Context, tokenID string) (*Rules, error) {
	cacheKey := fmt.Sprintf("rules:%s", tokenID)

	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey); ok {
			if rules, ok := cached.(*Rules); ok {
				MetadataCacheHitsTotal.Inc()
				return rules, nil
			}
		}
		MetadataCacheMissesTotal.Inc()
	}

	start := time.Now()
	tickSize, minOrderSize, err := c.client.FetchRules(ctx, tokenID)
	MetadataFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		MetadataFetchErrorsTotal.Inc()
		return nil, err
	}

	rules := &Rules{
		TickSize:     tickSize,
		MinOrderSize: minOrderSize,
		FetchedAt:    time.Now(),
	}
	if c.cache != nil {
		c.cache.Set(cacheKey, rules, c.ttl)
	}
	return rules, nil
}

// UpdateTickSize overwrites the cached tick size for a token. Called when
// the market stream reports a tick size change. A token not yet in the
// cache is left alone and will be fetched on next access.
func (c *CachedMetadataClient) UpdateTickSize(tokenID string, newTickSize fixedpoint.Amount) {
	if c.cache == nil {
		return
	}

	cacheKey := fmt.Sprintf("rules:%s", tokenID)
	cached, ok := c.cache.Get(cacheKey)
	if !ok {
		return
	}
	rules, ok := cached.(*Rules)
	if !ok {
		return
	}

	updated := &Rules{
		TickSize:     newTickSize,
		MinOrderSize: rules.MinOrderSize,
		FetchedAt:    time.Now(),
	}
	c.cache.Set(cacheKey, updated, c.ttl)
}
