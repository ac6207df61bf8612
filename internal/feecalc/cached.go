package feecalc

import (
	"time"

	"github.com/quantfold/polyarb/pkg/cache"
	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

// Cached wraps a Calculator with a fee-rate cache. Fee rates depend only on
// the price, so lookups on the scan hot path hit the cache almost always.
type Cached struct {
	inner Calculator
	cache cache.Cache
	ttl   time.Duration
}

// NewCached creates a caching wrapper around calc.
func NewCached(calc Calculator, c cache.Cache, ttl time.Duration) *Cached {
	return &Cached{
		inner: calc,
		cache: c,
		ttl:   ttl,
	}
}

// FeeRate returns the cached fee rate for price, computing and storing it on
// a miss.
func (c *Cached) FeeRate(price fixedpoint.Amount) fixedpoint.Amount {
	key := "fee:" + price.String()

	if v, ok := c.cache.Get(key); ok {
		if fee, ok := v.(fixedpoint.Amount); ok {
			return fee
		}
	}

	fee := c.inner.FeeRate(price)
	c.cache.Set(key, fee, c.ttl)
	return fee
}

// TotalCost computes the pair cost using cached per-leg fee rates.
func (c *Cached) TotalCost(yesPrice, noPrice fixedpoint.Amount) (yesFee, noFee, totalCost fixedpoint.Amount) {
	yesFee = c.FeeRate(yesPrice)
	noFee = c.FeeRate(noPrice)

	yesCost := yesPrice.Mul(fixedpoint.One + yesFee)
	noCost := noPrice.Mul(fixedpoint.One + noFee)

	return yesFee, noFee, yesCost + noCost
}
