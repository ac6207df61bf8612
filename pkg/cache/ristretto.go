package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// RistrettoCache backs the Cache interface with a Ristretto cache. Every
// entry costs 1, so MaxCost is an item count.
type RistrettoCache struct {
	cache  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds Ristretto sizing. NumCounters should be about 10x
// the expected item count.
type RistrettoConfig struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Logger      *zap.Logger
}

// NewRistrettoCache creates a Ristretto-backed cache with metrics enabled.
func NewRistrettoCache(cfg *RistrettoConfig) (Cache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &RistrettoCache{
		cache:  cache,
		logger: cfg.Logger,
	}, nil
}

// Get retrieves a value from the cache.
func (r *RistrettoCache) Get(key string) (interface{}, bool) {
	value, found := r.cache.Get(key)
	if found {
		CacheHitsTotal.Inc()
	} else {
		CacheMissesTotal.Inc()
	}
	return value, found
}

// Set stores a value with a TTL. Admission is probabilistic; a false return
// means Ristretto declined the entry.
func (r *RistrettoCache) Set(key string, value interface{}, ttl time.Duration) bool {
	success := r.cache.SetWithTTL(key, value, 1, ttl)
	if success {
		CacheSetsTotal.Inc()
	}
	return success
}

// Delete removes a value from the cache.
func (r *RistrettoCache) Delete(key string) {
	r.cache.Del(key)
	CacheDeletesTotal.Inc()
}

// Clear removes all values from the cache.
func (r *RistrettoCache) Clear() {
	r.cache.Clear()
	r.logger.Info("cache-cleared")
}

// Close closes the cache and releases resources.
func (r *RistrettoCache) Close() {
	r.cache.Close()
	r.logger.Info("cache-closed")
}

// Metrics returns Ristretto's internal metrics.
func (r *RistrettoCache) Metrics() *ristretto.Metrics {
	return r.cache.Metrics
}

// Wait blocks until pending writes have been applied. Mostly useful in
// tests, since Set is asynchronous.
func (r *RistrettoCache) Wait() {
	r.cache.Wait()
}
