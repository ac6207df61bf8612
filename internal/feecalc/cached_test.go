package feecalc

import (
	"testing"
	"time"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

// mapCache is an in-memory cache.Cache for tests.
type mapCache struct {
	data map[string]interface{}
	sets int
	gets int
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]interface{})}
}

func (m *mapCache) Get(key string) (interface{}, bool) {
	m.gets++
	v, ok := m.data[key]
	return v, ok
}

func (m *mapCache) Set(key string, value interface{}, _ time.Duration) bool {
	m.sets++
	m.data[key] = value
	return true
}

func (m *mapCache) Delete(key string) { delete(m.data, key) }
func (m *mapCache) Clear()            { m.data = make(map[string]interface{}) }
func (m *mapCache) Close()            {}

// countingCalc counts how often the inner calculator is consulted.
type countingCalc struct {
	Dynamic
	calls int
}

func (c *countingCalc) FeeRate(price fixedpoint.Amount) fixedpoint.Amount {
	c.calls++
	return c.Dynamic.FeeRate(price)
}

func TestCachedFeeRate(t *testing.T) {
	inner := &countingCalc{}
	mc := newMapCache()
	calc := NewCached(inner, mc, time.Hour)

	price := fixedpoint.MustParse("0.46")

	first := calc.FeeRate(price)
	second := calc.FeeRate(price)

	if first != second {
		t.Fatalf("cached rate %s differs from computed %s", second, first)
	}
	if inner.calls != 1 {
		t.Errorf("inner calculator called %d times, want 1", inner.calls)
	}
	if mc.sets != 1 {
		t.Errorf("cache sets = %d, want 1", mc.sets)
	}
}

func TestCachedTotalCostMatchesInner(t *testing.T) {
	inner := NewDynamic()
	calc := NewCached(inner, newMapCache(), time.Hour)

	yes := fixedpoint.MustParse("0.46")
	no := fixedpoint.MustParse("0.49")

	wy, wn, wt := inner.TotalCost(yes, no)
	gy, gn, gt := calc.TotalCost(yes, no)

	if gy != wy || gn != wn || gt != wt {
		t.Errorf("cached TotalCost = (%s, %s, %s), want (%s, %s, %s)", gy, gn, gt, wy, wn, wt)
	}
}

func TestCachedDistinctPrices(t *testing.T) {
	inner := &countingCalc{}
	calc := NewCached(inner, newMapCache(), time.Hour)

	calc.FeeRate(fixedpoint.MustParse("0.46"))
	calc.FeeRate(fixedpoint.MustParse("0.49"))
	calc.FeeRate(fixedpoint.MustParse("0.46"))

	if inner.calls != 2 {
		t.Errorf("inner calculator called %d times, want 2", inner.calls)
	}
}
