package mapbox

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/globe-observer-qa/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingChecker struct {
	calls int
	land  bool
	err   error
}

func (m *countingChecker) IsLand(_ context.Context, _, _ float64) (bool, error) {
	m.calls++
	return m.land, m.err
}

func TestCachedLandChecker_Hit(t *testing.T) {
	inner := &countingChecker{land: true}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedLandChecker(inner, 10, metrics)

	land, err := cached.IsLand(context.Background(), 38.89771, -77.03652)
	require.NoError(t, err)
	assert.True(t, land)

	// Same coordinate after rounding to 4 dp.
	land, err = cached.IsLand(context.Background(), 38.89774, -77.03648)
	require.NoError(t, err)
	assert.True(t, land)

	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LandCheckCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LandCheckCache.WithLabelValues("miss")))
	assert.Equal(t, 1, cached.Len())
}

func TestCachedLandChecker_CachesWater(t *testing.T) {
	inner := &countingChecker{land: false}
	cached := NewCachedLandChecker(inner, 10, observability.NewMetricsForTesting())

	for range 3 {
		land, err := cached.IsLand(context.Background(), 0, -140)
		require.NoError(t, err)
		assert.False(t, land)
	}
	assert.Equal(t, 1, inner.calls)
}

func TestCachedLandChecker_ErrorsNotCached(t *testing.T) {
	inner := &countingChecker{err: errors.New("rate limited")}
	cached := NewCachedLandChecker(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.IsLand(context.Background(), 1, 1)
	require.Error(t, err)
	_, err = cached.IsLand(context.Background(), 1, 1)
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Zero(t, cached.Len())
}

func TestCachedLandChecker_DifferentKeysMiss(t *testing.T) {
	inner := &countingChecker{land: true}
	cached := NewCachedLandChecker(inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.IsLand(context.Background(), 1, 1)
	_, _ = cached.IsLand(context.Background(), 1, 1.001)

	assert.Equal(t, 2, inner.calls)
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put("a", true)
	c.put("b", false)

	value, ok := c.get("a")
	assert.True(t, ok)
	assert.True(t, value)

	value, ok = c.get("b")
	assert.True(t, ok)
	assert.False(t, value)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", true)
	c.put("b", true)
	c.put("c", true) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")
	_, ok = c.get("b")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", true)
	c.put("b", true)
	c.get("a")
	c.put("c", true)

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")
	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", true)
	c.put("a", false)

	value, ok := c.get("a")
	assert.True(t, ok)
	assert.False(t, value)
	assert.Equal(t, 1, c.len())
}
