package redisx

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *Deduper, *RevenueCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, &Deduper{Redis: rdb, Consumer: "webhook"}, &RevenueCache{Redis: rdb}
}

func TestDeduperMarksWithTTL(t *testing.T) {
	mr, d, _ := newTestClient(t)
	ctx := context.Background()

	assert.False(t, d.Seen(ctx, "evt_1"))
	d.Mark(ctx, "evt_1")
	assert.True(t, d.Seen(ctx, "evt_1"))
	assert.False(t, d.Seen(ctx, "evt_2"))

	assert.Equal(t, TTLDedup, mr.TTL("dedup:webhook:evt_1"))
	mr.FastForward(TTLDedup)
	assert.False(t, d.Seen(ctx, "evt_1"))
}

func TestDeduperTreatsOutageAsUnseen(t *testing.T) {
	mr, d, _ := newTestClient(t)
	mr.SetError("LOADING redis is loading")
	assert.False(t, d.Seen(context.Background(), "evt_1"))
}

func TestRevenueCacheRoundTrip(t *testing.T) {
	mr, _, c := newTestClient(t)
	ctx := context.Background()

	_, ver, ok := c.GetRevenue(ctx, "store-1")
	assert.False(t, ok)
	assert.Equal(t, "0", ver)

	c.SetRevenue(ctx, "store-1", decimal.RequireFromString("80.50"), ver)
	v, _, ok := c.GetRevenue(ctx, "store-1")
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.RequireFromString("80.5")))
	assert.Equal(t, TTLRevenue, mr.TTL("revenue:store-1"))

	c.InvalidateRevenue(ctx, "store-1")
	_, ver, ok = c.GetRevenue(ctx, "store-1")
	assert.False(t, ok)
	assert.Equal(t, "1", ver)
}

func TestRevenueCacheDropsWriteAfterInvalidation(t *testing.T) {
	mr, _, c := newTestClient(t)
	ctx := context.Background()

	_, ver, ok := c.GetRevenue(ctx, "store-1")
	require.False(t, ok)

	// An order changes while the old figure is being summed.
	c.InvalidateRevenue(ctx, "store-1")
	c.SetRevenue(ctx, "store-1", decimal.RequireFromString("80"), ver)

	assert.False(t, mr.Exists("revenue:store-1"))
	_, _, ok = c.GetRevenue(ctx, "store-1")
	assert.False(t, ok)
}

func TestRevenueCacheSkipsWriteWhenReadFailed(t *testing.T) {
	mr, _, c := newTestClient(t)
	ctx := context.Background()

	mr.SetError("LOADING redis is loading")
	_, ver, ok := c.GetRevenue(ctx, "store-1")
	assert.False(t, ok)
	assert.Empty(t, ver)
	mr.SetError("")

	c.SetRevenue(ctx, "store-1", decimal.RequireFromString("80"), ver)
	assert.False(t, mr.Exists("revenue:store-1"))
}

func TestRevenueCacheIgnoresGarbage(t *testing.T) {
	mr, _, c := newTestClient(t)
	require.NoError(t, mr.Set("revenue:store-1", "not-a-number"))
	_, _, ok := c.GetRevenue(context.Background(), "store-1")
	assert.False(t, ok)
}
