package redisx

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// setIfVersion writes the revenue only while the store's version is the one
// the caller read before computing it.
var setIfVersion = redis.NewScript(`
if (redis.call('GET', KEYS[2]) or '0') ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RevenueCache caches the paid revenue per store until the next order mutation.
type RevenueCache struct {
	Redis *redis.Client
}

// GetRevenue returns the cached figure and the store's current version. An
// empty version means the cache could not be read.
func (c *RevenueCache) GetRevenue(ctx context.Context, storeID string) (decimal.Decimal, string, bool) {
	vals, err := c.Redis.MGet(ctx, fmt.Sprintf(KeyRevenue, storeID), fmt.Sprintf(KeyRevenueVersion, storeID)).Result()
	if err != nil {
		log.WithError(err).WithField("store_id", storeID).Warn("revenue cache read failed")
		return decimal.Zero, "", false
	}
	version := "0"
	if s, ok := vals[1].(string); ok {
		version = s
	}
	s, ok := vals[0].(string)
	if !ok {
		return decimal.Zero, version, false
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, version, false
	}
	return v, version, true
}

// SetRevenue stores v unless the store was invalidated after version was read.
func (c *RevenueCache) SetRevenue(ctx context.Context, storeID string, v decimal.Decimal, version string) {
	if version == "" {
		return
	}
	keys := []string{fmt.Sprintf(KeyRevenue, storeID), fmt.Sprintf(KeyRevenueVersion, storeID)}
	ttl := strconv.FormatInt(TTLRevenue.Milliseconds(), 10)
	stored, err := setIfVersion.Run(ctx, c.Redis, keys, version, v.String(), ttl).Int()
	if err != nil {
		log.WithError(err).WithField("store_id", storeID).Warn("revenue cache write failed")
		return
	}
	if stored == 0 {
		log.WithField("store_id", storeID).Debug("revenue cache write skipped, store changed")
	}
}

// InvalidateRevenue drops the figure and bumps the version so that in-flight
// computations cannot write a stale value back.
func (c *RevenueCache) InvalidateRevenue(ctx context.Context, storeID string) {
	_, err := c.Redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, fmt.Sprintf(KeyRevenueVersion, storeID))
		p.Del(ctx, fmt.Sprintf(KeyRevenue, storeID))
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("store_id", storeID).Warn("revenue cache invalidate failed")
	}
}
