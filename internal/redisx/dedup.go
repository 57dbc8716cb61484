package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Deduper remembers processed event ids for one consumer. Redis is only a fast
// path: a lookup error counts as "not seen" and the durable guard decides.
type Deduper struct {
	Redis    *redis.Client
	Consumer string
}

func (d *Deduper) key(id string) string { return fmt.Sprintf(KeyDedup, d.Consumer, id) }

func (d *Deduper) Seen(ctx context.Context, id string) bool {
	ok, err := Exists(ctx, d.Redis, d.key(id))
	if err != nil {
		log.WithError(err).WithField("event_id", id).Warn("dedup lookup failed")
		return false
	}
	return ok
}

func (d *Deduper) Mark(ctx context.Context, id string) {
	if err := d.Redis.Set(ctx, d.key(id), "1", TTLDedup).Err(); err != nil {
		log.WithError(err).WithField("event_id", id).Warn("dedup mark failed")
	}
}
