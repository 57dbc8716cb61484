package redisx

import "time"

const (
	// Dedup of processed events: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cached paid revenue of a store: revenue:{store_id} -> decimal string
	KeyRevenue = "revenue:%s"

	// Bumped on every invalidation: revenue:{store_id}:ver -> counter
	KeyRevenueVersion = "revenue:%s:ver"
)

var (
	TTLDedup   = 48 * time.Hour
	TTLRevenue = 10 * time.Minute
)
