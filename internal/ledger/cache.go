package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "ledger:onhand:version"

// OnHandCache caches derived on-hand totals in Redis with a global version.
// Every ledger write bumps the version, invalidating all cached totals at
// once; totals are cheap to recompute so fine-grained invalidation is not
// worth the bookkeeping.
type OnHandCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOnHandCache instantiates the cache helper. A nil client disables
// caching transparently.
func NewOnHandCache(client *redis.Client, ttl time.Duration) *OnHandCache {
	return &OnHandCache{client: client, ttl: ttl}
}

func (c *OnHandCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Fetch loads a cached total or populates it via the loader.
func (c *OnHandCache) Fetch(ctx context.Context, componentID, variantKey string, loader func(context.Context) (float64, error)) (float64, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	ver, err := c.version(ctx)
	if err != nil {
		return loader(ctx)
	}
	key := fmt.Sprintf("ledger:onhand:%s:%s:%d", componentID, variantKey, ver)
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if total, parseErr := strconv.ParseFloat(raw, 64); parseErr == nil {
			return total, nil
		}
	}
	total, err := loader(ctx)
	if err != nil {
		return 0, err
	}
	_ = c.client.Set(ctx, key, strconv.FormatFloat(total, 'f', -1, 64), c.ttl).Err()
	return total, nil
}

// Bump invalidates all cached totals by incrementing the global version.
func (c *OnHandCache) Bump(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Incr(ctx, cacheVersionKey).Err()
}
