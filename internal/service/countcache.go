package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/zeebo/xxh3"
)

const countCachePrefix = "dvote:count:"

// CountCache keeps per-topic counts in memcached. Misses and backend errors
// fall through to the database.
type CountCache struct {
	mc  *memcache.Client
	ttl int32
}

func NewCountCache(mc *memcache.Client, ttl time.Duration) *CountCache {
	return &CountCache{mc: mc, ttl: int32(ttl / time.Second)}
}

// cacheKey hashes key since topic ids may hold characters memcached rejects.
func cacheKey(key string) string {
	return countCachePrefix + strconv.FormatUint(xxh3.HashString(key), 16)
}

func (c *CountCache) Get(ctx context.Context, key string) (int64, bool) {
	item, err := c.mc.Get(cacheKey(key))
	if err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			slog.DebugContext(ctx, "count cache get failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
				slog.String("module", "countcache"),
			)
		}
		return 0, false
	}
	n, err := strconv.ParseInt(string(item.Value), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *CountCache) Set(ctx context.Context, key string, n int64) {
	err := c.mc.Set(&memcache.Item{
		Key:        cacheKey(key),
		Value:      []byte(strconv.FormatInt(n, 10)),
		Expiration: c.ttl,
	})
	if err != nil {
		slog.DebugContext(ctx, "count cache set failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
			slog.String("module", "countcache"),
		)
	}
}

func (c *CountCache) Invalidate(ctx context.Context, key string) {
	err := c.mc.Delete(cacheKey(key))
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		slog.WarnContext(ctx, "count cache invalidate failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
			slog.String("module", "countcache"),
		)
	}
}
