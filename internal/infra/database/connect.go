package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// NewRedis returns a client for the pub/sub backend.
func NewRedis(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewMemcached returns a client for the count cache.
func NewMemcached(server string) *memcache.Client {
	mc := memcache.New(server)
	mc.Timeout = 200 * time.Millisecond
	return mc
}

const (
	connectAttempts = 10
	connectDelay    = time.Second
)

func waitFor(ctx context.Context, name string, ping func() error) error {
	return retry.Do(
		ping,
		retry.Context(ctx),
		retry.Attempts(connectAttempts),
		retry.Delay(connectDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("waiting for backend",
				slog.String("module", "database"),
				slog.String("backend", name),
				slog.Uint64("attempt", uint64(n+1)),
				slog.String("error", err.Error()),
			)
		}),
	)
}

// WaitForDB blocks until the database answers a ping.
func WaitForDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return waitFor(ctx, "sql", func() error { return sqlDB.PingContext(ctx) })
}

func WaitForRedis(ctx context.Context, rdb *redis.Client) error {
	return waitFor(ctx, "redis", func() error { return rdb.Ping(ctx).Err() })
}

func WaitForMemcached(ctx context.Context, mc *memcache.Client) error {
	return waitFor(ctx, "memcached", mc.Ping)
}
