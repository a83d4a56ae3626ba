package storage

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prn-tf/notebook-server/internal/cache/memory"
	"github.com/prn-tf/notebook-server/internal/cache/redis"
	"github.com/prn-tf/notebook-server/internal/config"
	"github.com/prn-tf/notebook-server/internal/lock"
	"github.com/prn-tf/notebook-server/internal/repository"
)

// CachePrefix namespaces every key the server writes to Redis.
const CachePrefix = "notebook:"

// Coordination bundles the lock and cache shared by server processes.
// With Redis disabled both are process-local.
type Coordination struct {
	Locker lock.Locker
	Cache  repository.Cache

	closers []func() error
}

// OpenCoordination builds the locker and cache selected by cfg.
func OpenCoordination(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (*Coordination, error) {
	if !cfg.Enabled {
		locker := lock.NewMemoryLocker()
		cache := memory.NewCache()
		logger.Debug().Msg("using in-process lock and cache")
		return &Coordination{
			Locker: locker,
			Cache:  cache,
			closers: []func() error{
				func() error { locker.Stop(); return nil },
				func() error { cache.Stop(); return nil },
			},
		}, nil
	}

	client, err := redis.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("addr", cfg.Addr()).Msg("using redis for lock and cache")
	return newRedisCoordination(client), nil
}

func newRedisCoordination(client goredis.UniversalClient) *Coordination {
	return &Coordination{
		Locker:  lock.NewRedisLocker(client),
		Cache:   redis.NewCache(client, CachePrefix),
		closers: []func() error{client.Close},
	}
}

// Close releases the underlying clients.
func (c *Coordination) Close() error {
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
