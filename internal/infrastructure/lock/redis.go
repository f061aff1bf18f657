package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	corelock "supplyhub/internal/core/lock"
	"supplyhub/pkg/logger"
)

// RedisConfig tunes the Redis locker.
type RedisConfig struct {
	// TTL bounds how long a crashed holder keeps the lock.
	TTL time.Duration
	// RetryEvery is the linear backoff between attempts.
	RetryEvery time.Duration
	// MaxRetries caps attempts; the context deadline applies as well.
	MaxRetries int
}

// DefaultRedisConfig returns production defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		TTL:        30 * time.Second,
		RetryEvery: 100 * time.Millisecond,
		MaxRetries: 50,
	}
}

// Redis is a distributed keyed lock built on bsm/redislock.
type Redis struct {
	client *redislock.Client
	cfg    RedisConfig
}

var _ corelock.Locker = (*Redis)(nil)

// NewRedis creates a locker over rdb.
func NewRedis(rdb redis.UniversalClient, cfg RedisConfig) *Redis {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultRedisConfig().TTL
	}
	if cfg.RetryEvery <= 0 {
		cfg.RetryEvery = DefaultRedisConfig().RetryEvery
	}
	return &Redis{client: redislock.New(rdb), cfg: cfg}
}

func (r *Redis) Acquire(ctx context.Context, key string) (corelock.Release, error) {
	strategy := redislock.LinearBackoff(r.cfg.RetryEvery)
	if r.cfg.MaxRetries > 0 {
		strategy = redislock.LimitRetry(strategy, r.cfg.MaxRetries)
	}

	lk, err := r.client.Obtain(ctx, key, r.cfg.TTL, &redislock.Options{RetryStrategy: strategy})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, corelock.ErrNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func() {
		// Release must succeed even when the request context is gone.
		if err := lk.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn(ctx, "failed to release redis lock", "key", key, "error", err)
		}
	}, nil
}
