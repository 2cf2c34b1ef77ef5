package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"walletcore.com/internal/domain/entity"
	"walletcore.com/internal/domain/port"
)

const responseKeyPrefix = "authz:response:"

var _ port.ResponseCache = (*RedisResponseCache)(nil)

// RedisResponseCache keeps committed authorization responses for replays.
// The idempotency table stays authoritative; a miss or an outage falls
// through to it.
type RedisResponseCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisResponseCache creates a response cache whose entries expire after ttl.
func NewRedisResponseCache(rdb *redis.Client, ttl time.Duration) *RedisResponseCache {
	return &RedisResponseCache{rdb: rdb, ttl: ttl}
}

// OpenRedis connects and pings.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Get returns the cached response for idempotencyKey, if any.
func (c *RedisResponseCache) Get(ctx context.Context, idempotencyKey string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, responseKeyPrefix+idempotencyKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, err)
	}
	return b, true, nil
}

// Set stores response under idempotencyKey.
func (c *RedisResponseCache) Set(ctx context.Context, idempotencyKey string, response []byte) error {
	if err := c.rdb.Set(ctx, responseKeyPrefix+idempotencyKey, response, c.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, err)
	}
	return nil
}
