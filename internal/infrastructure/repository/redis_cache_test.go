package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisResponseCache(t *testing.T) {
	addr := os.Getenv("LEDGER_REDIS_ADDR")
	if addr == "" {
		t.Skip("LEDGER_REDIS_ADDR not set")
	}
	ctx := context.Background()

	rdb, err := OpenRedis(ctx, addr, os.Getenv("LEDGER_REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	cache := NewRedisResponseCache(rdb, time.Minute)
	key := "test-" + uuid.NewString()

	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	payload := []byte(`{"actionCode":"00","approvalCode":"abc123"}`)
	require.NoError(t, cache.Set(ctx, key, payload))

	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, payload, got)

	ttl, err := rdb.TTL(ctx, responseKeyPrefix+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
