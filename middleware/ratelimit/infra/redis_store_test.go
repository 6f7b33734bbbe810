package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisStore_IncrWithExpirySetsTTLOnce(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	s := NewRedisStore(rdb, WithKeyPrefix("test:"))
	ctx := context.Background()

	n, err := s.IncrWithExpiry(ctx, "k", 1500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1500*time.Millisecond, mr.TTL("test:k"))

	mr.FastForward(500 * time.Millisecond)
	n, err = s.IncrWithExpiry(ctx, "k", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	// TTL não é renovado em incrementos seguintes
	assert.Equal(t, time.Second, mr.TTL("test:k"))

	mr.FastForward(time.Second)
	n, err = s.IncrWithExpiry(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisStore_IncrWithExpiryRepairsMissingTTL(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	s := NewRedisStore(rdb)
	ctx := context.Background()

	_, err := s.Incr(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, mr.TTL("k"))

	n, err := s.IncrWithExpiry(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, time.Minute, mr.TTL("k"))
}

func TestRedisStore_GetSetDelTTL(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	s := NewRedisStore(rdb)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := s.TTL(ctx, "missing")
	require.NoError(t, err)
	assert.Negative(t, ttl)

	require.NoError(t, s.Set(ctx, "flag", "medium", 10*time.Second))
	v, ok, err := s.Get(ctx, "flag")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "medium", v)

	ttl, err = s.TTL(ctx, "flag")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, ttl)

	mr.FastForward(11 * time.Second)
	_, ok, err = s.Get(ctx, "flag")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", "1", 0))
	require.NoError(t, s.Set(ctx, "b", "1", 0))
	n, err := s.Del(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRedisStore_Expire(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	s := NewRedisStore(rdb)
	ctx := context.Background()

	ok, err := s.Expire(ctx, "missing", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _ = s.Incr(ctx, "k")
	ok, err = s.Expire(ctx, "k", 3*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, mr.TTL("k"))
}

func TestRedisStore_Sets(t *testing.T) {
	_, rdb := newMiniRedis(t)
	s := NewRedisStore(rdb)
	ctx := context.Background()

	n, err := s.SAdd(ctx, "banned", "10.0.0.1", "10.0.0.2", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	is, err := s.SIsMember(ctx, "banned", "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, is)

	is, err = s.SIsMember(ctx, "banned", "10.0.0.3")
	require.NoError(t, err)
	assert.False(t, is)

	assert.NoError(t, s.Ping(ctx))
}

func TestRedisStore_ErrorsWhenServerDown(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	s := NewRedisStore(rdb)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := s.IncrWithExpiry(ctx, "k", time.Second)
	assert.Error(t, err)
}
