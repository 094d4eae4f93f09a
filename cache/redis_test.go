package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := NewRedisCache(client, "test:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisCache_GetSetDelete(t *testing.T) {
	mr, c := newTestRedis(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "cache:GET:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "cache:GET:abc", []byte(`{"id":1}`), time.Minute))
	assert.True(t, mr.Exists("test:cache:GET:abc"))
	assert.Equal(t, time.Minute, mr.TTL("test:cache:GET:abc"))

	got, ok, err := c.Get(ctx, "cache:GET:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"id":1}`), got)

	require.NoError(t, c.Delete(ctx, "cache:GET:abc"))
	_, ok, _ = c.Get(ctx, "cache:GET:abc")
	assert.False(t, ok)
	assert.NoError(t, c.Delete(ctx, "missing"))
}

func TestRedisCache_PersistedShape(t *testing.T) {
	mr, c := newTestRedis(t)
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 30*time.Second))

	raw, err := mr.Get("test:k")
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	assert.Equal(t, "k", rec["key"])
	assert.EqualValues(t, 30, rec["ttl"])
	assert.Contains(t, rec, "value")
}

func TestRedisCache_NativeExpiry(t *testing.T) {
	mr, c := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 5*time.Second))
	mr.FastForward(6 * time.Second)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_RecordExpiryEnforcedOnRead(t *testing.T) {
	_, c := newTestRedis(t)
	ctx := context.Background()
	clock := newFakeClock()
	c.now = clock.Now

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 5*time.Second))
	clock.Advance(5 * time.Second)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_ClearOnlyOwnPrefix(t *testing.T) {
	mr, c := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, mr.Set("other:keep", "x"))

	require.NoError(t, c.Clear(ctx))
	assert.False(t, mr.Exists("test:a"))
	assert.False(t, mr.Exists("test:b"))
	assert.True(t, mr.Exists("other:keep"))
}

func TestRedisCache_ClearMatching(t *testing.T) {
	mr, c := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "cache:GET:a1", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "cache:HEAD:a1", []byte("2"), time.Minute))
	require.NoError(t, mr.Set("other:cache:GET:x", "keep"))

	require.NoError(t, c.ClearMatching(ctx, "cache:GET:*"))
	assert.False(t, mr.Exists("test:cache:GET:a1"))
	assert.True(t, mr.Exists("test:cache:HEAD:a1"))
	assert.True(t, mr.Exists("other:cache:GET:x"))

	assert.ErrorIs(t, c.ClearMatching(ctx, ""), ErrBadPattern)
}

func TestRedisCache_ErrorsWhenDown(t *testing.T) {
	mr, c := newTestRedis(t)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	mr.SetError("ERR backend down")
	_, _, err := c.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.Error(t, c.Ping(ctx))
}

func TestRedisCache_CorruptValue(t *testing.T) {
	mr, c := newTestRedis(t)
	require.NoError(t, mr.Set("test:k", "garbage"))
	_, _, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrCorruptEntry)
}

func TestNewRedisCache_NilClient(t *testing.T) {
	_, err := NewRedisCache(nil, "")
	assert.ErrorIs(t, err, ErrNilBackend)
}
