package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKV implements the subset of jetstream.KeyValue the cache uses.
type fakeKV struct {
	jetstream.KeyValue

	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string][]byte{}} }

type fakeEntry struct {
	jetstream.KeyValueEntry
	key   string
	value []byte
}

func (e fakeEntry) Key() string   { return e.key }
func (e fakeEntry) Value() []byte { return e.value }

type fakeLister struct{ ch chan string }

func (l fakeLister) Keys() <-chan string { return l.ch }
func (l fakeLister) Stop() error         { return nil }

func (f *fakeKV) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return fakeEntry{key: key, value: v}, nil
}

func (f *fakeKV) Put(_ context.Context, key string, value []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.data[key] = value
	return uint64(len(f.data)), nil
}

func (f *fakeKV) Delete(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.data, key)
	return nil
}

func (f *fakeKV) ListKeys(_ context.Context, _ ...jetstream.WatchOpt) (jetstream.KeyLister, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.data) == 0 {
		return nil, jetstream.ErrNoKeysFound
	}
	ch := make(chan string, len(f.data))
	for k := range f.data {
		ch <- k
	}
	close(ch)
	return fakeLister{ch: ch}, nil
}

func (f *fakeKV) Status(_ context.Context) (jetstream.KeyValueStatus, error) {
	return nil, f.err
}

func TestNATSCache_GetSetDelete(t *testing.T) {
	kv := newFakeKV()
	c := NewNATSCacheFromKV(kv)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "cache:GET:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "cache:GET:abc", []byte("v"), time.Minute))
	assert.Contains(t, kv.data, "cache.GET.abc", "colons map to the KV alphabet")

	got, ok, err := c.Get(ctx, "cache:GET:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "cache:GET:abc"))
	_, ok, _ = c.Get(ctx, "cache:GET:abc")
	assert.False(t, ok)
}

func TestNATSCache_ExpiryEnforcedOnRead(t *testing.T) {
	kv := newFakeKV()
	c := NewNATSCacheFromKV(kv)
	clock := newFakeClock()
	c.now = clock.Now
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))

	var rec Record
	require.NoError(t, json.Unmarshal(kv.data["k"], &rec))
	assert.Equal(t, "k", rec.Key)
	assert.Equal(t, int64(1), rec.TTL)

	clock.Advance(time.Second)
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotContains(t, kv.data, "k", "expired record removed on read")
}

func TestNATSCache_Clear(t *testing.T) {
	kv := newFakeKV()
	c := NewNATSCacheFromKV(kv)
	ctx := context.Background()

	assert.NoError(t, c.Clear(ctx), "empty bucket")

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, c.Clear(ctx))
	assert.Empty(t, kv.data)
}

func TestNATSCache_ClearMatching(t *testing.T) {
	kv := newFakeKV()
	c := NewNATSCacheFromKV(kv)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "cache:GET:a1", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "cache:GET:b2", []byte("2"), time.Minute))
	require.NoError(t, c.Set(ctx, "cache:HEAD:a1", []byte("3"), time.Minute))

	require.NoError(t, c.ClearMatching(ctx, "cache:GET:*"))
	assert.Len(t, kv.data, 1)
	assert.Contains(t, kv.data, "cache.HEAD.a1")

	assert.ErrorIs(t, c.ClearMatching(ctx, "cache:[GET"), ErrBadPattern)
}

func TestNATSCache_Errors(t *testing.T) {
	kv := newFakeKV()
	kv.err = errors.New("no responders")
	c := NewNATSCacheFromKV(kv)
	ctx := context.Background()

	_, _, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, kv.err)
	assert.ErrorIs(t, c.Set(ctx, "k", []byte("v"), time.Minute), kv.err)
	assert.ErrorIs(t, c.Ping(ctx), kv.err)
	assert.NoError(t, c.Close(), "no owned connection")
}

func TestNATSKey(t *testing.T) {
	assert.Equal(t, "cache.GET.0123abcd", natsKey("cache:GET:0123abcd"))
	assert.Equal(t, "a_b-c", natsKey("a b-c"))
}
