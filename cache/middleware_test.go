package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBackend struct{ err error }

func (f failingBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	return f.err
}
func (f failingBackend) Delete(context.Context, string) error { return f.err }

var usersReq = Request{URL: "https://api.example.com/users", Params: map[string]any{"page": 1}}

func TestMiddleware_KeyRules(t *testing.T) {
	m := NewMiddleware(NewLRU(8), nil, DefaultPolicy(), nil)

	_, ok := m.Key("GET", usersReq)
	assert.True(t, ok)
	_, ok = m.Key("HEAD", usersReq)
	assert.True(t, ok)

	for _, method := range []string{"POST", "put", "PATCH", "delete"} {
		_, ok = m.Key(method, usersReq)
		assert.False(t, ok, "%s must not be cacheable", method)
	}

	_, ok = NewMiddleware(NewLRU(8), nil, NoCachePolicy(), nil).Key("GET", usersReq)
	assert.False(t, ok, "disabled policy")

	_, ok = NewMiddleware(nil, nil, DefaultPolicy(), nil).Key("GET", usersReq)
	assert.False(t, ok, "no backend")

	var nilMW *Middleware
	_, ok = nilMW.Key("GET", usersReq)
	assert.False(t, ok)
}

func TestMiddleware_AllowUnsafe(t *testing.T) {
	p := DefaultPolicy()
	p.AllowUnsafe = true
	_, ok := NewMiddleware(NewLRU(8), nil, p, nil).Key("POST", usersReq)
	assert.True(t, ok)
}

func TestMiddleware_CustomSkipRule(t *testing.T) {
	skipAll := func(string) bool { return true }
	_, ok := NewMiddleware(NewLRU(8), nil, DefaultPolicy(), skipAll).Key("GET", usersReq)
	assert.False(t, ok)
}

func TestMiddleware_Modes(t *testing.T) {
	ctx := context.Background()
	m := NewMiddleware(NewLRU(8), nil, DefaultPolicy(), nil)
	key, ok := m.Key("GET", usersReq)
	require.True(t, ok)

	require.NoError(t, m.Store(ctx, key, []byte("v1"), 0, ModeDefault))
	got, hit, err := m.Lookup(ctx, key, ModeDefault)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("v1"), got)

	_, hit, _ = m.Lookup(ctx, key, ModeRefresh)
	assert.False(t, hit, "refresh forces a miss")
	require.NoError(t, m.Store(ctx, key, []byte("v2"), 0, ModeRefresh))
	got, _, _ = m.Lookup(ctx, key, ModeDefault)
	assert.Equal(t, []byte("v2"), got, "refresh overwrites")

	_, hit, _ = m.Lookup(ctx, key, ModeBypass)
	assert.False(t, hit)
	require.NoError(t, m.Store(ctx, key, []byte("v3"), 0, ModeBypass))
	got, _, _ = m.Lookup(ctx, key, ModeDefault)
	assert.Equal(t, []byte("v2"), got, "bypass never writes")
}

func TestMiddleware_StoreTTLOverride(t *testing.T) {
	clock := newFakeClock()
	ctx := context.Background()
	m := NewMiddleware(NewLRU(8, WithClock(clock.Now)), nil, DefaultPolicy(), nil)

	require.NoError(t, m.Store(ctx, "k", []byte("v"), 10*time.Second, ModeDefault))
	clock.Advance(11 * time.Second)
	_, hit, _ := m.Lookup(ctx, "k", ModeDefault)
	assert.False(t, hit)
}

func TestMiddleware_BackendErrorsSurface(t *testing.T) {
	boom := errors.New("down")
	m := NewMiddleware(failingBackend{err: boom}, nil, DefaultPolicy(), nil)
	ctx := context.Background()

	_, _, err := m.Lookup(ctx, "k", ModeDefault)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, m.Store(ctx, "k", nil, 0, ModeDefault), boom)
	assert.ErrorIs(t, m.Invalidate(ctx, "k"), boom)
	assert.ErrorIs(t, m.Clear(ctx), ErrNoClear)
	assert.ErrorIs(t, m.ClearMatching(ctx, "cache:*"), ErrNoClear)
}

func TestDefaultSkipRule(t *testing.T) {
	assert.True(t, DefaultSkipRule("post"))
	assert.True(t, DefaultSkipRule("DELETE"))
	assert.False(t, DefaultSkipRule("GET"))
	assert.False(t, DefaultSkipRule("HEAD"))
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "default", ModeDefault.String())
	assert.Equal(t, "refresh", ModeRefresh.String())
	assert.Equal(t, "bypass", ModeBypass.String())
}
