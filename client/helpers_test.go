package client

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/reqops/cache"
)

// fakeTransport answers calls without a network and records how it was used.
type fakeTransport struct {
	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	// delay holds every call, or until ctx is done.
	delay time.Duration

	// respond receives the 1-based call number. Nil answers 200 {"ok":true}.
	respond func(n int, call *Call) (int, string, error)
}

func (f *fakeTransport) Send(ctx context.Context, call *Call) (*http.Response, error) {
	n := int(f.calls.Add(1))
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if cur <= m || f.maxInFlight.CompareAndSwap(m, cur) {
			break
		}
	}

	if f.delay > 0 {
		timer := time.NewTimer(f.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	status, body, err := 200, `{"ok":true}`, error(nil)
	if f.respond != nil {
		status, body, err = f.respond(n, call)
	}
	if err != nil {
		return nil, err
	}
	req, _ := http.NewRequestWithContext(ctx, call.Method, call.URL, nil)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func (f *fakeTransport) count() int { return int(f.calls.Load()) }

// countingBackend wraps a backend and counts every touch.
type countingBackend struct {
	cache.Backend
	gets    atomic.Int32
	sets    atomic.Int32
	deletes atomic.Int32
	getErr  error
	setErr  error
}

func newCountingBackend() *countingBackend {
	return &countingBackend{Backend: cache.NewLRU(64)}
}

func (b *countingBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.gets.Add(1)
	if b.getErr != nil {
		return nil, false, b.getErr
	}
	return b.Backend.Get(ctx, key)
}

func (b *countingBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.sets.Add(1)
	if b.setErr != nil {
		return b.setErr
	}
	return b.Backend.Set(ctx, key, value, ttl)
}

func (b *countingBackend) Delete(ctx context.Context, key string) error {
	b.deletes.Add(1)
	return b.Backend.Delete(ctx, key)
}

func (b *countingBackend) Clear(ctx context.Context) error {
	return b.Backend.(cache.Clearer).Clear(ctx)
}

func (b *countingBackend) touches() int {
	return int(b.gets.Load() + b.sets.Load() + b.deletes.Load())
}

const testBaseURL = "https://api.example.com"

// testClass is a class layer with fast backoff.
func testClass() Settings {
	return Settings{
		BaseURL:     testBaseURL,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
	}
}

func newTestClient(t *testing.T, tr Transport, opts ...Option) *Client {
	t.Helper()
	c, err := New(testClass(), append([]Option{WithTransport(tr)}, opts...)...)
	require.NoError(t, err)
	c.jitter = 0
	t.Cleanup(func() { _ = c.Close() })
	return c
}
