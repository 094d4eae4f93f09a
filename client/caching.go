package client

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/reqops/cache"
	"github.com/jonwraymond/reqops/observe"
)

// hooks are the insertion points the pipeline offers around Execute.
type hooks interface {
	// BeforeExecute may answer the call without executing it.
	BeforeExecute(ctx context.Context, cl *call) (*result, bool)
	// Around wraps the execution of a call that was not answered.
	Around(ctx context.Context, cl *call, exec func(context.Context) (*result, *Error)) (*result, *Error)
	// AfterExecute sees every successful execution.
	AfterExecute(ctx context.Context, cl *call, res *result)
}

// cacheEntry is the stored form of a successful call. Data is the parser's
// CacheCodec encoding of the parsed value.
type cacheEntry struct {
	Status int    `json:"status"`
	Data   []byte `json:"data"`
}

// cachedCall is the cache state of one call. It is nil when the call does
// not take part in caching.
type cachedCall struct {
	mw    *cache.Middleware
	key   string
	codec CacheCodec
}

// caching fills the hooks with cache lookup, store and optional
// de-duplication of concurrent identical misses.
type caching struct {
	enabled atomic.Bool
	user    string
	dedup   bool
	group   singleflight.Group
	metrics observe.Metrics
}

func newCaching(user string, dedup bool, metrics observe.Metrics) *caching {
	k := &caching{user: user, dedup: dedup, metrics: metrics}
	k.enabled.Store(true)
	return k
}

// middleware builds the per call cache middleware from the effective
// configuration. A zero CacheTTL disables storing.
func middleware(eff *Effective) *cache.Middleware {
	policy := cache.DefaultPolicy()
	policy.DefaultTTL = eff.CacheTTL
	policy.MaxTTL = 0
	return cache.NewMiddleware(eff.Cache, cache.NewDefaultKeyer(eff.CacheKeyHeaders...), policy, nil)
}

func (k *caching) request(eff *Effective, d Descriptor) cache.Request {
	return cache.Request{
		URL:     eff.URL(),
		Params:  d.Params,
		Body:    d.Body,
		Headers: eff.Headers,
		User:    k.user,
	}
}

// prepare decides whether cl takes part in caching and computes its key.
func (k *caching) prepare(cl *call) {
	if cl.mode == cache.ModeBypass || cl.desc.NoCache || !k.enabled.Load() || cl.eff.Cache == nil {
		return
	}
	codec, ok := cl.eff.Parser.(CacheCodec)
	if !ok || isStreaming(cl.eff.Parser) {
		return
	}
	mw := middleware(cl.eff)
	key, ok := mw.Key(cl.eff.Method, k.request(cl.eff, cl.desc))
	if !ok {
		return
	}
	cl.cache = &cachedCall{mw: mw, key: key, codec: codec}
}

func (k *caching) BeforeExecute(ctx context.Context, cl *call) (*result, bool) {
	k.prepare(cl)
	if cl.cache == nil || cl.mode != cache.ModeDefault {
		return nil, false
	}

	raw, hit, err := cl.cache.mw.Lookup(ctx, cl.cache.key, cl.mode)
	if err != nil {
		cl.log.Warn(ctx, "cache lookup failed", observe.F("error", cacheError("lookup", err)))
		k.metrics.RecordCache(ctx, cl.meta, false)
		return nil, false
	}
	if !hit {
		cl.log.Debug(ctx, "cache miss", observe.F("cache_key", cl.cache.key))
		k.metrics.RecordCache(ctx, cl.meta, false)
		return nil, false
	}

	res, err := cl.cache.decode(raw)
	if err != nil {
		cl.log.Warn(ctx, "cache entry unreadable", observe.F("error", cacheError("decode", err)))
		k.metrics.RecordCache(ctx, cl.meta, false)
		return nil, false
	}
	cl.log.Debug(ctx, "cache hit", observe.F("cache_key", cl.cache.key))
	k.metrics.RecordCache(ctx, cl.meta, true)
	return res, true
}

// Around coalesces concurrent misses of the same key when de-duplication is
// on. The shared execution ignores the cancellation of whichever caller
// started it, keeping its attempt timeouts; each caller waits on its own
// context. Followers receive their own decoded copy of the leader's data and
// share its failure.
func (k *caching) Around(ctx context.Context, cl *call, exec func(context.Context) (*result, *Error)) (*result, *Error) {
	if !k.dedup || cl.cache == nil || cl.mode != cache.ModeDefault {
		return exec(ctx)
	}

	leader := false
	shared := context.WithoutCancel(ctx)
	ch := k.group.DoChan(cl.cache.key, func() (any, error) {
		leader = true
		res, cerr := exec(shared)
		if cerr != nil {
			return nil, cerr
		}
		return res, nil
	})

	var r singleflight.Result
	select {
	case <-ctx.Done():
		return nil, classify(ctx, ctx.Err())
	case r = <-ch:
	}
	if r.Err != nil {
		return nil, classify(ctx, r.Err)
	}
	res := r.Val.(*result)
	if leader {
		return res, nil
	}

	cl.log.Debug(ctx, "joined in-flight request", observe.F("cache_key", cl.cache.key))
	data, derr := cl.cache.copyData(res.data)
	if derr != nil {
		return res, nil
	}
	return &result{status: res.status, data: data}, nil
}

func (k *caching) AfterExecute(ctx context.Context, cl *call, res *result) {
	if cl.cache == nil {
		return
	}
	raw, err := cl.cache.encode(res)
	if err != nil {
		cl.log.Warn(ctx, "cache entry not encodable", observe.F("error", cacheError("encode", err)))
		return
	}
	if err := cl.cache.mw.Store(ctx, cl.cache.key, raw, 0, cl.mode); err != nil {
		cl.log.Warn(ctx, "cache store failed", observe.F("error", cacheError("store", err)))
	}
}

func (c *cachedCall) encode(res *result) ([]byte, error) {
	data, err := c.codec.Encode(res.data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cacheEntry{Status: res.status, Data: data})
}

func (c *cachedCall) decode(raw []byte) (*result, error) {
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	data, err := c.codec.Decode(entry.Data)
	if err != nil {
		return nil, err
	}
	return &result{status: entry.Status, data: data, cached: true}, nil
}

func (c *cachedCall) copyData(v any) (any, error) {
	data, err := c.codec.Encode(v)
	if err != nil {
		return nil, err
	}
	return c.codec.Decode(data)
}

func cacheError(op string, err error) *Error {
	return &Error{Kind: KindCache, Message: "cache " + op + " failed", Err: err}
}

// invalidate drops the entry d would be stored under.
func (k *caching) invalidate(ctx context.Context, eff *Effective, d Descriptor) error {
	if eff.Cache == nil {
		return nil
	}
	mw := middleware(eff)
	key, ok := mw.Key(eff.Method, k.request(eff, d))
	if !ok {
		return nil
	}
	if err := mw.Invalidate(ctx, key); err != nil {
		return cacheError("invalidate", err)
	}
	return nil
}

var _ hooks = (*caching)(nil)
