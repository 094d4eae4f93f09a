package cache_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/reqops/cache"
)

func ExampleNewLRU() {
	c := cache.NewLRU(2)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("alpha"), time.Minute)
	_ = c.Set(ctx, "b", []byte("beta"), time.Minute)
	_, _, _ = c.Get(ctx, "a") // a is now most recently used
	_ = c.Set(ctx, "c", []byte("gamma"), time.Minute)

	_, okA, _ := c.Get(ctx, "a")
	_, okB, _ := c.Get(ctx, "b")
	fmt.Println("a cached:", okA)
	fmt.Println("b cached:", okB)
	// Output:
	// a cached: true
	// b cached: false
}

func ExampleDefaultKeyer_Key() {
	k := cache.NewDefaultKeyer()

	k1, _ := k.Key("GET", cache.Request{
		URL:    "https://api.example.com/users",
		Params: map[string]any{"page": 1, "sort": "name"},
	})
	k2, _ := k.Key("get", cache.Request{
		URL:     "https://api.example.com/users/",
		Params:  map[string]any{"sort": "name", "page": 1},
		Headers: map[string]string{"X-Request-Id": "abc"},
	})
	fmt.Println("Same key:", k1 == k2)
	// Output:
	// Same key: true
}

func ExamplePolicy_EffectiveTTL() {
	p := cache.DefaultPolicy()
	fmt.Println(p.EffectiveTTL(0))
	fmt.Println(p.EffectiveTTL(30 * time.Second))
	fmt.Println(p.EffectiveTTL(24 * time.Hour))
	// Output:
	// 5m0s
	// 30s
	// 1h0m0s
}

func ExampleMiddleware_Key() {
	m := cache.NewMiddleware(cache.NewLRU(16), nil, cache.DefaultPolicy(), nil)
	req := cache.Request{URL: "https://api.example.com/users"}

	_, getOK := m.Key("GET", req)
	_, postOK := m.Key("POST", req)
	fmt.Println("GET cacheable:", getOK)
	fmt.Println("POST cacheable:", postOK)
	// Output:
	// GET cacheable: true
	// POST cacheable: false
}
