// Package client turns declarative request descriptions into uniform
// response envelopes.
//
// A Client resolves three configuration layers (class, instance and call)
// into an Effective configuration for every call, then runs one lifecycle:
//
//	Build → cache lookup → send (retried) → parse → cache store → format
//
// Every call resolves to an *Envelope {result, code, message, data}; transport
// failures, HTTP errors and parse failures never escape as Go errors. Request
// only returns an error when the descriptor cannot be built, which is a
// programming mistake rather than a request failure.
//
// Batches run through an Executor: sequentially, or on a bounded worker pool
// that preserves input order and isolates per-item failures.
//
// Basic usage:
//
//	c, err := client.New(client.Settings{BaseURL: "https://api.example.com"},
//	    client.WithBackend(cache.NewLRU(1024)))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	env, err := c.Request(ctx, client.Descriptor{
//	    Endpoint: "/users",
//	    Params:   map[string]any{"page": 1},
//	})
package client
