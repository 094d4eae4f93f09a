// Package cache provides response caching for outgoing HTTP requests.
//
// It defines the Backend contract with three implementations (an in-process
// LRU, Redis, and NATS JetStream KV), SHA-256 request key derivation, TTL
// policies, and a Middleware that performs the lookup and store halves of a
// cached call with default, refresh and bypass modes.
package cache
