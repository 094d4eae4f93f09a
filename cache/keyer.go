package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Request is the cache-relevant view of an outgoing request.
type Request struct {
	URL     string
	Params  map[string]any
	Body    any
	Headers map[string]string
	// User scopes the key to one caller when responses are user specific.
	User string
}

// Keyer generates deterministic cache keys from request content.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(method string, req Request) (string, error)
}

// DefaultKeyer generates SHA-256 based cache keys.
//
// Only the headers named in KeyHeaders take part in the key. Everything else,
// request IDs and timestamps included, is ignored.
type DefaultKeyer struct {
	keyHeaders []string
}

// NewDefaultKeyer creates a keyer that includes the named headers.
func NewDefaultKeyer(keyHeaders ...string) *DefaultKeyer {
	hs := make([]string, 0, len(keyHeaders))
	for _, h := range keyHeaders {
		if h = strings.TrimSpace(h); h != "" {
			hs = append(hs, http.CanonicalHeaderKey(h))
		}
	}
	sort.Strings(hs)
	return &DefaultKeyer{keyHeaders: hs}
}

// Key generates a deterministic cache key.
// Format: cache:<METHOD>:<hash>
// where hash is the first 16 characters of SHA-256(canonical JSON(request))
func (k *DefaultKeyer) Key(method string, req Request) (string, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}

	doc := map[string]any{
		"url":    normalizeURL(req.URL),
		"params": normalize(req.Params),
		"body":   normalize(req.Body),
	}
	if headers := k.headerSubset(req.Headers); len(headers) > 0 {
		doc["headers"] = headers
	}
	if req.User != "" {
		doc["user"] = req.User
	}

	canonical, err := canonicalize(doc)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize request: %w", err)
	}

	hash := sha256.Sum256(canonical)
	return fmt.Sprintf("cache:%s:%s", method, hex.EncodeToString(hash[:8])), nil
}

func (k *DefaultKeyer) headerSubset(headers map[string]string) map[string]any {
	if len(k.keyHeaders) == 0 || len(headers) == 0 {
		return nil
	}
	canon := make(map[string]string, len(headers))
	for name, v := range headers {
		canon[http.CanonicalHeaderKey(name)] = v
	}
	out := make(map[string]any, len(k.keyHeaders))
	for _, name := range k.keyHeaders {
		if v, ok := canon[name]; ok {
			out[name] = v
		}
	}
	return out
}

// normalizeURL lower-cases scheme and host and drops a trailing slash so that
// "https://API.example.com/users/" and "https://api.example.com/users" collide.
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	u.Fragment = ""
	return u.String()
}

// normalize round-trips typed values (structs, map[string]string, ...) through
// JSON so that equal content canonicalizes identically regardless of Go type.
func normalize(v any) any {
	switch v.(type) {
	case nil:
		return nil
	case string, bool, float64, json.Number:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return string(data)
	}
	return out
}

// canonicalize produces a deterministic JSON representation of the input.
// Maps are sorted by key to ensure consistent ordering.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}

var _ Keyer = (*DefaultKeyer)(nil)
