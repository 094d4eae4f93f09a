package auth

import (
	"context"
	"fmt"
	"net/http"
)

// APIKeyConfig configures the API key authenticator.
type APIKeyConfig struct {
	// Key is the API key value.
	Key string

	// HeaderName is the header carrying the key.
	// Default: "X-API-Key" (ignored when QueryParam is set)
	HeaderName string

	// QueryParam sends the key as a query parameter instead of a header.
	QueryParam string

	// Prefix is prepended to the key in the header value (e.g., "Token ").
	Prefix string
}

// APIKey places a static key in a header or query parameter.
type APIKey struct {
	config APIKeyConfig
}

// NewAPIKey creates an API key authenticator.
func NewAPIKey(config APIKeyConfig) (*APIKey, error) {
	if config.Key == "" {
		return nil, fmt.Errorf("%w: api key is empty", ErrMissingCredentials)
	}
	if config.HeaderName == "" && config.QueryParam == "" {
		config.HeaderName = "X-API-Key"
	}
	return &APIKey{config: config}, nil
}

// Name returns "api_key".
func (a *APIKey) Name() string { return "api_key" }

// Apply sets the key on the request.
func (a *APIKey) Apply(_ context.Context, req *http.Request) error {
	if req == nil {
		return ErrNilRequest
	}
	if a.config.QueryParam != "" {
		q := req.URL.Query()
		q.Set(a.config.QueryParam, a.config.Key)
		req.URL.RawQuery = q.Encode()
		return nil
	}
	req.Header.Set(a.config.HeaderName, a.config.Prefix+a.config.Key)
	return nil
}

var _ Authenticator = (*APIKey)(nil)
