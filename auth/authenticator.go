package auth

import (
	"context"
	"net/http"
)

// Authenticator applies credentials to an outgoing request.
type Authenticator interface {
	// Name returns the authenticator identifier (e.g., "bearer", "api_key").
	Name() string

	// Apply sets credentials on req. It must not read or replace the body.
	Apply(ctx context.Context, req *http.Request) error
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc struct {
	name string
	fn   func(ctx context.Context, req *http.Request) error
}

// NewAuthenticatorFunc creates an AuthenticatorFunc.
func NewAuthenticatorFunc(name string, fn func(ctx context.Context, req *http.Request) error) *AuthenticatorFunc {
	return &AuthenticatorFunc{name: name, fn: fn}
}

// Name returns the authenticator name.
func (f *AuthenticatorFunc) Name() string { return f.name }

// Apply calls the wrapped function.
func (f *AuthenticatorFunc) Apply(ctx context.Context, req *http.Request) error {
	if req == nil {
		return ErrNilRequest
	}
	return f.fn(ctx, req)
}

// Bearer sets "Authorization: Bearer <token>".
type Bearer struct {
	token string
}

// NewBearer creates a bearer token authenticator.
func NewBearer(token string) (*Bearer, error) {
	if token == "" {
		return nil, ErrMissingCredentials
	}
	return &Bearer{token: token}, nil
}

// Name returns "bearer".
func (b *Bearer) Name() string { return "bearer" }

// Apply sets the Authorization header.
func (b *Bearer) Apply(_ context.Context, req *http.Request) error {
	if req == nil {
		return ErrNilRequest
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	return nil
}

// Basic sets HTTP basic credentials.
type Basic struct {
	username string
	password string
}

// NewBasic creates a basic auth authenticator. An empty password is allowed.
func NewBasic(username, password string) (*Basic, error) {
	if username == "" {
		return nil, ErrMissingCredentials
	}
	return &Basic{username: username, password: password}, nil
}

// Name returns "basic".
func (b *Basic) Name() string { return "basic" }

// Apply sets the Authorization header.
func (b *Basic) Apply(_ context.Context, req *http.Request) error {
	if req == nil {
		return ErrNilRequest
	}
	req.SetBasicAuth(b.username, b.password)
	return nil
}

// Ensure implementations satisfy Authenticator.
var (
	_ Authenticator = (*AuthenticatorFunc)(nil)
	_ Authenticator = (*Bearer)(nil)
	_ Authenticator = (*Basic)(nil)
)
