package auth

import "net/http"

// Transport is an http.RoundTripper that applies an Authenticator to every
// request before delegating to Base.
//
// Usage:
//
//	client := &http.Client{Transport: auth.NewTransport(nil, signer)}
type Transport struct {
	Base http.RoundTripper
	Auth Authenticator
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, a Authenticator) *Transport {
	return &Transport{Base: base, Auth: a}
}

// RoundTrip clones the request, applies credentials and sends it.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Auth == nil {
		return base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	clone := req.Clone(req.Context())
	if err := t.Auth.Apply(req.Context(), clone); err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	return base.RoundTrip(clone)
}
