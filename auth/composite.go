package auth

import (
	"context"
	"fmt"
	"net/http"
)

// Chain applies several authenticators to the same request in order.
// It stops at the first error.
type Chain struct {
	// Authenticators is the ordered list to apply.
	Authenticators []Authenticator
}

// NewChain creates a chain, dropping nil entries.
func NewChain(auths ...Authenticator) *Chain {
	c := &Chain{}
	for _, a := range auths {
		if a != nil {
			c.Authenticators = append(c.Authenticators, a)
		}
	}
	return c
}

// Name returns "chain".
func (c *Chain) Name() string { return "chain" }

// Apply runs each authenticator in sequence.
func (c *Chain) Apply(ctx context.Context, req *http.Request) error {
	if req == nil {
		return ErrNilRequest
	}
	for _, a := range c.Authenticators {
		if err := a.Apply(ctx, req); err != nil {
			return fmt.Errorf("%s: %w", a.Name(), err)
		}
	}
	return nil
}

var _ Authenticator = (*Chain)(nil)
