package auth

import "errors"

// Sentinel errors for credential application.
var (
	// Configuration errors
	ErrMissingCredentials   = errors.New("auth: missing credentials")
	ErrInvalidConfig        = errors.New("auth: invalid configuration")
	ErrUnknownAuthenticator = errors.New("auth: unknown authenticator")

	// Runtime errors
	ErrNilRequest    = errors.New("auth: nil request")
	ErrSigningFailed = errors.New("auth: token signing failed")
	ErrTokenFetch    = errors.New("auth: token fetch failed")
)
