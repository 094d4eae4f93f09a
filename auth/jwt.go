package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWT signer.
type JWTConfig struct {
	// Issuer is the iss claim.
	Issuer string

	// Subject is the sub claim.
	Subject string

	// Audience is the aud claim.
	Audience string

	// Algorithm is the signing method. Options: "HS256" (default), "HS384",
	// "HS512", "RS256", "RS384", "RS512".
	Algorithm string

	// Secret is the HMAC key for HS* algorithms.
	Secret []byte

	// PrivateKeyPEM is the PEM-encoded RSA key for RS* algorithms.
	PrivateKeyPEM []byte

	// KeyID is set as the kid header when non-empty.
	KeyID string

	// TTL is the token lifetime.
	// Default: 5m
	TTL time.Duration

	// RefreshBefore re-signs a cached token this long before it expires.
	// Default: 30s
	RefreshBefore time.Duration

	// Claims are extra claims merged into every token.
	Claims map[string]any

	// HeaderName is the header carrying the token.
	// Default: "Authorization"
	HeaderName string

	// TokenPrefix is the prefix before the token in the header.
	// Default: "Bearer "
	TokenPrefix string
}

// JWTSigner mints short-lived signed tokens and reuses them until they near
// expiry.
type JWTSigner struct {
	config JWTConfig
	method jwt.SigningMethod
	key    any
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewJWTSigner creates a JWT signer.
func NewJWTSigner(config JWTConfig) (*JWTSigner, error) {
	if config.Algorithm == "" {
		config.Algorithm = "HS256"
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	if config.RefreshBefore <= 0 || config.RefreshBefore >= config.TTL {
		config.RefreshBefore = min(30*time.Second, config.TTL/2)
	}
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.TokenPrefix == "" && config.HeaderName == "Authorization" {
		config.TokenPrefix = "Bearer "
	}

	method := jwt.GetSigningMethod(config.Algorithm)
	if method == nil {
		return nil, fmt.Errorf("%w: unsupported jwt algorithm %q", ErrInvalidConfig, config.Algorithm)
	}

	var key any
	switch method.(type) {
	case *jwt.SigningMethodHMAC:
		if len(config.Secret) == 0 {
			return nil, fmt.Errorf("%w: jwt secret is empty", ErrMissingCredentials)
		}
		key = config.Secret
	case *jwt.SigningMethodRSA:
		if len(config.PrivateKeyPEM) == 0 {
			return nil, fmt.Errorf("%w: jwt private key is empty", ErrMissingCredentials)
		}
		rsaKey, err := jwt.ParseRSAPrivateKeyFromPEM(config.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		key = rsaKey
	default:
		return nil, fmt.Errorf("%w: unsupported jwt algorithm %q", ErrInvalidConfig, config.Algorithm)
	}

	return &JWTSigner{
		config: config,
		method: method,
		key:    key,
		now:    time.Now,
	}, nil
}

// Name returns "jwt".
func (s *JWTSigner) Name() string { return "jwt" }

// Apply sets the signed token on the request.
func (s *JWTSigner) Apply(_ context.Context, req *http.Request) error {
	if req == nil {
		return ErrNilRequest
	}
	token, err := s.Token()
	if err != nil {
		return err
	}
	req.Header.Set(s.config.HeaderName, s.config.TokenPrefix+token)
	return nil
}

// Token returns a valid signed token, minting a new one when the cached token
// is within RefreshBefore of expiry.
func (s *JWTSigner) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Before(s.expires.Add(-s.config.RefreshBefore)) {
		return s.token, nil
	}

	expires := now.Add(s.config.TTL)
	claims := jwt.MapClaims{}
	for k, v := range s.config.Claims {
		claims[k] = v
	}
	claims["iat"] = jwt.NewNumericDate(now)
	claims["exp"] = jwt.NewNumericDate(expires)
	if s.config.Issuer != "" {
		claims["iss"] = s.config.Issuer
	}
	if s.config.Subject != "" {
		claims["sub"] = s.config.Subject
	}
	if s.config.Audience != "" {
		claims["aud"] = s.config.Audience
	}

	tok := jwt.NewWithClaims(s.method, claims)
	if s.config.KeyID != "" {
		tok.Header["kid"] = s.config.KeyID
	}
	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	s.token = signed
	s.expires = expires
	return signed, nil
}

var _ Authenticator = (*JWTSigner)(nil)
