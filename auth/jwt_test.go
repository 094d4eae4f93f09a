package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTSigner_Validation(t *testing.T) {
	_, err := NewJWTSigner(JWTConfig{})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewJWTSigner(JWTConfig{Algorithm: "none", Secret: []byte("s")})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewJWTSigner(JWTConfig{Algorithm: "RS256"})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewJWTSigner(JWTConfig{Algorithm: "RS256", PrivateKeyPEM: []byte("not pem")})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestJWTSigner_HMACClaims(t *testing.T) {
	secret := []byte("shh")
	s, err := NewJWTSigner(JWTConfig{
		Issuer:   "reqops",
		Subject:  "svc-a",
		Audience: "api",
		KeyID:    "k1",
		Secret:   secret,
		Claims:   map[string]any{"scope": "read"},
	})
	require.NoError(t, err)

	req := newReq(t)
	require.NoError(t, s.Apply(context.Background(), req))
	header := req.Header.Get("Authorization")
	require.True(t, strings.HasPrefix(header, "Bearer "))

	parsed, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(tok *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithAudience("api"), jwt.WithIssuer("reqops"))
	require.NoError(t, err)

	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "svc-a", claims["sub"])
	assert.Equal(t, "read", claims["scope"])
	assert.Equal(t, "k1", parsed.Header["kid"])
}

func TestJWTSigner_ReusesUntilRefreshWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s, err := NewJWTSigner(JWTConfig{Secret: []byte("k"), TTL: time.Minute, RefreshBefore: 10 * time.Second})
	require.NoError(t, err)
	s.now = func() time.Time { return now }

	first, err := s.Token()
	require.NoError(t, err)

	now = now.Add(49 * time.Second)
	second, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	now = now.Add(time.Second)
	third, err := s.Token()
	require.NoError(t, err)
	assert.NotEqual(t, first, third, "token inside the refresh window is re-signed")
}

func TestJWTSigner_RSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	s, err := NewJWTSigner(JWTConfig{Algorithm: "RS256", PrivateKeyPEM: pemBytes, HeaderName: "X-Signed"})
	require.NoError(t, err)

	req := newReq(t)
	require.NoError(t, s.Apply(context.Background(), req))
	raw := req.Header.Get("X-Signed")
	assert.Empty(t, req.Header.Get("Authorization"))

	_, err = jwt.Parse(raw, func(*jwt.Token) (any, error) { return &key.PublicKey, nil },
		jwt.WithValidMethods([]string{"RS256"}))
	assert.NoError(t, err, "custom headers carry the raw token")
}
