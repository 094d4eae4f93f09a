package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentialsConfig configures the OAuth2 client credentials grant.
type ClientCredentialsConfig struct {
	// TokenURL is the authorization server token endpoint.
	TokenURL string

	// ClientID is the OAuth2 client identifier.
	ClientID string

	// ClientSecret is the OAuth2 client secret.
	ClientSecret string

	// Scopes are the requested scopes.
	Scopes []string

	// Audience is sent as the audience parameter when non-empty.
	Audience string

	// AuthStyle selects how client credentials reach the token endpoint.
	// Options: "header", "params", "" (auto-detect)
	AuthStyle string

	// HTTPClient is used for token requests.
	// Default: a client with a 10s timeout
	HTTPClient *http.Client
}

// ClientCredentials fetches and caches OAuth2 access tokens. Tokens are reused
// until the oauth2 package considers them expired.
type ClientCredentials struct {
	source oauth2.TokenSource
}

// NewClientCredentials creates an OAuth2 client credentials authenticator.
func NewClientCredentials(config ClientCredentialsConfig) (*ClientCredentials, error) {
	if config.TokenURL == "" {
		return nil, fmt.Errorf("%w: token_url is required", ErrInvalidConfig)
	}
	if config.ClientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", ErrMissingCredentials)
	}

	cc := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     config.TokenURL,
		Scopes:       config.Scopes,
	}
	if config.Audience != "" {
		cc.EndpointParams = url.Values{"audience": {config.Audience}}
	}
	switch config.AuthStyle {
	case "header":
		cc.AuthStyle = oauth2.AuthStyleInHeader
	case "params":
		cc.AuthStyle = oauth2.AuthStyleInParams
	case "":
		cc.AuthStyle = oauth2.AuthStyleAutoDetect
	default:
		return nil, fmt.Errorf("%w: unknown auth style %q", ErrInvalidConfig, config.AuthStyle)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	return &ClientCredentials{source: cc.TokenSource(ctx)}, nil
}

// Name returns "oauth2_client_credentials".
func (c *ClientCredentials) Name() string { return "oauth2_client_credentials" }

// Apply sets the access token on the request.
func (c *ClientCredentials) Apply(_ context.Context, req *http.Request) error {
	if req == nil {
		return ErrNilRequest
	}
	tok, err := c.source.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenFetch, err)
	}
	tok.SetAuthHeader(req)
	return nil
}

var _ Authenticator = (*ClientCredentials)(nil)
