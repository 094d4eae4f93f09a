package auth

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// AuthenticatorFactory creates an authenticator from configuration.
type AuthenticatorFactory func(cfg map[string]any) (Authenticator, error)

// Registry manages authenticator factories.
type Registry struct {
	mu             sync.RWMutex
	authenticators map[string]AuthenticatorFactory
}

// NewRegistry creates a new auth registry.
func NewRegistry() *Registry {
	return &Registry{
		authenticators: make(map[string]AuthenticatorFactory),
	}
}

// RegisterAuthenticator adds an authenticator factory.
func (r *Registry) RegisterAuthenticator(name string, factory AuthenticatorFactory) error {
	if name == "" || factory == nil {
		return errors.New("invalid authenticator registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.authenticators[name]; exists {
		return fmt.Errorf("authenticator %q already registered", name)
	}

	r.authenticators[name] = factory
	return nil
}

// CreateAuthenticator instantiates an authenticator by name.
func (r *Registry) CreateAuthenticator(name string, cfg map[string]any) (Authenticator, error) {
	r.mu.RLock()
	factory, ok := r.authenticators[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAuthenticator, name)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}

	return factory(cfg)
}

// ListAuthenticators returns registered authenticator names.
func (r *Registry) ListAuthenticators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.authenticators))
	for name := range r.authenticators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global auth registry with built-in factories.
var DefaultRegistry = NewRegistry()

func init() {
	_ = DefaultRegistry.RegisterAuthenticator("bearer", func(cfg map[string]any) (Authenticator, error) {
		token, _ := cfg["token"].(string)
		return NewBearer(token)
	})

	_ = DefaultRegistry.RegisterAuthenticator("basic", func(cfg map[string]any) (Authenticator, error) {
		username, _ := cfg["username"].(string)
		password, _ := cfg["password"].(string)
		return NewBasic(username, password)
	})

	_ = DefaultRegistry.RegisterAuthenticator("api_key", func(cfg map[string]any) (Authenticator, error) {
		config := APIKeyConfig{}

		if key, ok := cfg["key"].(string); ok {
			config.Key = key
		}
		if headerName, ok := cfg["header_name"].(string); ok {
			config.HeaderName = headerName
		}
		if queryParam, ok := cfg["query_param"].(string); ok {
			config.QueryParam = queryParam
		}
		if prefix, ok := cfg["prefix"].(string); ok {
			config.Prefix = prefix
		}

		return NewAPIKey(config)
	})

	_ = DefaultRegistry.RegisterAuthenticator("jwt", func(cfg map[string]any) (Authenticator, error) {
		config := JWTConfig{}

		if issuer, ok := cfg["issuer"].(string); ok {
			config.Issuer = issuer
		}
		if subject, ok := cfg["subject"].(string); ok {
			config.Subject = subject
		}
		if audience, ok := cfg["audience"].(string); ok {
			config.Audience = audience
		}
		if algorithm, ok := cfg["algorithm"].(string); ok {
			config.Algorithm = algorithm
		}
		if secret, ok := cfg["secret"].(string); ok {
			config.Secret = []byte(secret)
		}
		if pem, ok := cfg["private_key"].(string); ok {
			config.PrivateKeyPEM = []byte(pem)
		}
		if keyID, ok := cfg["key_id"].(string); ok {
			config.KeyID = keyID
		}
		if headerName, ok := cfg["header_name"].(string); ok {
			config.HeaderName = headerName
		}
		if tokenPrefix, ok := cfg["token_prefix"].(string); ok {
			config.TokenPrefix = tokenPrefix
		}
		if claims, ok := cfg["claims"].(map[string]any); ok {
			config.Claims = claims
		}
		d, err := durationValue(cfg, "ttl")
		if err != nil {
			return nil, err
		}
		config.TTL = d
		d, err = durationValue(cfg, "refresh_before")
		if err != nil {
			return nil, err
		}
		config.RefreshBefore = d

		return NewJWTSigner(config)
	})

	_ = DefaultRegistry.RegisterAuthenticator("oauth2_client_credentials", func(cfg map[string]any) (Authenticator, error) {
		config := ClientCredentialsConfig{}

		if tokenURL, ok := cfg["token_url"].(string); ok {
			config.TokenURL = tokenURL
		}
		if clientID, ok := cfg["client_id"].(string); ok {
			config.ClientID = clientID
		}
		if clientSecret, ok := cfg["client_secret"].(string); ok {
			config.ClientSecret = clientSecret
		}
		if audience, ok := cfg["audience"].(string); ok {
			config.Audience = audience
		}
		if authStyle, ok := cfg["auth_style"].(string); ok {
			config.AuthStyle = authStyle
		}
		config.Scopes = stringSlice(cfg["scopes"])

		return NewClientCredentials(config)
	})

	_ = DefaultRegistry.RegisterAuthenticator("chain", func(cfg map[string]any) (Authenticator, error) {
		return DefaultRegistry.chain(cfg["authenticators"])
	})
}

// chain builds a Chain from a list of {type, config} entries.
func (r *Registry) chain(v any) (Authenticator, error) {
	entries, ok := v.([]any)
	if !ok || len(entries) == 0 {
		return nil, fmt.Errorf("%w: chain needs a list of authenticators", ErrInvalidConfig)
	}
	auths := make([]Authenticator, 0, len(entries))
	for i, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: chain entry %d is %T", ErrInvalidConfig, i, e)
		}
		name, _ := entry["type"].(string)
		cfg, _ := entry["config"].(map[string]any)
		a, err := r.CreateAuthenticator(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("chain entry %d: %w", i, err)
		}
		auths = append(auths, a)
	}
	return NewChain(auths...), nil
}

// durationValue accepts a duration string ("30s") or whole seconds.
func durationValue(cfg map[string]any, key string) (time.Duration, error) {
	switch v := cfg[key].(type) {
	case nil:
		return 0, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		return d, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case time.Duration:
		return v, nil
	default:
		return 0, fmt.Errorf("%w: %s has type %T", ErrInvalidConfig, key, v)
	}
}

func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, s := range vals {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		if vals == "" {
			return nil
		}
		return []string{vals}
	}
	return nil
}
