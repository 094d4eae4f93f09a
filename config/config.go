// Package config loads client configuration files.
//
// Files may be YAML, JSON or TOML. Every key can be overridden from the
// environment with the REQOPS_ prefix, dots becoming underscores:
//
//	REQOPS_CLIENT_BASE_URL=https://api.example.com
//	REQOPS_CACHE_TYPE=redis
//
// String values may reference secrets as ${ENV_VAR} or secretref:<provider>:<ref>;
// they are resolved when a client is built from the file, not at load time.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jonwraymond/reqops/cache"
	"github.com/jonwraymond/reqops/observe"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "REQOPS"

var (
	// ErrRead indicates the configuration file could not be read.
	ErrRead = errors.New("config: read failed")

	// ErrDecode indicates the configuration could not be decoded.
	ErrDecode = errors.New("config: decode failed")

	// ErrInvalid indicates the configuration failed validation.
	ErrInvalid = errors.New("config: invalid configuration")
)

// File is the root of a configuration file.
type File struct {
	Client     ClientConfig     `mapstructure:"client" yaml:"client"`
	Cache      cache.Config     `mapstructure:"cache" yaml:"cache"`
	Auth       AuthConfig       `mapstructure:"auth" yaml:"auth"`
	Resilience ResilienceConfig `mapstructure:"resilience" yaml:"resilience"`
	Observe    observe.Config   `mapstructure:"observe" yaml:"observe"`
	Secrets    SecretsConfig    `mapstructure:"secrets" yaml:"secrets"`
}

// ClientConfig is the instance layer of the client. Zero values fall
// through to the library defaults.
type ClientConfig struct {
	BaseURL         string            `mapstructure:"base_url" yaml:"base_url" validate:"required"`
	Method          string            `mapstructure:"method" yaml:"method" validate:"omitempty,oneof=GET HEAD POST PUT PATCH DELETE OPTIONS"`
	Headers         map[string]string `mapstructure:"headers" yaml:"headers"`
	Timeout         time.Duration     `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	MaxRetries      *int              `mapstructure:"max_retries" yaml:"max_retries" validate:"omitempty,gte=0"`
	MaxWorkers      int               `mapstructure:"max_workers" yaml:"max_workers" validate:"gte=0"`
	BackoffBase     time.Duration     `mapstructure:"backoff_base" yaml:"backoff_base" validate:"gte=0"`
	BackoffMax      time.Duration     `mapstructure:"backoff_max" yaml:"backoff_max" validate:"gte=0"`
	CacheTTL        time.Duration     `mapstructure:"cache_ttl" yaml:"cache_ttl" validate:"gte=0"`
	CacheKeyHeaders []string          `mapstructure:"cache_key_headers" yaml:"cache_key_headers"`
	Parser          string            `mapstructure:"parser" yaml:"parser" validate:"omitempty,oneof=json bytes content raw file"`
	DownloadDir     string            `mapstructure:"download_dir" yaml:"download_dir"`
	UserAgent       string            `mapstructure:"user_agent" yaml:"user_agent"`
	User            string            `mapstructure:"user" yaml:"user"`
	Deduplicate     bool              `mapstructure:"deduplicate" yaml:"deduplicate"`
}

// AuthConfig selects an authenticator from the auth registry.
type AuthConfig struct {
	Type   string         `mapstructure:"type" yaml:"type"`
	Config map[string]any `mapstructure:"config" yaml:"config"`
}

// ResilienceConfig configures the client-wide guards. Zero disables each.
type ResilienceConfig struct {
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	Burst           int           `mapstructure:"burst" yaml:"burst" validate:"gte=0"`
	RateLimitWait   time.Duration `mapstructure:"rate_limit_wait" yaml:"rate_limit_wait" validate:"gte=0"`
	MaxInFlight     int           `mapstructure:"max_in_flight" yaml:"max_in_flight" validate:"gte=0"`
	InFlightWait    time.Duration `mapstructure:"in_flight_wait" yaml:"in_flight_wait" validate:"gte=0"`
	BreakerFailures int           `mapstructure:"breaker_failures" yaml:"breaker_failures" validate:"gte=0"`
	BreakerReset    time.Duration `mapstructure:"breaker_reset" yaml:"breaker_reset" validate:"gte=0"`
}

// SecretsConfig configures the secret providers used during resolution.
type SecretsConfig struct {
	Strict    bool                      `mapstructure:"strict" yaml:"strict"`
	Providers map[string]map[string]any `mapstructure:"providers" yaml:"providers"`
}

var validate = validator.New()

// keys lists every scalar key so that environment overrides apply even when
// the file omits them.
var keys = map[string]any{
	"client.base_url":             "",
	"client.method":               "",
	"client.timeout":              "0s",
	"client.max_workers":          0,
	"client.backoff_base":         "0s",
	"client.backoff_max":          "0s",
	"client.cache_ttl":            "0s",
	"client.parser":               "",
	"client.download_dir":         "",
	"client.user_agent":           "",
	"client.user":                 "",
	"client.deduplicate":          false,
	"cache.type":                  "",
	"cache.capacity":              0,
	"cache.redis.addr":            "",
	"cache.redis.password":        "",
	"cache.redis.db":              0,
	"cache.redis.prefix":          "",
	"cache.nats.url":              "",
	"cache.nats.bucket":           "",
	"auth.type":                   "",
	"resilience.rate_limit":       0.0,
	"resilience.burst":            0,
	"resilience.max_in_flight":    0,
	"resilience.breaker_failures": 0,
	"resilience.breaker_reset":    "0s",
	"resilience.in_flight_wait":   "0s",
	"resilience.rate_limit_wait":  "0s",
	"observe.service_name":        "",
	"observe.logging.enabled":     false,
	"observe.logging.level":       "",
	"observe.tracing.enabled":     false,
	"observe.tracing.exporter":    "",
	"observe.metrics.enabled":     false,
	"observe.metrics.exporter":    "",
	"observe.tracing.sample_pct":  0.0,
	"secrets.strict":              false,
}

// Load reads path and applies environment overrides. An empty path loads
// from the environment alone.
func Load(path string) (*File, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, def := range keys {
		v.SetDefault(k, def)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
		}
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	f.normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) normalize() {
	f.Client.Method = strings.ToUpper(strings.TrimSpace(f.Client.Method))
	f.Client.Parser = strings.ToLower(strings.TrimSpace(f.Client.Parser))
	f.Cache.Type = cache.Type(strings.ToLower(strings.TrimSpace(string(f.Cache.Type))))
	f.Auth.Type = strings.TrimSpace(f.Auth.Type)
}

// Validate checks the file. Observability settings are checked only when a
// service name is given.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch f.Cache.Type {
	case "", cache.TypeNone, cache.TypeMemory, cache.TypeRedis, cache.TypeNATS:
	default:
		return fmt.Errorf("%w: unknown cache type %q", ErrInvalid, f.Cache.Type)
	}
	if f.Cache.Type == cache.TypeRedis && f.Cache.Redis.Addr == "" {
		return fmt.Errorf("%w: cache.redis.addr is required", ErrInvalid)
	}
	if f.Client.BackoffMax > 0 && f.Client.BackoffBase > f.Client.BackoffMax {
		return fmt.Errorf("%w: client.backoff_base exceeds client.backoff_max", ErrInvalid)
	}
	if f.Observe.ServiceName != "" {
		if err := f.Observe.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	return nil
}
