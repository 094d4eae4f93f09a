package client

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonwraymond/reqops/auth"
	"github.com/jonwraymond/reqops/cache"
)

// Settings is one configuration layer. Zero values fall through to the layer
// below; Headers merge key by key.
type Settings struct {
	BaseURL  string
	Endpoint string
	Method   string
	Headers  map[string]string

	// Timeout bounds each attempt.
	Timeout time.Duration

	// MaxRetries is a pointer so an explicit 0 overrides a lower layer.
	MaxRetries *int

	// MaxWorkers bounds concurrent batch items.
	MaxWorkers int

	// BackoffBase and BackoffMax shape the retry delay.
	BackoffBase time.Duration
	BackoffMax  time.Duration

	Authenticator auth.Authenticator

	// Cache is the cache backend. Nil disables caching.
	Cache cache.Backend

	// CacheTTL is the default time to live of stored entries.
	CacheTTL time.Duration

	// CacheKeyHeaders names the request headers that take part in the cache key.
	CacheKeyHeaders []string

	Parser    Parser
	Formatter Formatter
}

// Effective is the fully merged configuration of one call.
type Effective struct {
	BaseURL         string             `validate:"required,http_url"`
	Endpoint        string             `validate:"required"`
	Method          string             `validate:"required,oneof=GET HEAD POST PUT PATCH DELETE OPTIONS"`
	Headers         map[string]string  `validate:"-"`
	Timeout         time.Duration      `validate:"gt=0"`
	MaxRetries      int                `validate:"gte=0"`
	MaxWorkers      int                `validate:"gte=1"`
	BackoffBase     time.Duration      `validate:"gt=0"`
	BackoffMax      time.Duration      `validate:"gtefield=BackoffBase"`
	Authenticator   auth.Authenticator `validate:"-"`
	Cache           cache.Backend      `validate:"-"`
	CacheTTL        time.Duration      `validate:"gte=0"`
	CacheKeyHeaders []string           `validate:"-"`
	Parser          Parser             `validate:"required"`
	Formatter       Formatter          `validate:"required"`
}

// URL joins BaseURL and Endpoint with exactly one slash.
func (e *Effective) URL() string {
	return strings.TrimRight(e.BaseURL, "/") + "/" + strings.TrimLeft(e.Endpoint, "/")
}

// DefaultSettings returns the library defaults that sit beneath the class
// layer.
func DefaultSettings() Settings {
	return Settings{
		Method:      "GET",
		Timeout:     30 * time.Second,
		MaxRetries:  Retries(3),
		MaxWorkers:  10,
		BackoffBase: 100 * time.Millisecond,
		BackoffMax:  10 * time.Second,
		CacheTTL:    5 * time.Minute,
		Parser:      JSONParser{},
		Formatter:   DefaultFormatter{},
	}
}

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New()

// Resolve merges DefaultSettings, class, instance and call, later layers
// winning, and validates the result. It has no side effects.
func Resolve(class, instance, call Settings) (*Effective, error) {
	eff := merge(class, instance, call)
	if err := validate.Struct(eff); err != nil {
		return nil, describeValidation(err)
	}
	return eff, nil
}

// checkLayers validates the client level layers. Endpoint is supplied per
// call, and so is BaseURL when neither layer sets it.
func checkLayers(class, instance Settings) error {
	eff := merge(class, instance)
	except := []string{"Endpoint"}
	if eff.BaseURL == "" {
		except = append(except, "BaseURL")
	}
	if err := validate.StructExcept(eff, except...); err != nil {
		return describeValidation(err)
	}
	return nil
}

func merge(layers ...Settings) *Effective {
	merged := DefaultSettings()
	for _, layer := range layers {
		merged = overlay(merged, layer)
	}

	eff := &Effective{
		BaseURL:         strings.TrimSpace(merged.BaseURL),
		Endpoint:        strings.TrimSpace(merged.Endpoint),
		Method:          strings.ToUpper(strings.TrimSpace(merged.Method)),
		Headers:         merged.Headers,
		Timeout:         merged.Timeout,
		MaxWorkers:      merged.MaxWorkers,
		BackoffBase:     merged.BackoffBase,
		BackoffMax:      merged.BackoffMax,
		Authenticator:   merged.Authenticator,
		Cache:           merged.Cache,
		CacheTTL:        merged.CacheTTL,
		CacheKeyHeaders: slices.Clone(merged.CacheKeyHeaders),
		Parser:          merged.Parser,
		Formatter:       merged.Formatter,
	}
	if merged.MaxRetries != nil {
		eff.MaxRetries = *merged.MaxRetries
	}
	return eff
}

func overlay(base, layer Settings) Settings {
	if layer.BaseURL != "" {
		base.BaseURL = layer.BaseURL
	}
	if layer.Endpoint != "" {
		base.Endpoint = layer.Endpoint
	}
	if layer.Method != "" {
		base.Method = layer.Method
	}
	if len(layer.Headers) > 0 {
		base.Headers = mergeHeaders(base.Headers, layer.Headers)
	}
	if layer.Timeout != 0 {
		base.Timeout = layer.Timeout
	}
	if layer.MaxRetries != nil {
		base.MaxRetries = layer.MaxRetries
	}
	if layer.MaxWorkers != 0 {
		base.MaxWorkers = layer.MaxWorkers
	}
	if layer.BackoffBase != 0 {
		base.BackoffBase = layer.BackoffBase
	}
	if layer.BackoffMax != 0 {
		base.BackoffMax = layer.BackoffMax
	}
	if layer.Authenticator != nil {
		base.Authenticator = layer.Authenticator
	}
	if layer.Cache != nil {
		base.Cache = layer.Cache
	}
	if layer.CacheTTL != 0 {
		base.CacheTTL = layer.CacheTTL
	}
	if layer.CacheKeyHeaders != nil {
		base.CacheKeyHeaders = layer.CacheKeyHeaders
	}
	if layer.Parser != nil {
		base.Parser = layer.Parser
	}
	if layer.Formatter != nil {
		base.Formatter = layer.Formatter
	}
	return base
}

func describeValidation(err error) *Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Kind: KindValidation, Message: "invalid configuration", Err: err}
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
		}
	}
	return &Error{Kind: KindValidation, Message: "invalid configuration: " + strings.Join(parts, "; ")}
}
