package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/jonwraymond/reqops/auth"
	"github.com/jonwraymond/reqops/observe"
)

// Call is everything a Transport needs to send one attempt.
type Call struct {
	Method  string
	URL     string
	Headers map[string]string
	Params  map[string]any
	Body    any

	// Auth is applied to the outgoing request when non-nil.
	Auth auth.Authenticator

	// Stream is set when the parser keeps the body open after parsing.
	Stream bool
}

// Transport sends one attempt. The attempt deadline is carried by ctx.
// Responses with any status are returned without error; errors mean no
// response was received.
type Transport interface {
	Send(ctx context.Context, call *Call) (*http.Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, call *Call) (*http.Response, error)

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, call *Call) (*http.Response, error) {
	return f(ctx, call)
}

// HTTPTransport sends calls with go-retryablehttp over a pooled
// go-cleanhttp client. Its own retrying is disabled; the client's retry
// policy decides.
type HTTPTransport struct {
	client    *retryablehttp.Client
	userAgent string
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *HTTPTransport) {
		if c != nil {
			t.client.HTTPClient = c
		}
	}
}

// WithTransportLogger routes retryablehttp's request logging to logger.
func WithTransportLogger(logger observe.Logger) TransportOption {
	return func(t *HTTPTransport) {
		if logger != nil {
			t.client.Logger = leveledLogger{log: logger}
		}
	}
}

// WithUserAgent sets the User-Agent header sent when a call does not set one.
func WithUserAgent(ua string) TransportOption {
	return func(t *HTTPTransport) { t.userAgent = ua }
}

// NewHTTPTransport creates a transport.
func NewHTTPTransport(opts ...TransportOption) *HTTPTransport {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = cleanhttp.DefaultPooledClient()
	rc.RetryMax = 0
	rc.Logger = nil
	rc.CheckRetry = func(_ context.Context, _ *http.Response, err error) (bool, error) {
		return false, err
	}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	t := &HTTPTransport{client: rc, userAgent: "reqops"}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send builds and sends the request. A request that cannot be built or
// authenticated fails with a validation *Error, which is never retried.
func (t *HTTPTransport) Send(ctx context.Context, call *Call) (*http.Response, error) {
	body, contentType, err := encodeBody(call.Body)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "invalid request body", Err: err}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, call.Method, call.URL, body)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "invalid request", Err: err}
	}
	if len(call.Params) > 0 {
		q := req.URL.Query()
		addParams(q, call.Params)
		req.URL.RawQuery = q.Encode()
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	for k, v := range call.Headers {
		req.Header.Set(k, v)
	}
	if call.Auth != nil {
		if err := call.Auth.Apply(ctx, req.Request); err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, &Error{
				Kind:    KindValidation,
				Message: fmt.Sprintf("apply %s credentials", call.Auth.Name()),
				Err:     err,
			}
		}
	}

	return t.client.Do(req)
}

// Close releases idle connections.
func (t *HTTPTransport) Close() error {
	t.client.HTTPClient.CloseIdleConnections()
	return nil
}

// encodeBody passes raw bodies through and encodes anything else as JSON.
func encodeBody(body any) (any, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case json.RawMessage:
		return []byte(b), "application/json", nil
	case []byte:
		return b, "", nil
	case string:
		return []byte(b), "", nil
	case io.Reader:
		return b, "", nil
	case url.Values:
		return []byte(b.Encode()), "application/x-www-form-urlencoded", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// prepareBody encodes a structured body once, before any attempt, so that an
// unencodable body is rejected as invalid input instead of being sent.
func prepareBody(body any) (any, error) {
	switch body.(type) {
	case nil, json.RawMessage, []byte, string, io.Reader, url.Values:
		return body, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, validationError("body is not JSON encodable: %v", err)
	}
	return json.RawMessage(data), nil
}

func addParams(q url.Values, params map[string]any) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := params[k].(type) {
		case nil:
		case []string:
			for _, item := range v {
				q.Add(k, item)
			}
		case []any:
			for _, item := range v {
				q.Add(k, fmt.Sprint(item))
			}
		default:
			q.Set(k, fmt.Sprint(v))
		}
	}
}

// leveledLogger adapts observe.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log observe.Logger
}

func (l leveledLogger) fields(kv []any) []observe.Field {
	fields := make([]observe.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, observe.F(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}

func (l leveledLogger) Error(msg string, kv ...any) {
	l.log.Error(context.Background(), msg, l.fields(kv)...)
}

func (l leveledLogger) Info(msg string, kv ...any) {
	l.log.Debug(context.Background(), msg, l.fields(kv)...)
}

func (l leveledLogger) Debug(msg string, kv ...any) {
	l.log.Debug(context.Background(), msg, l.fields(kv)...)
}

func (l leveledLogger) Warn(msg string, kv ...any) {
	l.log.Warn(context.Background(), msg, l.fields(kv)...)
}

var (
	_ Transport                   = (*HTTPTransport)(nil)
	_ retryablehttp.LeveledLogger = leveledLogger{}
)
