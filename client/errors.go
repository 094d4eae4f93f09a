package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonwraymond/reqops/resilience"
)

// Kind classifies a request failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is a malformed descriptor or configuration. Never retried.
	KindValidation
	// KindNetwork is a connection level failure. Retried.
	KindNetwork
	// KindTimeout is an attempt that hit its deadline. Retried.
	KindTimeout
	// KindHTTP is a response with status >= 400. Retried only for 5xx.
	KindHTTP
	// KindCache is an unavailable cache backend. Logged and swallowed.
	KindCache
	// KindParse is a response the parser could not decode. Never retried.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	case KindCache:
		return "cache"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Sentinel errors matched through errors.Is against any *Error of that kind.
var (
	ErrValidation = errors.New("reqops: validation error")
	ErrNetwork    = errors.New("reqops: network error")
	ErrTimeout    = errors.New("reqops: timeout")
	ErrHTTP       = errors.New("reqops: http error")
	ErrCache      = errors.New("reqops: cache error")
	ErrParse      = errors.New("reqops: parse error")
)

var kindSentinels = map[Kind]error{
	KindValidation: ErrValidation,
	KindNetwork:    ErrNetwork,
	KindTimeout:    ErrTimeout,
	KindHTTP:       ErrHTTP,
	KindCache:      ErrCache,
	KindParse:      ErrParse,
}

// Error is a classified request failure.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func httpError(resp *http.Response) *Error {
	return &Error{
		Kind:       KindHTTP,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}

// IsTransient reports whether err is worth retrying: network failures,
// timeouts and 5xx responses.
func IsTransient(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTP:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// classify converts whatever came out of the attempt loop into an *Error.
// parent is the caller's context, used to tell its cancellation apart from
// an attempt deadline.
func classify(parent context.Context, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		if errors.Is(err, resilience.ErrMaxRetriesExceeded) {
			cp := *e
			cp.Message = e.Message + " (retries exhausted)"
			return &cp
		}
		return e
	}
	switch {
	case errors.Is(err, resilience.ErrTimeout):
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	case resilience.Rejected(err):
		return &Error{Kind: KindNetwork, Message: "request rejected", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: "request deadline exceeded", Err: err}
	case parent.Err() != nil:
		return &Error{Kind: KindNetwork, Message: "request canceled", Err: err}
	default:
		return &Error{Kind: KindNetwork, Message: "request failed", Err: err}
	}
}
