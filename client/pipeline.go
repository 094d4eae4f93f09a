package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jonwraymond/reqops/cache"
	"github.com/jonwraymond/reqops/observe"
	"github.com/jonwraymond/reqops/resilience"
)

// call is the state of one request as it moves through the pipeline.
type call struct {
	desc  Descriptor
	body  any
	eff   *Effective
	mode  cache.Mode
	meta  observe.RequestMeta
	log   observe.Logger
	cache *cachedCall
}

// result is a successful execution, fresh or cached.
type result struct {
	status int
	data   any
	cached bool
}

// build resolves the configuration of d. Its only failure is validation.
func (c *Client) build(d Descriptor, mode cache.Mode, id string) (*call, error) {
	d = d.clone()
	eff, err := Resolve(c.class, c.instance, d.callLayer())
	if err != nil {
		return nil, err
	}
	body, err := prepareBody(d.Body)
	if err != nil {
		return nil, err
	}
	meta := observe.RequestMeta{
		ID:       id,
		Method:   eff.Method,
		Endpoint: eff.Endpoint,
		URL:      eff.URL(),
		Mode:     mode.String(),
	}
	return &call{
		desc: d,
		body: body,
		eff:  eff,
		mode: mode,
		meta: meta,
		log:  c.obs.Logger().WithRequest(meta),
	}, nil
}

// run takes a built call through cache check, execution, store and format.
// It always yields an envelope.
func (c *Client) run(ctx context.Context, cl *call) *Envelope {
	var env *Envelope
	instrumented := c.obs.Wrap(func(ctx context.Context, _ observe.RequestMeta) (observe.CallResult, error) {
		cl.log.Debug(ctx, "request started", observe.F("url", cl.meta.URL))
		res, cerr := c.lifecycle(ctx, cl)
		env = c.format(ctx, cl, res, cerr)
		if cerr != nil {
			return observe.CallResult{StatusCode: cerr.StatusCode}, cerr
		}
		return observe.CallResult{StatusCode: res.status, Cached: res.cached}, nil
	})
	_, _ = instrumented(ctx, cl.meta)
	return env
}

func (c *Client) lifecycle(ctx context.Context, cl *call) (*result, *Error) {
	if res, ok := c.hooks.BeforeExecute(ctx, cl); ok {
		return res, nil
	}
	return c.hooks.Around(ctx, cl, func(ctx context.Context) (*result, *Error) {
		res, err := c.execute(ctx, cl)
		if err != nil {
			return nil, err
		}
		c.hooks.AfterExecute(ctx, cl, res)
		return res, nil
	})
}

// execute runs the attempt loop and parses the response of the successful
// attempt. Each attempt gets its own deadline, which stays armed until the
// response body is closed.
func (c *Client) execute(ctx context.Context, cl *call) (*result, *Error) {
	eff := cl.eff
	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxRetries:   eff.MaxRetries,
		InitialDelay: eff.BackoffBase,
		MaxDelay:     eff.BackoffMax,
		Multiplier:   2.0,
		Strategy:     resilience.BackoffExponential,
		Jitter:       c.jitter,
		RetryIf:      IsTransient,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			cl.log.Warn(ctx, "retrying request",
				observe.F("attempt", attempt+1),
				observe.F("delay_ms", delay.Milliseconds()),
				observe.F("error", err),
			)
			c.obs.Metrics().RecordRetry(ctx, cl.meta, attempt+1)
		},
	})
	timeout := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: eff.Timeout})
	stream := isStreaming(eff.Parser)

	var resp *http.Response
	err := c.executor.With(resilience.WithRetry(retry)).Execute(ctx, func(ctx context.Context) error {
		actx, cancel := timeout.Context(ctx)
		r, err := c.transport.Send(actx, &Call{
			Method:  eff.Method,
			URL:     eff.URL(),
			Headers: eff.Headers,
			Params:  cl.desc.Params,
			Body:    cl.body,
			Auth:    eff.Authenticator,
			Stream:  stream,
		})
		if err != nil {
			cancel()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return classify(ctx, resilience.Expired(ctx, actx, err))
		}
		if r.StatusCode >= http.StatusBadRequest {
			drain(r.Body)
			cancel()
			return httpError(r)
		}
		r.Body = &cancelOnClose{ReadCloser: r.Body, cancel: cancel}
		resp = r
		return nil
	})
	if err != nil {
		return nil, classify(ctx, err)
	}

	data, perr := eff.Parser.Parse(ctx, resp, ParseOptions{Filename: cl.desc.Filename})
	if !stream || perr != nil {
		_ = resp.Body.Close()
	}
	if perr != nil {
		return nil, &Error{Kind: KindParse, StatusCode: resp.StatusCode, Message: "parsing failed", Err: perr}
	}
	return &result{status: resp.StatusCode, data: data}, nil
}

// format hands the outcome to the formatter. A failing formatter yields a
// CodeFormatting envelope instead.
func (c *Client) format(ctx context.Context, cl *call, res *result, cerr *Error) *Envelope {
	o := &Outcome{Descriptor: cl.desc, Err: cerr}
	if res != nil {
		o.StatusCode = res.status
		o.Data = res.data
		o.Cached = res.cached
	} else if cerr != nil {
		o.StatusCode = cerr.StatusCode
	}

	env, err := cl.eff.Formatter.Format(ctx, o)
	if err == nil && env != nil {
		return env
	}
	if err == nil {
		err = errors.New("formatter returned no envelope")
	}
	cl.log.Error(ctx, "formatting failed", observe.F("error", err))
	return failure(CodeFormatting, "formatting failed: "+err.Error())
}

// cancelOnClose releases the attempt deadline once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// drain reads a bounded amount of an unwanted body so the connection can be
// reused, then closes it.
func drain(body io.ReadCloser) {
	_, _ = io.CopyN(io.Discard, body, 4<<10)
	_ = body.Close()
}
