package model

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/travelmesh/logging"
)

// InvokerOptions configure retry behavior of a RetryInvoker.
type InvokerOptions struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
	// InitialBackoff is slept before the first retry; each further retry
	// multiplies it by BackoffMultiplier.
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	// Sleep overrides the backoff sleep, for tests. It must honor ctx.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger logging.Logger
}

// RetryInvoker wraps a Model with transient-failure classification and
// exponential backoff. It knows nothing about rate limiting; recording a
// successful call against the limiter stays the caller's responsibility.
type RetryInvoker struct {
	model Model
	opts  InvokerOptions
}

// NewRetryInvoker wraps the model with the default policy: 2 retries
// (3 attempts total), backing off 1s then 2s.
func NewRetryInvoker(m Model, optFns ...func(o *InvokerOptions)) *RetryInvoker {
	opts := InvokerOptions{
		MaxRetries:        2,
		InitialBackoff:    time.Second,
		BackoffMultiplier: 2.0,
		Sleep:             sleepCtx,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RetryInvoker{model: m, opts: opts}
}

// Model returns the wrapped model.
func (i *RetryInvoker) Model() Model { return i.model }

// Invoke performs a single-shot call, retrying transient failures per the
// configured policy and returning the final (non-partial) response.
func (i *RetryInvoker) Invoke(ctx context.Context, req Request) (*Response, error) {
	req.Stream = false
	final, _, err := i.attemptWithRetry(ctx, req)
	return final, err
}

// InvokeStream performs an incremental call under the identical retry policy.
// Text deltas are delivered to fn only once an attempt has fully succeeded;
// output of failed attempts is discarded and the retry restarts the call from
// scratch, never resuming mid-stream.
func (i *RetryInvoker) InvokeStream(ctx context.Context, req Request, fn func(delta string)) (*Response, error) {
	req.Stream = true
	final, partials, err := i.attemptWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	if fn != nil {
		for _, delta := range partials {
			fn(delta)
		}
	}
	return final, nil
}

// attemptWithRetry runs the attempt loop shared by both invocation modes.
func (i *RetryInvoker) attemptWithRetry(ctx context.Context, req Request) (*Response, []string, error) {
	backoff := i.opts.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= i.opts.MaxRetries; attempt++ {
		final, partials, err := i.attempt(ctx, req)
		if err == nil {
			return final, partials, nil
		}
		lastErr = err

		if attempt < i.opts.MaxRetries && IsTransient(err) {
			i.opts.Logger.Warn("model.invoke.retry",
				"attempt", attempt+1,
				"max_attempts", i.opts.MaxRetries+1,
				"backoff", backoff.String(),
				"error", err.Error(),
			)
			if serr := i.opts.Sleep(ctx, backoff); serr != nil {
				return nil, nil, serr
			}
			backoff = time.Duration(float64(backoff) * i.opts.BackoffMultiplier)
			continue
		}
		break
	}
	return nil, nil, lastErr
}

// attempt drains one Generate call, collecting partial text deltas and the
// final response. An error observed at any point fails the whole attempt.
func (i *RetryInvoker) attempt(ctx context.Context, req Request) (*Response, []string, error) {
	respCh, errCh := i.model.Generate(ctx, req)

	var final *Response
	var partials []string

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				if text := resp.Content.Text(); text != "" {
					partials = append(partials, text)
				}
				continue
			}
			r := resp
			final = &r
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return nil, nil, err
			}
		}
	}

	if final == nil {
		return nil, nil, fmt.Errorf("model %q returned no final response", i.model.Info().Name)
	}
	return final, partials, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
