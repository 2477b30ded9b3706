package policy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// TimeoutDefinition cancels calls that take longer than Time milliseconds,
// including the time to read the response body.
type TimeoutDefinition struct {
	Time uint `json:"time"`
}

const timeoutSchema = `{
	"type": "object",
	"required": ["time"],
	"properties": {
		"time": {"type": "integer", "minimum": 1}
	}
}`

// Kind implements Definition.
func (d *TimeoutDefinition) Kind() string { return KindTimeout }

// Compile implements Definition.
func (d *TimeoutDefinition) Compile(env Env) (Policy, error) {
	if d.Time == 0 {
		return nil, invalid(KindTimeout, "time must be at least 1ms")
	}
	return &timeout{
		env: env,
		log: env.logger(KindTimeout),
		d:   time.Duration(d.Time) * time.Millisecond,
	}, nil
}

type timeout struct {
	env Env
	log *slog.Logger
	d   time.Duration
}

func (t *timeout) Name() string { return t.env.Name }
func (t *timeout) Kind() string { return KindTimeout }

func (t *timeout) Wrap(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		ctx, cancel := context.WithTimeout(req.Context(), t.d)
		resp, err := next.RoundTrip(req.WithContext(ctx))
		if err != nil {
			cancel()
			if req.Context().Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				t.log.Debug("call timed out", "operation", OperationKey(req), "timeout", t.d)
				t.env.observe(KindTimeout, EventTimeout)
				return nil, fmt.Errorf("%w after %s: %s", ErrTimeout, t.d, OperationKey(req))
			}
			return nil, err
		}
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	})
}

// cancelOnClose releases the timeout context when the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
