package policy

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryDefinition retries transient failures with a constant or
// exponentially growing delay.
type RetryDefinition struct {
	Retries     uint `json:"retries"`
	Delay       uint `json:"delay"`
	Exponential bool `json:"exponential,omitempty"`
}

const retrySchema = `{
	"type": "object",
	"required": ["retries"],
	"properties": {
		"retries": {"type": "integer", "minimum": 0},
		"delay": {"type": "integer", "minimum": 0},
		"exponential": {"type": "boolean"}
	}
}`

// Kind implements Definition.
func (d *RetryDefinition) Kind() string { return KindRetry }

// Compile implements Definition.
func (d *RetryDefinition) Compile(env Env) (Policy, error) {
	return &retry{
		env:         env,
		log:         env.logger(KindRetry),
		retries:     uint64(d.Retries),
		delay:       time.Duration(d.Delay) * time.Millisecond,
		exponential: d.Exponential,
	}, nil
}

type retry struct {
	env         Env
	log         *slog.Logger
	retries     uint64
	delay       time.Duration
	exponential bool
}

func (r *retry) Name() string { return r.env.Name }
func (r *retry) Kind() string { return KindRetry }

const maxRetryInterval = 5 * time.Minute

// errTransient marks an attempt that may be retried.
var errTransient = errors.New("transient failure")

func (r *retry) backOff() backoff.BackOff {
	if !r.exponential {
		return backoff.NewConstantBackOff(r.delay)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.delay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxRetryInterval
	b.MaxElapsedTime = 0
	return b
}

func (r *retry) Wrap(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		// A body that cannot be replayed allows a single attempt.
		retries := r.retries
		if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
			retries = 0
		}

		var (
			resp    *http.Response
			callErr error
			attempt int
		)
		op := func() error {
			if attempt > 0 {
				discard(resp)
				r.log.Debug("retrying call", "operation", OperationKey(req), "attempt", attempt)
				r.env.observe(KindRetry, EventRetry)
			}
			attempt++

			out, err := cloneRequest(req)
			if err != nil {
				return backoff.Permanent(err)
			}
			resp, callErr = next.RoundTrip(out)
			if IsTransient(req, resp, callErr) {
				return errTransient
			}
			return nil
		}

		b := backoff.WithContext(backoff.WithMaxRetries(r.backOff(), retries), req.Context())
		err := backoff.Retry(op, b)
		switch {
		case err == nil, errors.Is(err, errTransient):
			// Retries exhausted returns the last outcome unchanged.
			return resp, callErr
		case req.Context().Err() != nil:
			discard(resp)
			return nil, req.Context().Err()
		default:
			discard(resp)
			return nil, err
		}
	})
}

func cloneRequest(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to replay request body: %w", err)
		}
		out.Body = body
	}
	return out, nil
}
