package policy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// RateLimitDefinition caps the call rate with a token bucket. Rate is the
// number of calls per second, Burst the bucket size. With Wait set a call
// blocks until a token is available; otherwise it is rejected.
type RateLimitDefinition struct {
	Rate  float64 `json:"rate"`
	Burst uint    `json:"burst,omitempty"`
	Wait  bool    `json:"wait,omitempty"`
}

const rateLimitSchema = `{
	"type": "object",
	"required": ["rate"],
	"properties": {
		"rate":  {"type": "number", "exclusiveMinimum": 0},
		"burst": {"type": "integer", "minimum": 0},
		"wait":  {"type": "boolean"}
	}
}`

// Kind implements Definition.
func (d *RateLimitDefinition) Kind() string { return KindRateLimit }

// Compile implements Definition.
func (d *RateLimitDefinition) Compile(env Env) (Policy, error) {
	if d.Rate <= 0 {
		return nil, invalid(KindRateLimit, "rate must be positive")
	}
	return &rateLimit{
		env:    env,
		log:    env.logger(KindRateLimit),
		bucket: newBucket(d.Rate, int(d.Burst)),
		wait:   d.Wait,
	}, nil
}

type rateLimit struct {
	env    Env
	log    *slog.Logger
	bucket *bucket
	wait   bool
}

func (r *rateLimit) Name() string { return r.env.Name }
func (r *rateLimit) Kind() string { return KindRateLimit }

func (r *rateLimit) Wrap(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if r.bucket.allow() {
			return next.RoundTrip(req)
		}
		if !r.wait {
			r.log.Debug("call rejected by rate limit", "operation", OperationKey(req))
			r.env.observe(KindRateLimit, EventRejected)
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, OperationKey(req))
		}
		r.env.observe(KindRateLimit, EventThrottled)
		if err := r.bucket.wait(req.Context()); err != nil {
			return nil, err
		}
		return next.RoundTrip(req)
	})
}

// bucket is a token bucket. It starts full and is safe for concurrent use.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	rate       float64 // tokens per second
	lastUpdate time.Time
	now        func() time.Time
}

func newBucket(rate float64, burst int) *bucket {
	maxTokens := float64(burst)
	if maxTokens < 1 {
		maxTokens = max(rate, 1)
	}
	return &bucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		rate:       rate,
		lastUpdate: time.Now(),
		now:        time.Now,
	}
}

// refill adds tokens for the time elapsed since the last update. Caller
// must hold b.mu.
func (b *bucket) refill() {
	now := b.now()
	b.tokens = min(b.maxTokens, b.tokens+now.Sub(b.lastUpdate).Seconds()*b.rate)
	b.lastUpdate = now
}

func (b *bucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// wait reserves the next token and sleeps until it is due. The reservation
// drives the balance negative so concurrent waiters queue behind each other.
func (b *bucket) wait(ctx context.Context) error {
	b.mu.Lock()
	b.refill()
	b.tokens--
	delay := time.Duration(-b.tokens / b.rate * float64(time.Second))
	b.mu.Unlock()

	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		b.mu.Lock()
		b.tokens++
		b.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
