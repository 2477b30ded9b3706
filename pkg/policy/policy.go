package policy

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/containerd/errdefs"

	"github.com/getmockd/mockmesh/pkg/logging"
)

// Policy kinds as written in configuration entries.
const (
	KindFallback       = "FallbackPolicy"
	KindRetry          = "RetryPolicy"
	KindCircuitBreaker = "CircuitBreakerPolicy"
	KindTimeout        = "TimeoutPolicy"
	KindRateLimit      = "RateLimitPolicy"
)

// Events reported to an Observer.
const (
	EventFallback  = "fallback"
	EventRetry     = "retry"
	EventBreak     = "break"
	EventRejected  = "rejected"
	EventTimeout   = "timeout"
	EventThrottled = "throttled"
)

var (
	// ErrInvalidPolicy is returned by Compile for a definition that cannot
	// produce a working policy.
	ErrInvalidPolicy = fmt.Errorf("%w: invalid policy definition", errdefs.ErrInvalidArgument)

	// ErrCircuitOpen is returned while a circuit breaker rejects calls.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTimeout is returned when a timeout policy cancels a call.
	ErrTimeout = errors.New("call timed out")

	// ErrRateLimited is returned when a rate limit policy rejects a call.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Policy is a compiled resilience policy. Wrap returns a transport that
// applies the policy around next.
type Policy interface {
	Name() string
	Kind() string
	Wrap(next http.RoundTripper) http.RoundTripper
}

// Definition is the declarative form of a policy, decoded from configuration.
type Definition interface {
	Kind() string
	Compile(env Env) (Policy, error)
}

// Observer receives policy events. *metrics.Collector implements it.
type Observer interface {
	ObservePolicyEvent(policy, kind, event string)
}

// Env carries what a definition needs to compile.
type Env struct {
	// Name is the registry key of the policy.
	Name string

	Logger   *slog.Logger
	Observer Observer
}

func (e Env) logger(kind string) *slog.Logger {
	return logging.Component(e.Logger, "policy").With("policy", e.Name, "kind", kind)
}

func (e Env) observe(kind, event string) {
	if e.Observer != nil {
		e.Observer.ObservePolicyEvent(e.Name, kind, event)
	}
}

// Chain wraps base with policies so that policies[0] is the outermost layer.
func Chain(base http.RoundTripper, policies ...Policy) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	for i := len(policies) - 1; i >= 0; i-- {
		rt = policies[i].Wrap(rt)
	}
	return rt
}

// roundTripperFunc adapts a function to http.RoundTripper.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// IsTransient reports whether an outcome is a transient HTTP failure:
// a transport error, a 5xx status or 408 Request Timeout. Errors caused by
// the caller's own context being done are not transient.
func IsTransient(req *http.Request, resp *http.Response, err error) bool {
	if err != nil {
		return req.Context().Err() == nil
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusRequestTimeout
}

// OperationKey identifies a call in log records.
func OperationKey(req *http.Request) string {
	return req.Method + " " + req.URL.String()
}

func invalid(kind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPolicy, kind, fmt.Sprintf(format, args...))
}

// discard drains and closes a response that will not be returned, so the
// underlying connection can be reused.
func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
