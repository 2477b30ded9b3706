// Package policy compiles declarative resilience policies into HTTP
// transport middleware.
//
// A Definition is decoded from a configuration entry and compiled once into
// a Policy. Policies wrap an http.RoundTripper; Chain stacks them so the
// first declared policy is the outermost layer:
//
//	rt := policy.Chain(http.DefaultTransport, fallback, retry, timeout)
//
// Fallback, retry and timeout policies hold no state between calls. A
// circuit breaker keeps a mutex-guarded state machine and a rate limit a
// token bucket, each shared by every client that references it.
package policy
