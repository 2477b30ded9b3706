package policy

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// CircuitState represents the current state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed passes calls through and counts consecutive failures.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects every call until the break duration elapses.
	CircuitOpen
	// CircuitHalfOpen lets a single trial call through.
	CircuitHalfOpen
)

// String returns the human-readable state name.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerDefinition breaks the circuit after a number of consecutive
// transient failures and keeps it open for the break duration.
type CircuitBreakerDefinition struct {
	ExceptionsAllowed uint `json:"exceptionsAllowed"`
	BreakDuration     uint `json:"breakDuration"`
}

const circuitBreakerSchema = `{
	"type": "object",
	"required": ["exceptionsAllowed", "breakDuration"],
	"properties": {
		"exceptionsAllowed": {"type": "integer", "minimum": 1},
		"breakDuration": {"type": "integer", "minimum": 0}
	}
}`

// Kind implements Definition.
func (d *CircuitBreakerDefinition) Kind() string { return KindCircuitBreaker }

// Compile implements Definition. Each compiled policy owns one breaker, so
// every client using the policy shares its state.
func (d *CircuitBreakerDefinition) Compile(env Env) (Policy, error) {
	if d.ExceptionsAllowed == 0 {
		return nil, invalid(KindCircuitBreaker, "exceptionsAllowed must be at least 1")
	}
	return &CircuitBreaker{
		env:           env,
		log:           env.logger(KindCircuitBreaker),
		threshold:     int(d.ExceptionsAllowed),
		breakDuration: time.Duration(d.BreakDuration) * time.Millisecond,
		now:           time.Now,
	}, nil
}

// CircuitBreaker is a compiled circuit breaker policy.
//
// States:
//   - CLOSED: calls pass through. Consecutive transient failures count
//     toward the threshold; a success resets the count.
//   - OPEN: calls fail with ErrCircuitOpen without reaching the transport.
//     After the break duration the breaker moves to HALF_OPEN.
//   - HALF_OPEN: one trial call passes. Success closes the circuit, failure
//     opens it again. Calls arriving while the trial is in flight are rejected.
type CircuitBreaker struct {
	env           Env
	log           *slog.Logger
	threshold     int
	breakDuration time.Duration
	now           func() time.Time

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
	trialInFlight       bool
	totalTrips          int64
	totalRejected       int64
}

func (cb *CircuitBreaker) Name() string { return cb.env.Name }
func (cb *CircuitBreaker) Kind() string { return KindCircuitBreaker }

func (cb *CircuitBreaker) Wrap(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		trial, err := cb.acquire()
		if err != nil {
			cb.log.Debug("call rejected", "operation", OperationKey(req))
			cb.env.observe(KindCircuitBreaker, EventRejected)
			return nil, fmt.Errorf("%w: %s", err, cb.env.Name)
		}

		resp, callErr := next.RoundTrip(req)
		if req.Context().Err() != nil && callErr != nil {
			// Caller gave up; the outcome says nothing about the downstream.
			cb.release(trial)
			return resp, callErr
		}
		cb.record(trial, IsTransient(req, resp, callErr), OperationKey(req))
		return resp, callErr
	})
}

// acquire admits a call. trial is true when the call is the half-open probe.
func (cb *CircuitBreaker) acquire() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeTransition()

	switch cb.state {
	case CircuitOpen:
		cb.totalRejected++
		return false, ErrCircuitOpen
	case CircuitHalfOpen:
		if cb.trialInFlight {
			cb.totalRejected++
			return false, ErrCircuitOpen
		}
		cb.trialInFlight = true
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) release(trial bool) {
	if !trial {
		return
	}
	cb.mu.Lock()
	cb.trialInFlight = false
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) record(trial, failed bool, operation string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial {
		cb.trialInFlight = false
		if failed {
			cb.tripToOpen(operation)
		} else {
			cb.transitionToClosed()
		}
		return
	}

	if !failed {
		cb.consecutiveFailures = 0
		return
	}
	if cb.state != CircuitClosed {
		return
	}
	cb.consecutiveFailures++
	if cb.consecutiveFailures >= cb.threshold {
		cb.tripToOpen(operation)
	}
}

// maybeTransition moves OPEN to HALF_OPEN once the break has elapsed.
func (cb *CircuitBreaker) maybeTransition() {
	if cb.state == CircuitOpen && cb.now().Sub(cb.openedAt) >= cb.breakDuration {
		cb.state = CircuitHalfOpen
		cb.trialInFlight = false
		cb.log.Info("circuit half-open")
	}
}

func (cb *CircuitBreaker) tripToOpen(operation string) {
	cb.state = CircuitOpen
	cb.openedAt = cb.now()
	cb.consecutiveFailures = 0
	cb.totalTrips++
	cb.log.Warn("circuit opened", "operation", operation, "break", cb.breakDuration)
	cb.env.observe(KindCircuitBreaker, EventBreak)
}

func (cb *CircuitBreaker) transitionToClosed() {
	cb.state = CircuitClosed
	cb.consecutiveFailures = 0
	cb.log.Info("circuit closed")
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeTransition()
	return cb.state
}

// CircuitBreakerStats is a snapshot of breaker counters.
type CircuitBreakerStats struct {
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
	TotalTrips          int64  `json:"totalTrips"`
	TotalRejected       int64  `json:"totalRejected"`
}

// Stats returns current statistics.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeTransition()
	return CircuitBreakerStats{
		State:               cb.state.String(),
		ConsecutiveFailures: cb.consecutiveFailures,
		TotalTrips:          cb.totalTrips,
		TotalRejected:       cb.totalRejected,
	}
}
