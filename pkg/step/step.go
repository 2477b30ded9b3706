package step

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/containerd/errdefs"

	"github.com/getmockd/mockmesh/pkg/client"
	"github.com/getmockd/mockmesh/pkg/logging"
)

// Step kinds as written in configuration entries.
const (
	KindDelay   = "DelayStep"
	KindError   = "ErrorStep"
	KindLoad    = "LoadStep"
	KindRequest = "RequestStep"
	KindGroup   = "GroupStep"
)

var (
	// ErrUnbound is returned when a step is executed before Bind.
	ErrUnbound = fmt.Errorf("%w: step executed before it was bound", errdefs.ErrFailedPrecondition)

	// ErrInvalidStep is returned when a step's configuration turns out to be
	// unusable at execute time.
	ErrInvalidStep = fmt.Errorf("%w: invalid step configuration", errdefs.ErrFailedPrecondition)

	// ErrCancelled is returned when the context ends while a step runs.
	ErrCancelled = errors.New("step execution cancelled")
)

// Step is a unit of simulated work.
//
// A step decoded from configuration is unbound. Bind attaches the runtime
// environment and returns the step ready to execute; binding an already
// bound step keeps the first environment. Execute may be called
// concurrently once bound.
type Step interface {
	Kind() string
	Bind(env Env) Step
	Execute(ctx context.Context) (Status, error)
}

// Resolver looks up named steps. The registry implements it.
type Resolver interface {
	GetStep(name string) (Step, error)
}

// ClientResolver looks up named clients. The registry implements it.
type ClientResolver interface {
	GetClient(name string) (*client.Client, error)
}

// StepReferrer is implemented by steps that run other named steps.
type StepReferrer interface {
	StepRefs() []string
}

// ClientReferrer is implemented by steps that call named clients.
type ClientReferrer interface {
	ClientRefs() []string
}

// Observer receives one call per step execution. *metrics.Collector
// implements it.
type Observer interface {
	ObserveStep(kind, status string, d time.Duration)
}

// Env is the runtime environment a step is bound to.
type Env struct {
	// Name is the registry key of the step, used in log records.
	Name string

	Logger   *slog.Logger
	Steps    Resolver
	Clients  ClientResolver
	Observer Observer

	// Background tracks asynchronous work. Nil leaves it untracked.
	Background *Background
}

// binding holds the bound state shared by every step kind.
type binding struct {
	env   *Env
	log   *slog.Logger
	bound bool
}

func (b *binding) bind(kind string, env Env) {
	if b.bound {
		return
	}
	log := logging.Component(env.Logger, "step").With("kind", kind)
	if env.Name != "" {
		log = log.With("step", env.Name)
	}
	b.env = &env
	b.log = log
	b.bound = true
}

// begin returns the bound logger, or ErrUnbound.
func (b *binding) begin(kind string) (*slog.Logger, error) {
	if !b.bound {
		return nil, fmt.Errorf("%w: %s", ErrUnbound, kind)
	}
	return b.log, nil
}

// Bound reports whether the step has been bound.
func (b *binding) Bound() bool { return b.bound }

func (b *binding) observe(kind string, start time.Time, status Status) {
	if b.env != nil && b.env.Observer != nil {
		b.env.Observer.ObserveStep(kind, status.String(), time.Since(start))
	}
}

// seconds converts a fractional number of seconds to a duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}
