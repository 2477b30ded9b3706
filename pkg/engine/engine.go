package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/containerd/errdefs"

	"github.com/getmockd/mockmesh/pkg/logging"
	"github.com/getmockd/mockmesh/pkg/processor"
	"github.com/getmockd/mockmesh/pkg/step"
)

var (
	// ErrBlankName is returned when Process is called without a name.
	ErrBlankName = fmt.Errorf("%w: processor name cannot be blank", errdefs.ErrInvalidArgument)

	// ErrNotRequestProcessor is returned when Process names a processor that
	// cannot serve requests.
	ErrNotRequestProcessor = fmt.Errorf("%w: not a request processor", errdefs.ErrInvalidArgument)

	// ErrProcessingFailed is returned when a processor's steps end in Fail.
	ErrProcessingFailed = fmt.Errorf("%w: processing failed", errdefs.ErrFailedPrecondition)
)

// Catalog is the read side of the registry the engine needs.
type Catalog interface {
	step.Resolver
	GetProcessor(name string) (processor.Processor, error)
	StartupProcessors() []string
}

// Observer receives one call per processed request. *metrics.Collector
// implements it.
type Observer interface {
	ObserveProcessor(name, status string, d time.Duration)
}

// Result is the outcome of a successful or simulated-failure run.
type Result struct {
	Processor string
	Status    step.Status
	Duration  time.Duration

	// Body is *processor.SuccessPayload for Success and
	// *processor.ErrorPayload for SimulatedFail.
	Body any
}

// BackgroundTracker is implemented by catalogs whose steps start work that
// outlives a request. The registry implements it.
type BackgroundTracker interface {
	Background() *step.Background
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = logging.Component(log, "engine") }
}

// WithObserver reports every processed request.
func WithObserver(obs Observer) Option {
	return func(e *Engine) { e.observer = obs }
}

// Engine executes processors from a catalog. It is safe for concurrent use.
type Engine struct {
	catalog  Catalog
	log      *slog.Logger
	observer Observer

	background *step.Background
}

// New creates an engine over catalog. When catalog is a BackgroundTracker,
// asynchronous startup processors share its Background so Wait drains both.
func New(catalog Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog: catalog,
		log:     logging.Component(nil, "engine"),
	}
	if bt, ok := catalog.(BackgroundTracker); ok {
		e.background = bt.Background()
	}
	if e.background == nil {
		e.background = &step.Background{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process runs the named request processor.
//
// A Success or SimulatedFail outcome returns a Result with the shaped body.
// A Fail outcome returns ErrProcessingFailed. Lookup and step errors are
// returned wrapped; a cancelled context returns its error.
func (e *Engine) Process(ctx context.Context, name string) (*Result, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrBlankName
	}

	start := time.Now()
	p, status, err := e.process(ctx, name)
	elapsed := time.Since(start)

	label := status.String()
	if err != nil && !errors.Is(err, ErrProcessingFailed) {
		label = "Error"
	}
	if e.observer != nil {
		e.observer.ObserveProcessor(name, label, elapsed)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{Processor: name, Status: status, Duration: elapsed}
	if status == step.Success {
		res.Body = p.SuccessPayload()
	} else {
		res.Body = p.ErrorPayload()
	}
	return res, nil
}

func (e *Engine) requestProcessor(name string) (*processor.Request, error) {
	p, err := e.catalog.GetProcessor(name)
	if err != nil {
		return nil, err
	}
	rp, ok := p.(*processor.Request)
	if !ok {
		return nil, fmt.Errorf("%w: %q is a %s", ErrNotRequestProcessor, name, p.Kind())
	}
	return rp, nil
}

func (e *Engine) process(ctx context.Context, name string) (*processor.Request, step.Status, error) {
	p, err := e.requestProcessor(name)
	if err != nil {
		return nil, step.Fail, err
	}
	log := e.log.With("processor", name)

	if d := p.IngressLatency(); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return p, step.Fail, ctx.Err()
		case <-timer.C:
		}
	}

	status, err := step.RunSequence(ctx, e.catalog, p.Steps, log)
	if err != nil {
		log.Error("processor failed", "error", err)
		return p, step.Fail, err
	}
	log.Debug("processor finished", "status", status.String())
	if status == step.Fail {
		return p, status, fmt.Errorf("%w: %s", ErrProcessingFailed, name)
	}
	return p, status, nil
}

// RunStartup runs every startup processor once. Synchronous processors run
// in name order before RunStartup returns; asynchronous ones are started in
// the background and can be awaited with Wait.
//
// Step outcomes are logged. Only lookup and execution errors of synchronous
// processors are returned.
func (e *Engine) RunStartup(ctx context.Context) error {
	for _, name := range e.catalog.StartupProcessors() {
		p, err := e.catalog.GetProcessor(name)
		if err != nil {
			return err
		}
		sp, ok := p.(*processor.Startup)
		if !ok {
			return fmt.Errorf("%w: %q is a %s", errdefs.ErrInvalidArgument, name, p.Kind())
		}
		log := e.log.With("processor", name)

		if sp.Asynchronous {
			e.background.Go(func() {
				if _, err := e.runStartup(ctx, log, sp); err != nil {
					log.Error("startup processor failed", "error", err)
				}
			})
			continue
		}
		if _, err := e.runStartup(ctx, log, sp); err != nil {
			return fmt.Errorf("startup processor %q: %w", name, err)
		}
	}
	return nil
}

func (e *Engine) runStartup(ctx context.Context, log *slog.Logger, sp *processor.Startup) (step.Status, error) {
	log.Info("running startup processor", "steps", len(sp.Steps), "asynchronous", sp.Asynchronous)
	status, err := step.RunSequence(ctx, e.catalog, sp.Steps, log)
	if err != nil {
		return status, err
	}
	if status == step.Success {
		log.Info("startup processor finished", "status", status.String())
	} else {
		log.Warn("startup processor finished", "status", status.String())
	}
	return status, nil
}

// Wait blocks until asynchronous startup processors and asynchronous group
// steps finish or ctx ends.
func (e *Engine) Wait(ctx context.Context) error {
	return e.background.Wait(ctx)
}
