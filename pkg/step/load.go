package step

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// loadWindow is the duty-cycle period of a load worker.
const loadWindow = 10 * time.Millisecond

// Load keeps ProcessorCount goroutines busy for Time seconds at roughly
// Percentage of each core.
type Load struct {
	Replication
	Time           float64 `json:"time"`
	Percentage     uint    `json:"percentage"`
	ProcessorCount uint    `json:"processorCount,omitempty"`

	binding
}

const loadSchema = `{
	"type": "object",
	"required": ["time", "percentage"],
	"properties": {
		"time": {"type": "number", "minimum": 0},
		"percentage": {"type": "integer", "minimum": 1, "maximum": 100},
		"processorCount": {"type": "integer", "minimum": 0},` + replicationProperties + `
	}
}`

// Kind implements Step.
func (l *Load) Kind() string { return KindLoad }

// Validate implements factory.Validator.
func (l *Load) Validate() error {
	if l.Time < 0 {
		return errors.New("time cannot be negative")
	}
	if l.Percentage < 1 || l.Percentage > 100 {
		return errors.New("percentage must be between 1 and 100")
	}
	return nil
}

// Bind implements Step.
func (l *Load) Bind(env Env) Step {
	l.bind(KindLoad, env)
	return l
}

// Workers returns the number of goroutines the step burns CPU on.
func (l *Load) Workers() int {
	if l.ProcessorCount == 0 {
		return runtime.NumCPU()
	}
	return int(l.ProcessorCount)
}

// Execute implements Step.
func (l *Load) Execute(ctx context.Context) (status Status, err error) {
	log, err := l.begin(KindLoad)
	if err != nil {
		return Fail, err
	}
	start := time.Now()
	defer func() { l.observe(KindLoad, start, status) }()

	if err := l.Validate(); err != nil {
		return Fail, fmt.Errorf("%w: %v", ErrInvalidStep, err)
	}

	total := seconds(l.Time)
	busy := loadWindow * time.Duration(l.Percentage) / 100
	return l.run(ctx, log, func(ctx context.Context) (Status, error) {
		burnCtx, cancel := context.WithTimeout(ctx, total)
		defer cancel()

		var wg sync.WaitGroup
		for range l.Workers() {
			wg.Add(1)
			go func() {
				defer wg.Done()
				burn(burnCtx, busy)
			}()
		}
		wg.Wait()

		if err := ctx.Err(); err != nil {
			return Fail, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		return Success, nil
	})
}

// burn alternates busy spinning and sleeping within each window until ctx ends.
func burn(ctx context.Context, busy time.Duration) {
	idle := loadWindow - busy
	for ctx.Err() == nil {
		until := time.Now().Add(busy)
		for time.Now().Before(until) {
			if ctx.Err() != nil {
				return
			}
		}
		if idle > 0 {
			_ = sleep(ctx, idle)
		}
	}
}
