package step

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getmockd/mockmesh/pkg/logging"
)

// Delay waits for Time seconds and succeeds.
type Delay struct {
	Replication
	Time float64 `json:"time"`

	binding
}

const delaySchema = `{
	"type": "object",
	"required": ["time"],
	"properties": {
		"time": {"type": "number", "minimum": 0},` + replicationProperties + `
	}
}`

// Kind implements Step.
func (d *Delay) Kind() string { return KindDelay }

// Validate implements factory.Validator.
func (d *Delay) Validate() error {
	if d.Time < 0 {
		return errors.New("time cannot be negative")
	}
	return nil
}

// Bind implements Step.
func (d *Delay) Bind(env Env) Step {
	d.bind(KindDelay, env)
	return d
}

// Execute implements Step. A negative time is reported at CRITICAL level
// and returns ErrInvalidStep without waiting.
func (d *Delay) Execute(ctx context.Context) (status Status, err error) {
	log, err := d.begin(KindDelay)
	if err != nil {
		return Fail, err
	}
	start := time.Now()
	defer func() { d.observe(KindDelay, start, status) }()

	if d.Time < 0 {
		logging.Critical(ctx, log, "delay step configured with negative time", "time", d.Time)
		return Fail, fmt.Errorf("%w: delay time %v is negative", ErrInvalidStep, d.Time)
	}

	wait := seconds(d.Time)
	return d.run(ctx, log, func(ctx context.Context) (Status, error) {
		if err := sleep(ctx, wait); err != nil {
			return Fail, err
		}
		return Success, nil
	})
}
