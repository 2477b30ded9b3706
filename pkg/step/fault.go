package step

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Fault reports SimulatedFail with the configured probability and Success
// otherwise. It is configured as an ErrorStep.
type Fault struct {
	Replication
	Probability float64 `json:"probability"`

	binding

	// roll returns a number in [0, 1). Tests replace it.
	roll func() float64
}

const faultSchema = `{
	"type": "object",
	"required": ["probability"],
	"properties": {
		"probability": {"type": "number", "minimum": 0, "maximum": 1},` + replicationProperties + `
	}
}`

// Kind implements Step.
func (f *Fault) Kind() string { return KindError }

// Validate implements factory.Validator.
func (f *Fault) Validate() error {
	if f.Probability < 0 || f.Probability > 1 {
		return errors.New("probability must be between 0 and 1")
	}
	return nil
}

// Bind implements Step.
func (f *Fault) Bind(env Env) Step {
	if f.roll == nil {
		f.roll = rand.Float64
	}
	f.bind(KindError, env)
	return f
}

// Execute implements Step.
func (f *Fault) Execute(ctx context.Context) (status Status, err error) {
	log, err := f.begin(KindError)
	if err != nil {
		return Fail, err
	}
	start := time.Now()
	defer func() { f.observe(KindError, start, status) }()

	return f.run(ctx, log, func(ctx context.Context) (Status, error) {
		if err := ctx.Err(); err != nil {
			return Fail, err
		}
		if f.roll() < f.Probability {
			log.Debug("simulating failure", "probability", f.Probability)
			return SimulatedFail, nil
		}
		return Success, nil
	})
}
