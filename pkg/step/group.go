package step

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Group runs named steps in order, stopping at the first non-Success.
// An asynchronous group starts the sequence on the bound Background and
// reports Success at once.
type Group struct {
	Replication
	Steps        []string `json:"steps"`
	Asynchronous bool     `json:"asynchronous,omitempty"`

	binding
}

const groupSchema = `{
	"type": "object",
	"required": ["steps"],
	"properties": {
		"steps": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
		"asynchronous": {"type": "boolean"},` + replicationProperties + `
	}
}`

// Kind implements Step.
func (g *Group) Kind() string { return KindGroup }

// Validate implements factory.Validator.
func (g *Group) Validate() error {
	if len(g.Steps) == 0 {
		return errors.New("steps cannot be empty")
	}
	return nil
}

// StepRefs implements StepReferrer.
func (g *Group) StepRefs() []string { return g.Steps }

// Bind implements Step.
func (g *Group) Bind(env Env) Step {
	g.bind(KindGroup, env)
	return g
}

// Execute implements Step.
func (g *Group) Execute(ctx context.Context) (status Status, err error) {
	log, err := g.begin(KindGroup)
	if err != nil {
		return Fail, err
	}
	start := time.Now()
	defer func() { g.observe(KindGroup, start, status) }()

	if g.env.Steps == nil {
		return Fail, fmt.Errorf("%w: no step resolver bound", ErrInvalidStep)
	}

	sequence := func(ctx context.Context) (Status, error) {
		return RunSequence(ctx, g.env.Steps, g.Steps, log)
	}

	if g.Asynchronous {
		g.env.Background.Go(func() {
			st, err := g.run(context.WithoutCancel(ctx), log, sequence)
			if err != nil {
				log.Error("asynchronous group failed", "error", err)
				return
			}
			log.Debug("asynchronous group finished", "status", st.String())
		})
		return Success, nil
	}
	return g.run(ctx, log, sequence)
}
