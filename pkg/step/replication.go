package step

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/getmockd/mockmesh/pkg/logging"
)

// Replication is embedded by every step kind. When ParallelCount is set and
// non-zero, the step's action runs that many times concurrently and the
// outcomes are combined with FailOnParallelFailures.
type Replication struct {
	ParallelCount          *uint  `json:"parallelCount,omitempty"`
	FailOnParallelFailures Clause `json:"failOnParallelFailures,omitempty"`
}

// MaxReplicas bounds ParallelCount. The value schemas enforce the same limit.
const MaxReplicas = 1024

// Replicas returns the number of concurrent runs, or 0 for a single run.
func (r Replication) Replicas() int {
	if r.ParallelCount == nil {
		return 0
	}
	return int(*r.ParallelCount)
}

type action func(ctx context.Context) (Status, error)

// run executes act once, or fans it out across the configured replicas and
// waits for all of them.
//
// A replica that returns an error is logged and cancels its siblings; the
// first such error is returned with Fail.
func (r Replication) run(ctx context.Context, log *slog.Logger, act action) (Status, error) {
	n := r.Replicas()
	if n == 0 {
		return act(ctx)
	}
	if n > MaxReplicas {
		logging.Critical(ctx, log, "parallelCount exceeds the replica limit", "parallelCount", n, "max", MaxReplicas)
		return Fail, fmt.Errorf("%w: parallelCount %d exceeds %d", ErrInvalidStep, n, MaxReplicas)
	}

	statuses := make([]Status, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			st, err := act(gctx)
			if err != nil {
				log.Error("parallel replica failed", "replica", i, "error", err)
				statuses[i] = Fail
				return err
			}
			statuses[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Fail, err
	}
	if err := ctx.Err(); err != nil {
		return Fail, err
	}

	status := r.FailOnParallelFailures.Aggregate(statuses)
	log.Debug("parallel replicas joined", "replicas", n, "clause", r.FailOnParallelFailures.String(), "status", status.String())
	return status, nil
}

const replicationProperties = `
		"parallelCount": {"type": "integer", "minimum": 0, "maximum": 1024},
		"failOnParallelFailures": {
			"anyOf": [
				{"type": "string", "pattern": "\\S"},
				{"type": "integer", "minimum": 0}
			]
		}`
