package step

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/getmockd/mockmesh/pkg/logging"
)

// RunSequence executes the named steps in order and returns the status of
// the last one run. Execution stops at the first step that does not
// succeed, so later steps never run. Resolution and execution errors are
// returned as-is.
func RunSequence(ctx context.Context, steps Resolver, names []string, log *slog.Logger) (Status, error) {
	log = logging.OrNop(log)
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return Fail, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		s, err := steps.GetStep(name)
		if err != nil {
			return Fail, err
		}
		status, err := s.Execute(ctx)
		if err != nil {
			return Fail, fmt.Errorf("step %q: %w", name, err)
		}
		log.Debug("step finished", "step", name, "index", i, "status", status.String())
		if status != Success {
			return status, nil
		}
	}
	return Success, nil
}
