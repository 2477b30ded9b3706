package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockmesh/pkg/cli/internal/output"
	"github.com/getmockd/mockmesh/pkg/engine"
	"github.com/getmockd/mockmesh/pkg/registry"
)

// RunOutput is the result of a one-shot processor run.
type RunOutput struct {
	Processor  string `json:"processor"`
	Status     string `json:"status"`
	DurationMs int64  `json:"durationMs"`
	Body       any    `json:"body"`
}

var runStartup bool

var runCmd = &cobra.Command{
	Use:   "run <processor>",
	Short: "Run one request processor and print its response",
	Long: `Build the registry and run a single request processor in this process,
as if /api/{controller}/<processor> had been called. Outbound request steps
still reach the configured clients.`,
	Example: `  # Run the checkout processor once
  mockmesh run checkout

  # Run startup processors first
  mockmesh run checkout --startup`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, _, err := loadSettings(cmd, nil)
		if err != nil {
			return err
		}
		log := newLogger(settings, cmd.ErrOrStderr())

		reg, err := registry.Load(cmd.Context(), settings, registry.WithLogger(log))
		if err != nil {
			return err
		}
		eng := engine.New(reg, engine.WithLogger(log))

		if runStartup {
			if err := eng.RunStartup(cmd.Context()); err != nil {
				return err
			}
			defer func() { _ = eng.Wait(cmd.Context()) }()
		}

		res, err := eng.Process(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := RunOutput{
			Processor:  res.Processor,
			Status:     res.Status.String(),
			DurationMs: res.Duration.Round(time.Millisecond).Milliseconds(),
			Body:       res.Body,
		}
		if jsonOutput {
			return output.JSONTo(cmd.OutOrStdout(), out)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s in %dms\n", out.Processor, out.Status, out.DurationMs)
		return output.JSONTo(cmd.OutOrStdout(), out.Body)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runStartup, "startup", false, "Run startup processors before the processor")
	rootCmd.AddCommand(runCmd)
}
