package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockmesh/internal/cliconfig"
	"github.com/getmockd/mockmesh/pkg/config"
	"github.com/getmockd/mockmesh/pkg/logging"
)

// DefaultConfigPattern is read when neither --config nor MOCKMESH_CONFIG is set.
const DefaultConfigPattern = "mockmesh.{yaml,yml,json}"

// configPatterns picks the configuration files: flags, then the
// environment, then the default pattern.
func configPatterns() []string {
	if len(configFiles) > 0 {
		return configFiles
	}
	if env := cliconfig.ConfigPatterns(); len(env) > 0 {
		return env
	}
	return []string{DefaultConfigPattern}
}

// loadSettings reads the configuration files and applies environment and
// flag overrides, flags winning. flags holds the values set on cmd.
func loadSettings(cmd *cobra.Command, flags *cliconfig.Overrides) (*config.Settings, *cliconfig.Overrides, error) {
	settings, err := config.Load(configPatterns()...)
	if err != nil {
		return nil, nil, err
	}

	overrides := &cliconfig.Overrides{}
	overrides.Merge(cliconfig.LoadEnv(), cliconfig.SourceEnv)
	overrides.Merge(persistentOverrides(cmd), cliconfig.SourceFlag)
	overrides.Merge(flags, cliconfig.SourceFlag)

	if err := overrides.Apply(settings); err != nil {
		return nil, nil, fmt.Errorf("invalid override: %w", err)
	}
	return settings, overrides, nil
}

// persistentOverrides collects the logging flags the user actually set.
func persistentOverrides(cmd *cobra.Command) *cliconfig.Overrides {
	o := &cliconfig.Overrides{}
	if changed(cmd, "log-level") {
		o.LogLevel = &logLevel
	}
	if changed(cmd, "log-format") {
		o.LogFormat = &logFormat
	}
	return o
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// newLogger builds the process logger from the logging settings.
func newLogger(s *config.Settings, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(s.Logging.Level),
		Format: logging.ParseFormat(s.Logging.Format),
		Output: w,
	})
}
