package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Persistent flags available to all subcommands
	configFiles []string
	logLevel    string
	logFormat   string
	jsonOutput  bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mockmesh",
	Short: "mockmesh emulates a service-mesh node from declarative configuration",
	Long: `mockmesh runs one node of an emulated service mesh. Each node answers
/api/{controller}/{name} by running the named processor: a sequence of steps
that sleep, burn CPU, fail on purpose or call other nodes through HTTP clients
wrapped in retry, timeout, circuit breaker and fallback policies.

Configuration is read from YAML or JSON files given with --config, from
MOCKMESH_CONFIG, or from mockmesh.yaml in the working directory. Environment
variables and flags override the server and logging settings in those files.`,
	// No Run function here means 'mockmesh' with no args will print help text by default.
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil, "Configuration file or glob (repeatable; default $MOCKMESH_CONFIG or "+DefaultConfigPattern+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error, critical)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
}
