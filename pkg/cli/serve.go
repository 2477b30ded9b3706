package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockmesh/internal/cliconfig"
	"github.com/getmockd/mockmesh/pkg/api"
	"github.com/getmockd/mockmesh/pkg/engine"
	"github.com/getmockd/mockmesh/pkg/metrics"
	"github.com/getmockd/mockmesh/pkg/registry"
)

type serveFlags struct {
	host         string
	port         int
	readTimeout  int
	writeTimeout int
	noMetrics    bool
}

// serveFlagVals is the package-level instance bound to cobra flags.
var serveFlagVals serveFlags

// serveCmd runs the node in the foreground.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the node and serve /api/{controller}/{name}",
	Long: `Load the configuration, build the registry, run every startup processor
and serve request processors over HTTP until interrupted.`,
	Example: `  # Start with mockmesh.yaml from the working directory
  mockmesh serve

  # Merge every file under ./mesh and listen on port 9000
  mockmesh serve -c 'mesh/**/*.yaml' --port 9000

  # JSON logs at debug level
  mockmesh serve --log-level debug --log-format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, &serveFlagVals)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := &serveFlagVals
	serveCmd.Flags().StringVar(&f.host, "host", "", "Interface to bind (default all)")
	serveCmd.Flags().IntVarP(&f.port, "port", "p", 0, "HTTP server port")
	serveCmd.Flags().IntVar(&f.readTimeout, "read-timeout", 0, "Read timeout in seconds")
	serveCmd.Flags().IntVar(&f.writeTimeout, "write-timeout", 0, "Write timeout in seconds")
	serveCmd.Flags().BoolVar(&f.noMetrics, "no-metrics", false, "Disable the Prometheus endpoint")
}

// overrides returns the serve flags the user actually set.
func (f *serveFlags) overrides(cmd *cobra.Command) *cliconfig.Overrides {
	o := &cliconfig.Overrides{}
	if changed(cmd, "host") {
		o.Host = &f.host
	}
	if changed(cmd, "port") {
		o.Port = &f.port
	}
	if changed(cmd, "read-timeout") {
		o.ReadTimeout = &f.readTimeout
	}
	if changed(cmd, "write-timeout") {
		o.WriteTimeout = &f.writeTimeout
	}
	if changed(cmd, "no-metrics") {
		enabled := !f.noMetrics
		o.Metrics = &enabled
	}
	return o
}

func runServe(cmd *cobra.Command, flags *serveFlags) error {
	settings, _, err := loadSettings(cmd, flags.overrides(cmd))
	if err != nil {
		return err
	}
	log := newLogger(settings, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var collector *metrics.Collector
	if settings.Metrics.Enabled {
		collector = metrics.NewCollector(metrics.WithRuntimeMetrics())
	}

	regOpts := []registry.Option{registry.WithLogger(log)}
	engOpts := []engine.Option{engine.WithLogger(log)}
	handlerOpts := []api.HandlerOption{api.WithHandlerLogger(log)}
	if collector != nil {
		regOpts = append(regOpts, registry.WithObserver(collector))
		engOpts = append(engOpts, engine.WithObserver(collector))
		handlerOpts = append(handlerOpts, api.WithMetrics(settings.Metrics.Path, collector.Handler()))
	}

	reg, err := registry.Load(ctx, settings, regOpts...)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	eng := engine.New(reg, engOpts...)

	if err := eng.RunStartup(ctx); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}

	srv := api.NewServer(settings.Server, api.NewHandler(eng, handlerOpts...), api.WithLogger(log))
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "mockmesh listening on http://%s\n", srv.Addr())

	<-ctx.Done()
	fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeoutDuration())
	defer cancel()

	uptime := srv.Uptime()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn("server shutdown error", "error", err)
	}
	if err := eng.Wait(shutdownCtx); err != nil {
		log.Warn("background work still running", "error", err)
	}
	log.Info("stopped", "uptime_seconds", uptime)
	return nil
}
