package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/conneroisu/assetpipe/internal/devloop"
	"github.com/conneroisu/assetpipe/internal/metrics"
	"github.com/conneroisu/assetpipe/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Watch the sources and serve the destination with live reload",
	Long: `Watch the source tree, rerun the tasks of each changed watch group
and serve the destination tree with live reload. No initial build is run;
use start for that.

Examples:
  assetpipe serve                  # Serve on localhost:3000
  assetpipe serve -p 8080 --no-open`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServerFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	reg := newMetricsRegistry()
	a, err := newApp(metrics.NewPrometheusRecorder(reg))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	return a.serve(ctx, reg)
}

func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// serve runs the watch loop and the dev server until ctx is cancelled.
func (a *app) serve(ctx context.Context, reg *prometheus.Registry) error {
	srv := server.New(server.Options{
		Config:   a.config,
		Logger:   a.logger,
		Recorder: a.recorder,
		Metrics:  metrics.HTTPHandler(reg),
	})

	loop, err := devloop.New(devloop.Options{
		SourceDir: a.config.SourceDir(),
		Groups:    devloop.DefaultGroups(a.config),
		Runner:    a.runner,
		Reloader:  srv.Hub(),
		Logger:    a.logger,
		Recorder:  a.recorder,
	})
	if err != nil {
		return fmt.Errorf("failed to create watch loop: %w", err)
	}
	srv.SetStatus(loop)
	a.loop = loop

	if err := loop.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watch loop: %w", err)
	}
	defer loop.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error(shutdownCtx, err, "Error during server shutdown")
	}

	return <-errCh
}
