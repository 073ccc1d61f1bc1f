package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Run every task once",
	Long: `Run the build sequence: clean, copy, render-markup, style,
bundle-scripts, copy-vendor-scripts, images and svg-sprite.

The first failing task aborts the sequence and the command exits non-zero.

Examples:
  assetpipe build                     # Build into the configured destination
  ASSETPIPE_PATHS_DEST=out assetpipe build`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	return a.build(ctx, cmd.OutOrStdout())
}

// build runs the build sequence and reports the total time on out.
func (a *app) build(ctx context.Context, out io.Writer) error {
	start := time.Now()
	if err := a.runner.Build(ctx); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	fmt.Fprintf(out, "Built %s in %s\n", a.config.DestDir(), time.Since(start).Round(time.Millisecond))
	return nil
}
