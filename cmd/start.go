package cmd

import (
	"github.com/conneroisu/assetpipe/internal/metrics"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Build once, then watch and serve",
	Long: `Run the build sequence and, when it succeeds, start the watch loop and
the dev server. A failed build aborts before anything is served.

Examples:
  assetpipe start
  assetpipe start --port 8080 --no-open`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
	addServerFlags(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	reg := newMetricsRegistry()
	a, err := newApp(metrics.NewPrometheusRecorder(reg))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if err := a.build(ctx, cmd.OutOrStdout()); err != nil {
		return err
	}

	return a.serve(ctx, reg)
}
