package cmd

import (
	"fmt"

	"github.com/conneroisu/assetpipe/internal/pipeline"
	"github.com/conneroisu/assetpipe/internal/tasks"
	"github.com/spf13/cobra"
)

func init() {
	for _, def := range tasks.Definitions() {
		rootCmd.AddCommand(newTaskCommand(def))
	}
}

// newTaskCommand exposes a single registered task as a subcommand.
func newTaskCommand(task *pipeline.Task) *cobra.Command {
	name := task.Name
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Run the %s task: %s", name, task.Description),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasks(cmd, name)
		},
	}
}

func runTasks(cmd *cobra.Command, names ...string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if err := a.runner.Run(ctx, names...); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Finished %d task(s)\n", len(names))
	return nil
}
