package pipeline

import (
	"context"
	"time"

	perrors "github.com/conneroisu/assetpipe/internal/errors"
	"github.com/conneroisu/assetpipe/internal/logging"
	"github.com/conneroisu/assetpipe/internal/metrics"
)

// Runner executes registered tasks against an Env.
type Runner struct {
	registry *Registry
	env      *Env
	logger   logging.Logger
}

// NewRunner creates a runner over registry.
func NewRunner(registry *Registry, env *Env) *Runner {
	return &Runner{
		registry: registry,
		env:      env,
		logger:   env.Logger.WithComponent("pipeline"),
	}
}

// Env returns the environment tasks run against.
func (r *Runner) Env() *Env {
	return r.env
}

// Run executes the named tasks in the given order and stops at the first
// failure. Every name is looked up before anything runs, so a typo does
// not leave a half-built destination.
func (r *Runner) Run(ctx context.Context, names ...string) error {
	tasks := make([]*Task, 0, len(names))
	for _, name := range names {
		task, err := r.registry.Lookup(name)
		if err != nil {
			return err
		}
		tasks = append(tasks, task)
	}

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.runTask(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

// Build runs the full build sequence.
func (r *Runner) Build(ctx context.Context) error {
	return r.Run(ctx, BuildSequence...)
}

func (r *Runner) runTask(ctx context.Context, task *Task) error {
	perf := logging.StartOperation(r.logger.With("task", task.Name), task.Name)
	perf.Debug(ctx, "Starting task")

	err := perrors.Wrap(task.Run(ctx, r.env), task.Name)

	var d time.Duration
	if err != nil {
		d = perf.EndWithError(ctx, err)
	} else {
		d = perf.End(ctx)
	}

	r.env.Recorder.ObserveTaskDuration(task.Name, d)
	r.env.Recorder.IncTaskResult(task.Name, metrics.ResultFor(err))
	return err
}
