package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/assetpipe/internal/config"
	"github.com/conneroisu/assetpipe/internal/devloop"
	perrors "github.com/conneroisu/assetpipe/internal/errors"
	"github.com/conneroisu/assetpipe/internal/logging"
	"github.com/conneroisu/assetpipe/internal/metrics"
	"github.com/conneroisu/assetpipe/internal/pipeline"
	"github.com/conneroisu/assetpipe/internal/tasks"
)

// app holds everything a command needs to run tasks.
type app struct {
	config   *config.Config
	logger   logging.Logger
	recorder metrics.Recorder
	registry *pipeline.Registry
	runner   *pipeline.Runner
	// loop is the watch loop started by serve.
	loop *devloop.Loop
}

// newApp loads the configuration and assembles the task runner.
func newApp(recorder metrics.Recorder) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, perrors.NewConfigError("failed to load configuration", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	registry, err := tasks.NewRegistry()
	if err != nil {
		return nil, perrors.NewInternalError("failed to register tasks", err)
	}

	env := pipeline.NewEnv(cfg, logger, recorder)

	return &app{
		config:   cfg,
		logger:   logger,
		recorder: recorder,
		registry: registry,
		runner:   pipeline.NewRunner(registry, env),
	}, nil
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, perrors.NewConfigError("invalid log level", err)
	}

	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		return nil, perrors.NewConfigError(fmt.Sprintf("unsupported log format %q (supported: text, json)", cfg.Log.Format), nil)
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	}), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
