package transform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	perrors "github.com/conneroisu/assetpipe/internal/errors"
)

// CommandCompiler compiles a stylesheet by running an external compiler
// (lessc by default) on the asset's source file and reading the CSS from
// its standard output. The source file is passed as the last argument so
// relative imports resolve the way the compiler expects.
type CommandCompiler struct {
	Command string
	Args    []string
}

// NewLessCompiler returns a compiler running command with args.
func NewLessCompiler(command string, args []string) *CommandCompiler {
	if command == "" {
		command = "lessc"
	}
	return &CommandCompiler{Command: command, Args: args}
}

// Name returns the transformer name.
func (c *CommandCompiler) Name() string {
	return "less"
}

// Available reports whether the compiler command can be found.
func (c *CommandCompiler) Available() error {
	if _, err := exec.LookPath(c.Command); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", c.Command, err)
	}
	return nil
}

// Transform runs the compiler. The output keeps the input name; callers
// chain Ext to rename it.
func (c *CommandCompiler) Transform(ctx context.Context, in *Asset) (*Asset, error) {
	if err := c.Available(); err != nil {
		return nil, perrors.NewTransformError(c.Name(), "compiler unavailable", err)
	}

	args := append(append([]string{}, c.Args...), in.Source)
	cmd := exec.CommandContext(ctx, c.Command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "compiler exited with error"
		}
		return nil, perrors.NewTransformError(c.Name(), msg, err)
	}

	return &Asset{Name: in.Name, Source: in.Source, Data: stdout.Bytes()}, nil
}

// CommandFilter pipes an asset's data through an external command's
// standard input and replaces it with the command's standard output.
// It runs postcss and similar stream processors.
type CommandFilter struct {
	Label   string
	Command string
	Args    []string
}

// NewCommandFilter returns a filter named label running command with args.
func NewCommandFilter(label, command string, args []string) *CommandFilter {
	if label == "" {
		label = command
	}
	return &CommandFilter{Label: label, Command: command, Args: args}
}

// Name returns the transformer name.
func (f *CommandFilter) Name() string {
	return f.Label
}

// Available reports whether the filter command can be found.
func (f *CommandFilter) Available() error {
	if _, err := exec.LookPath(f.Command); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", f.Command, err)
	}
	return nil
}

// Transform runs the filter.
func (f *CommandFilter) Transform(ctx context.Context, in *Asset) (*Asset, error) {
	if err := f.Available(); err != nil {
		return nil, perrors.NewTransformError(f.Name(), "filter unavailable", err)
	}

	cmd := exec.CommandContext(ctx, f.Command, f.Args...)
	cmd.Stdin = bytes.NewReader(in.Data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "filter exited with error"
		}
		return nil, perrors.NewTransformError(f.Name(), msg, err)
	}
	return &Asset{Name: in.Name, Source: in.Source, Data: stdout.Bytes()}, nil
}
