// Package tasks defines the concrete build steps: one pipeline.Task per
// resource kind, each wiring a Source Set through a fixed chain of
// transformers into the destination tree.
package tasks

import (
	"context"
	"os"

	perrors "github.com/conneroisu/assetpipe/internal/errors"
	"github.com/conneroisu/assetpipe/internal/pipeline"
	"github.com/conneroisu/assetpipe/internal/source"
	"github.com/conneroisu/assetpipe/internal/transform"
)

// Definitions returns every task in build sequence order.
func Definitions() []*pipeline.Task {
	return []*pipeline.Task{
		{
			Name:        pipeline.TaskClean,
			Description: "remove the destination tree",
			Run:         runClean,
		},
		{
			Name:        pipeline.TaskCopy,
			Description: "copy static assets keeping their path under the source root",
			Kind:        source.KindStatic,
			Run:         runCopy,
		},
		{
			Name:        pipeline.TaskRenderMarkup,
			Description: "expand includes in HTML pages and format the result",
			Kind:        source.KindMarkup,
			Run:         runRenderMarkup,
		},
		{
			Name:        pipeline.TaskStyle,
			Description: "compile the LESS entry stylesheet and minify it",
			Kind:        source.KindStyle,
			Run:         runStyle,
		},
		{
			Name:        pipeline.TaskBundleScripts,
			Description: "bundle dev scripts through includes and minify them",
			Kind:        source.KindScriptDev,
			Run:         runBundleScripts,
		},
		{
			Name:        pipeline.TaskCopyVendorScripts,
			Description: "copy vendor scripts unchanged",
			Kind:        source.KindScriptVendor,
			Run:         runCopyVendorScripts,
		},
		{
			Name:        pipeline.TaskImages,
			Description: "optimize raster and SVG images",
			Kind:        source.KindImage,
			Run:         runImages,
		},
		{
			Name:        pipeline.TaskSVGSprite,
			Description: "merge SVG icons into one symbol sprite",
			Kind:        source.KindSprite,
			Run:         runSVGSprite,
		},
	}
}

// Register adds every task to registry.
func Register(registry *pipeline.Registry) error {
	for _, task := range Definitions() {
		if err := registry.Register(task); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding every task.
func NewRegistry() (*pipeline.Registry, error) {
	registry := pipeline.NewRegistry()
	if err := Register(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

func runClean(ctx context.Context, env *pipeline.Env) error {
	dest := env.DestDir()
	if err := os.RemoveAll(dest); err != nil {
		return perrors.NewIOError("remove destination", err).WithFile(dest)
	}
	env.Logger.Debug(ctx, "Removed destination", "dest", dest)
	return nil
}

// readAsset loads f as an asset named name.
func readAsset(f source.File, name string) (*transform.Asset, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, perrors.NewIOError("read source", err).WithFile(f.Path)
	}
	return &transform.Asset{Name: name, Source: f.Path, Data: data}, nil
}

// each resolves kind and runs fn on every file, stopping at the first
// error.
func each(ctx context.Context, env *pipeline.Env, kind source.Kind, fn func(f source.File) error) error {
	set, err := env.Resolve(kind)
	if err != nil {
		return err
	}
	for _, f := range set.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	env.Logger.Debug(ctx, "Processed sources", "kind", kind.String(), "files", set.Len(), "paths", set.Paths())
	return nil
}

// writeAll writes assets under the destination root.
func writeAll(env *pipeline.Env, assets ...*transform.Asset) error {
	for _, a := range assets {
		if err := env.Write(a.Name, a.Data); err != nil {
			return err
		}
	}
	return nil
}
