package tasks

import (
	"context"
	"path"

	"github.com/conneroisu/assetpipe/internal/pipeline"
	"github.com/conneroisu/assetpipe/internal/source"
	"github.com/conneroisu/assetpipe/internal/transform"
)

// ScriptIncludePrefix introduces include directives in scripts; the
// leading comment keeps unbundled sources valid JavaScript.
const ScriptIncludePrefix = "//@@"

func runBundleScripts(ctx context.Context, env *pipeline.Env) error {
	include := transform.NewInclude(ScriptIncludePrefix)
	minifier := transform.NewJSMinifier()
	outDir := env.Config.Outputs.Scripts

	return each(ctx, env, source.KindScriptDev, func(f source.File) error {
		in, err := readAsset(f, path.Join(outDir, f.Rel))
		if err != nil {
			return err
		}
		bundle, err := transform.Apply(ctx, in, include)
		if err != nil {
			return err
		}
		minified, err := transform.Apply(ctx, bundle, minifier, transform.Suffix(".min"))
		if err != nil {
			return err
		}
		return writeAll(env, bundle, minified)
	})
}

func runCopyVendorScripts(ctx context.Context, env *pipeline.Env) error {
	outDir := env.Config.Outputs.Scripts

	return each(ctx, env, source.KindScriptVendor, func(f source.File) error {
		in, err := readAsset(f, path.Join(outDir, f.Rel))
		if err != nil {
			return err
		}
		return writeAll(env, in)
	})
}
