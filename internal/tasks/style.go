package tasks

import (
	"context"
	"path"

	"github.com/conneroisu/assetpipe/internal/pipeline"
	"github.com/conneroisu/assetpipe/internal/source"
	"github.com/conneroisu/assetpipe/internal/transform"
)

// runStyle compiles each entry stylesheet, optionally filters the CSS
// through the configured post command (postcss with autoprefixer and
// media query sorting, typically), then writes it alongside a minified
// copy.
func runStyle(ctx context.Context, env *pipeline.Env) error {
	cfg := env.Config
	compiler := transform.NewLessCompiler(cfg.Style.Command, cfg.Style.Args)
	minifier := transform.NewCSSMinifier()

	post := transform.Identity()
	if cfg.Style.PostCommand != "" {
		post = transform.NewCommandFilter("style-post", cfg.Style.PostCommand, cfg.Style.PostArgs)
	}

	return each(ctx, env, source.KindStyle, func(f source.File) error {
		in, err := readAsset(f, path.Join(cfg.Outputs.Styles, f.Rel))
		if err != nil {
			return err
		}
		css, err := transform.Apply(ctx, in, compiler, transform.Ext(".css"), post)
		if err != nil {
			return err
		}
		minified, err := transform.Apply(ctx, css, minifier, transform.Suffix(".min"))
		if err != nil {
			return err
		}
		return writeAll(env, css, minified)
	})
}
