package tasks

import (
	"context"

	"github.com/conneroisu/assetpipe/internal/pipeline"
	"github.com/conneroisu/assetpipe/internal/source"
	"github.com/conneroisu/assetpipe/internal/transform"
)

// MarkupIncludePrefix introduces include directives and variables in HTML.
const MarkupIncludePrefix = "@@"

func runRenderMarkup(ctx context.Context, env *pipeline.Env) error {
	include := transform.NewInclude(MarkupIncludePrefix)
	format := transform.NewHTMLFormatter()

	return each(ctx, env, source.KindMarkup, func(f source.File) error {
		in, err := readAsset(f, f.Rel)
		if err != nil {
			return err
		}
		out, err := transform.Apply(ctx, in, include, format)
		if err != nil {
			return err
		}
		return writeAll(env, out)
	})
}
