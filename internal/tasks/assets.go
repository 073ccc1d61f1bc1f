package tasks

import (
	"context"
	"path"

	"github.com/conneroisu/assetpipe/internal/pipeline"
	"github.com/conneroisu/assetpipe/internal/source"
	"github.com/conneroisu/assetpipe/internal/transform"
)

func runCopy(ctx context.Context, env *pipeline.Env) error {
	return each(ctx, env, source.KindStatic, func(f source.File) error {
		in, err := readAsset(f, f.SourceRel)
		if err != nil {
			return err
		}
		return writeAll(env, in)
	})
}

func runImages(ctx context.Context, env *pipeline.Env) error {
	optimizer := transform.NewImageOptimizer(env.Config.Images.JPEGQuality)
	outDir := env.Config.Outputs.Images

	return each(ctx, env, source.KindImage, func(f source.File) error {
		in, err := readAsset(f, path.Join(outDir, f.Rel))
		if err != nil {
			return err
		}
		out, err := transform.Apply(ctx, in, optimizer)
		if err != nil {
			return err
		}
		return writeAll(env, out)
	})
}

func runSVGSprite(ctx context.Context, env *pipeline.Env) error {
	cfg := env.Config
	minifier := transform.NewSVGMinifier()

	var icons []*transform.Asset
	err := each(ctx, env, source.KindSprite, func(f source.File) error {
		in, err := readAsset(f, f.Rel)
		if err != nil {
			return err
		}
		out, err := transform.Apply(ctx, in, minifier)
		if err != nil {
			return err
		}
		icons = append(icons, out)
		return nil
	})
	if err != nil || len(icons) == 0 {
		return err
	}

	sprite, err := transform.NewSpriteBuilder(cfg.Outputs.SpriteName).Combine(ctx, icons)
	if err != nil {
		return err
	}
	sprite.Name = path.Join(cfg.Outputs.Icons, sprite.Name)
	return writeAll(env, sprite)
}
