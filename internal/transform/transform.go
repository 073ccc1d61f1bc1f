// Package transform wraps the content processors the pipeline delegates
// to: file includes, HTML formatting, LESS compilation, minification,
// image optimization and SVG sprite assembly. Every processor is a
// Transformer (one asset in, one asset out) or a Combiner (many in, one
// out), so tasks can chain them without knowing what they do.
package transform

import (
	"context"
	"errors"
	"path"
	"strings"

	perrors "github.com/conneroisu/assetpipe/internal/errors"
)

// Asset is one file flowing through a pipeline.
type Asset struct {
	// Name is the slash path of the output relative to the task's output
	// directory.
	Name string
	// Source is the filesystem path of the file the asset came from.
	Source string
	Data   []byte
}

// Transformer converts one asset into another.
type Transformer interface {
	Name() string
	Transform(ctx context.Context, in *Asset) (*Asset, error)
}

// Combiner merges several assets into one.
type Combiner interface {
	Name() string
	Combine(ctx context.Context, in []*Asset) (*Asset, error)
}

type funcTransformer struct {
	name string
	fn   func(ctx context.Context, in *Asset) (*Asset, error)
}

func (f funcTransformer) Name() string { return f.name }

func (f funcTransformer) Transform(ctx context.Context, in *Asset) (*Asset, error) {
	return f.fn(ctx, in)
}

// Func adapts a function to the Transformer interface.
func Func(name string, fn func(ctx context.Context, in *Asset) (*Asset, error)) Transformer {
	return funcTransformer{name: name, fn: fn}
}

// Apply runs in through ts in order. The first failure stops the chain and
// is returned as a PipelineError naming the transformer and source file.
func Apply(ctx context.Context, in *Asset, ts ...Transformer) (*Asset, error) {
	cur := in
	for _, t := range ts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := t.Transform(ctx, cur)
		if err != nil {
			return nil, annotate(err, t.Name(), in.Source)
		}
		cur = out
	}
	return cur, nil
}

func annotate(err error, transformer, file string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pe *perrors.PipelineError
	if errors.As(err, &pe) {
		if pe.Transformer == "" {
			pe.WithTransformer(transformer)
		}
		return pe.WithFile(file)
	}
	return perrors.NewTransformError(transformer, "transform failed", err).WithFile(file)
}

// Rename returns a transformer that only changes the asset name.
func Rename(fn func(name string) string) Transformer {
	return Func("rename", func(_ context.Context, in *Asset) (*Asset, error) {
		return &Asset{Name: fn(in.Name), Source: in.Source, Data: in.Data}, nil
	})
}

// Suffix inserts suffix before the extension: "app.js" -> "app.min.js".
func Suffix(suffix string) Transformer {
	return Rename(func(name string) string {
		ext := path.Ext(name)
		return strings.TrimSuffix(name, ext) + suffix + ext
	})
}

// Ext replaces the extension: "styles.less" -> "styles.css".
func Ext(ext string) Transformer {
	return Rename(func(name string) string {
		return strings.TrimSuffix(name, path.Ext(name)) + ext
	})
}

// Identity passes the asset through unchanged.
func Identity() Transformer {
	return Func("identity", func(_ context.Context, in *Asset) (*Asset, error) {
		return in, nil
	})
}
