package transform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/conneroisu/assetpipe/internal/errors"
)

func TestApplyRunsInOrder(t *testing.T) {
	upper := Func("upper", func(_ context.Context, in *Asset) (*Asset, error) {
		return &Asset{Name: in.Name, Source: in.Source, Data: append(in.Data, 'A')}, nil
	})
	lower := Func("lower", func(_ context.Context, in *Asset) (*Asset, error) {
		return &Asset{Name: in.Name, Source: in.Source, Data: append(in.Data, 'b')}, nil
	})

	out, err := Apply(context.Background(), &Asset{Name: "x.txt", Data: []byte("-")}, upper, lower, Suffix(".min"))
	require.NoError(t, err)
	assert.Equal(t, "-Ab", string(out.Data))
	assert.Equal(t, "x.min.txt", out.Name)
}

func TestApplyWrapsFailure(t *testing.T) {
	calledAfter := false
	fail := Func("broken", func(context.Context, *Asset) (*Asset, error) {
		return nil, errors.New("bad input")
	})
	after := Func("after", func(_ context.Context, in *Asset) (*Asset, error) {
		calledAfter = true
		return in, nil
	})

	_, err := Apply(context.Background(), &Asset{Name: "a", Source: "src/a"}, fail, after)
	require.Error(t, err)
	assert.False(t, calledAfter)

	var pe *perrors.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, perrors.ErrorTypeTransform, pe.Type)
	assert.Equal(t, "broken", pe.Transformer)
	assert.Equal(t, "src/a", pe.FilePath)
}

func TestApplyHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Apply(ctx, &Asset{Name: "a"}, Identity())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenameHelpers(t *testing.T) {
	testCases := []struct {
		name     string
		t        Transformer
		in       string
		expected string
	}{
		{"suffix", Suffix(".min"), "app.js", "app.min.js"},
		{"suffix nested", Suffix(".min"), "dir/app.js", "dir/app.min.js"},
		{"ext", Ext(".css"), "styles.less", "styles.css"},
		{"ext without dot", Ext(".css"), "styles", "styles.css"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := tc.t.Transform(context.Background(), &Asset{Name: tc.in})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, out.Name)
		})
	}
}
