package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinifiers(t *testing.T) {
	testCases := []struct {
		name     string
		m        *Minifier
		in       string
		contains string
		absent   string
	}{
		{"css", NewCSSMinifier(), "body {\n  color : #ff0000;\n}\n", "body{color:red}", "\n"},
		{"js", NewJSMinifier(), "function add(a, b) {\n  // sum\n  return a + b;\n}\n", "return a+b", "// sum"},
		{"svg", NewSVGMinifier(), "<svg xmlns=\"http://www.w3.org/2000/svg\">\n  <!-- c -->\n  <path d=\"M 0 0 L 10 10\"/>\n</svg>", "<path", "<!--"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := tc.m.Transform(context.Background(), &Asset{Name: "x", Data: []byte(tc.in)})
			require.NoError(t, err)
			assert.Contains(t, string(out.Data), tc.contains)
			assert.NotContains(t, string(out.Data), tc.absent)
			assert.Less(t, len(out.Data), len(tc.in))
		})
	}
}

func TestMinifierIsDeterministic(t *testing.T) {
	in := &Asset{Name: "a.js", Data: []byte("var answer = 40 + 2;\nconsole.log(answer);\n")}
	a, err := NewJSMinifier().Transform(context.Background(), in)
	require.NoError(t, err)
	b, err := NewJSMinifier().Transform(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
}

func TestJSMinifierRejectsSyntaxError(t *testing.T) {
	_, err := NewJSMinifier().Transform(context.Background(), &Asset{Name: "bad.js", Data: []byte("function ( {")})
	assert.Error(t, err)
}
