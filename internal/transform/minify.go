package transform

import (
	"context"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

const (
	MediaTypeCSS = "text/css"
	MediaTypeJS  = "application/javascript"
	MediaTypeSVG = "image/svg+xml"
)

var (
	minifierOnce sync.Once
	minifier     *minify.M
)

func sharedMinifier() *minify.M {
	minifierOnce.Do(func() {
		minifier = minify.New()
		minifier.AddFunc(MediaTypeCSS, css.Minify)
		minifier.AddFunc(MediaTypeJS, js.Minify)
		minifier.Add(MediaTypeSVG, &svg.Minifier{})
	})
	return minifier
}

// Minifier minifies one media type.
type Minifier struct {
	name      string
	mediaType string
}

// NewCSSMinifier minifies stylesheets.
func NewCSSMinifier() *Minifier {
	return &Minifier{name: "minify-css", mediaType: MediaTypeCSS}
}

// NewJSMinifier minifies scripts.
func NewJSMinifier() *Minifier {
	return &Minifier{name: "minify-js", mediaType: MediaTypeJS}
}

// NewSVGMinifier minifies SVG documents.
func NewSVGMinifier() *Minifier {
	return &Minifier{name: "minify-svg", mediaType: MediaTypeSVG}
}

// Name returns the transformer name.
func (m *Minifier) Name() string {
	return m.name
}

// Transform minifies the asset's data.
func (m *Minifier) Transform(_ context.Context, in *Asset) (*Asset, error) {
	out, err := sharedMinifier().Bytes(m.mediaType, in.Data)
	if err != nil {
		return nil, err
	}
	return &Asset{Name: in.Name, Source: in.Source, Data: out}, nil
}
