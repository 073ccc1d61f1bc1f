package transform

import (
	"bytes"
	"context"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path"
	"strings"
)

// ImageOptimizer recompresses raster images with the standard codecs and
// minifies SVGs. PNGs are re-encoded at best compression, JPEGs at the
// configured quality, GIFs frame by frame. Other formats pass through. The
// smaller of the original and the optimized bytes is kept, so the output
// never grows.
type ImageOptimizer struct {
	JPEGQuality int
	svg         *Minifier
}

// NewImageOptimizer returns an optimizer writing JPEGs at quality.
func NewImageOptimizer(quality int) *ImageOptimizer {
	if quality < 1 || quality > 100 {
		quality = 100
	}
	return &ImageOptimizer{JPEGQuality: quality, svg: NewSVGMinifier()}
}

// Name returns the transformer name.
func (o *ImageOptimizer) Name() string {
	return "imagemin"
}

// Transform optimizes one image.
func (o *ImageOptimizer) Transform(ctx context.Context, in *Asset) (*Asset, error) {
	var (
		optimized []byte
		err       error
	)

	switch strings.ToLower(path.Ext(in.Name)) {
	case ".png":
		optimized, err = o.png(in.Data)
	case ".jpg", ".jpeg":
		optimized, err = o.jpeg(in.Data)
	case ".gif":
		optimized, err = o.gif(in.Data)
	case ".svg":
		var out *Asset
		out, err = o.svg.Transform(ctx, in)
		if out != nil {
			optimized = out.Data
		}
	default:
		return in, nil
	}
	if err != nil {
		return nil, err
	}

	if len(optimized) == 0 || len(optimized) >= len(in.Data) {
		return in, nil
	}
	return &Asset{Name: in.Name, Source: in.Source, Data: optimized}, nil
}

func (o *ImageOptimizer) png(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *ImageOptimizer) jpeg(data []byte) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: o.JPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *ImageOptimizer) gif(data []byte) ([]byte, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
