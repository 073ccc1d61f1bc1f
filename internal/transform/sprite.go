package transform

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	perrors "github.com/conneroisu/assetpipe/internal/errors"
)

const svgNamespace = "http://www.w3.org/2000/svg"

// symbolAttrs are the root attributes carried over to each <symbol>.
var symbolAttrs = []string{"viewBox", "preserveAspectRatio"}

// SpriteBuilder merges SVG icons into one inline symbol sprite. Each input
// becomes <symbol id="basename"> holding the icon's root content; symbols
// are ordered by id so the output does not depend on input order.
type SpriteBuilder struct {
	// OutName is the name of the combined asset.
	OutName string
}

// NewSpriteBuilder returns a builder producing outName.
func NewSpriteBuilder(outName string) *SpriteBuilder {
	return &SpriteBuilder{OutName: outName}
}

// Name returns the combiner name.
func (b *SpriteBuilder) Name() string {
	return "svgstore"
}

type symbol struct {
	id    string
	attrs []xml.Attr
	inner []byte
}

// Combine builds the sprite. Duplicate ids are rejected.
func (b *SpriteBuilder) Combine(ctx context.Context, in []*Asset) (*Asset, error) {
	symbols := make([]symbol, 0, len(in))
	seen := make(map[string]string, len(in))
	needsXlink := false

	for _, a := range in {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := symbolID(a.Name)
		if prev, ok := seen[id]; ok {
			return nil, perrors.NewTransformError(b.Name(),
				fmt.Sprintf("duplicate symbol id %q (also from %s)", id, prev), nil).WithFile(a.Source)
		}
		seen[id] = a.Source

		sym, err := parseSymbol(id, a.Data)
		if err != nil {
			return nil, perrors.NewTransformError(b.Name(), "invalid svg", err).WithFile(a.Source)
		}
		if bytes.Contains(sym.inner, []byte("xlink:")) {
			needsXlink = true
		}
		symbols = append(symbols, sym)
	}

	sort.Slice(symbols, func(i, j int) bool { return symbols[i].id < symbols[j].id })

	var buf bytes.Buffer
	buf.WriteString(`<svg xmlns="` + svgNamespace + `"`)
	if needsXlink {
		buf.WriteString(` xmlns:xlink="http://www.w3.org/1999/xlink"`)
	}
	buf.WriteString(">\n")
	for _, s := range symbols {
		buf.WriteString(`  <symbol id="`)
		writeAttrValue(&buf, s.id)
		buf.WriteByte('"')
		for _, attr := range s.attrs {
			buf.WriteByte(' ')
			buf.WriteString(attr.Name.Local)
			buf.WriteString(`="`)
			writeAttrValue(&buf, attr.Value)
			buf.WriteByte('"')
		}
		buf.WriteByte('>')
		buf.Write(bytes.TrimSpace(s.inner))
		buf.WriteString("</symbol>\n")
	}
	buf.WriteString("</svg>\n")

	source := ""
	if len(in) > 0 {
		source = in[0].Source
	}
	return &Asset{Name: b.OutName, Source: source, Data: buf.Bytes()}, nil
}

// parseSymbol extracts the root attributes and the raw inner markup of an
// SVG document.
func parseSymbol(id string, data []byte) (symbol, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return symbol{}, fmt.Errorf("no <svg> root element")
			}
			return symbol{}, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "svg" {
			return symbol{}, fmt.Errorf("root element is <%s>, want <svg>", start.Name.Local)
		}

		sym := symbol{id: id}
		for _, want := range symbolAttrs {
			for _, attr := range start.Attr {
				if attr.Name.Local == want && attr.Name.Space == "" {
					sym.attrs = append(sym.attrs, xml.Attr{Name: xml.Name{Local: want}, Value: attr.Value})
				}
			}
		}

		begin := int(dec.InputOffset())
		end := bytes.LastIndex(data, []byte("</svg"))
		if end > begin {
			sym.inner = data[begin:end]
		}
		return sym, nil
	}
}

// symbolID derives the id from the file name: "icons/Arrow Left.svg" ->
// "Arrow-Left".
func symbolID(name string) string {
	base := path.Base(name)
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.Join(strings.Fields(base), "-")
}

func writeAttrValue(buf *bytes.Buffer, s string) {
	_ = xml.EscapeText(buf, []byte(s))
}
