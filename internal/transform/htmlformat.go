package transform

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

var inlineElements = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "bdo": true, "br": true,
	"cite": true, "code": true, "data": true, "dfn": true, "em": true,
	"i": true, "img": true, "input": true, "kbd": true, "mark": true,
	"q": true, "s": true, "samp": true, "small": true, "span": true,
	"strong": true, "sub": true, "sup": true, "time": true, "u": true,
	"var": true, "wbr": true,
}

// Elements kept on one line with their inline content.
var compactElements = map[string]bool{
	"title": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "p": true, "li": true, "td": true, "th": true, "option": true,
	"label": true, "button": true, "dt": true, "dd": true, "figcaption": true,
	"caption": true, "legend": true, "summary": true,
}

// Elements whose content is copied byte for byte.
var preservedElements = map[string]bool{
	"pre": true, "textarea": true, "script": true, "style": true,
}

// Start tags that end an open p.
var closesParagraph = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"details": true, "div": true, "dl": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "main": true, "menu": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"ul": true,
}

// impliedEnd lists the open elements a start tag closes without an end
// tag, searched no further down than the nearest scope element.
type impliedEnd struct {
	closes []string
	scope  []string
}

var impliedEnds = map[string]impliedEnd{
	"li":     {closes: []string{"li"}, scope: []string{"ul", "ol", "menu"}},
	"dt":     {closes: []string{"dt", "dd"}, scope: []string{"dl"}},
	"dd":     {closes: []string{"dt", "dd"}, scope: []string{"dl"}},
	"option": {closes: []string{"option"}, scope: []string{"select", "datalist", "optgroup"}},
	"tr":     {closes: []string{"tr", "td", "th"}, scope: []string{"table", "thead", "tbody", "tfoot"}},
	"td":     {closes: []string{"td", "th"}, scope: []string{"tr", "table"}},
	"th":     {closes: []string{"td", "th"}, scope: []string{"tr", "table"}},
}

// HTMLFormatter re-indents markup by element nesting depth. Block elements
// go on their own line, inline elements and text flow within a line, and
// the bodies of pre, textarea, script and style are left untouched.
// Formatting is idempotent.
type HTMLFormatter struct {
	Indent string
}

// NewHTMLFormatter returns a formatter indenting with two spaces.
func NewHTMLFormatter() *HTMLFormatter {
	return &HTMLFormatter{Indent: "  "}
}

// Name returns the transformer name.
func (f *HTMLFormatter) Name() string {
	return "format-html"
}

// Transform formats the asset's markup.
func (f *HTMLFormatter) Transform(_ context.Context, in *Asset) (*Asset, error) {
	out, err := f.Format(in.Data)
	if err != nil {
		return nil, err
	}
	return &Asset{Name: in.Name, Source: in.Source, Data: out}, nil
}

type htmlWriter struct {
	indent    string
	out       bytes.Buffer
	line      bytes.Buffer
	lineDepth int
	// open holds the indenting elements not yet closed, outermost first.
	open []string
}

func (w *htmlWriter) depth() int {
	return len(w.open)
}

// popTo drops open[i:] without writing end tags, finishing the line of any
// compact element among them.
func (w *htmlWriter) popTo(i int) {
	for len(w.open) > i {
		if compactElements[w.open[len(w.open)-1]] {
			w.flush()
		}
		w.open = w.open[:len(w.open)-1]
	}
}

// lastOpen returns the index of the innermost open tag, or -1.
func (w *htmlWriter) lastOpen(tag string) int {
	for i := len(w.open) - 1; i >= 0; i-- {
		if w.open[i] == tag {
			return i
		}
	}
	return -1
}

// closeImplied ends the open elements that a start tag of tag closes
// implicitly, such as a previous li or an unterminated p.
func (w *htmlWriter) closeImplied(tag string) {
	if closesParagraph[tag] && len(w.open) > 0 && w.open[len(w.open)-1] == "p" {
		w.popTo(len(w.open) - 1)
	}
	rule, ok := impliedEnds[tag]
	if !ok {
		return
	}
	found := -1
	for i := len(w.open) - 1; i >= 0; i-- {
		if slices.Contains(rule.scope, w.open[i]) {
			break
		}
		if slices.Contains(rule.closes, w.open[i]) {
			found = i
		}
	}
	if found >= 0 {
		w.popTo(found)
	}
}

func (w *htmlWriter) pad(depth int) {
	if depth < 0 {
		depth = 0
	}
	w.out.WriteString(strings.Repeat(w.indent, depth))
}

func (w *htmlWriter) appendInline(s string) {
	if w.line.Len() == 0 {
		s = strings.TrimLeft(s, " ")
		if s == "" {
			return
		}
		w.lineDepth = w.depth()
	}
	w.line.WriteString(s)
}

func (w *htmlWriter) flush() {
	text := strings.TrimRight(w.line.String(), " ")
	w.line.Reset()
	if text == "" {
		return
	}
	w.pad(w.lineDepth)
	w.out.WriteString(text)
	w.out.WriteByte('\n')
}

func (w *htmlWriter) writeLine(depth int, s string) {
	w.pad(depth)
	w.out.WriteString(s)
	w.out.WriteByte('\n')
}

// Format returns the formatted document.
func (f *HTMLFormatter) Format(src []byte) ([]byte, error) {
	w := &htmlWriter{indent: f.Indent}
	z := html.NewTokenizer(bytes.NewReader(src))

	preserving := ""
	preserveNest := 0
	var preserved bytes.Buffer

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				break
			}
			return nil, z.Err()
		}
		raw := string(z.Raw())

		if preserving != "" {
			name, _ := z.TagName()
			if string(name) == preserving {
				switch tt {
				case html.StartTagToken:
					preserveNest++
				case html.EndTagToken:
					preserveNest--
				}
			}
			preserved.WriteString(raw)
			if preserveNest == 0 {
				w.out.WriteString(preserved.String())
				w.out.WriteByte('\n')
				preserved.Reset()
				preserving = ""
			}
			continue
		}

		switch tt {
		case html.DoctypeToken, html.CommentToken:
			w.flush()
			w.writeLine(w.depth(), raw)

		case html.TextToken:
			text := collapseSpace(raw)
			if text != "" {
				w.appendInline(text)
			}

		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if inlineElements[tag] {
				w.appendInline(raw)
				continue
			}
			w.flush()
			w.writeLine(w.depth(), raw)

		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if inlineElements[tag] {
				w.appendInline(raw)
				continue
			}
			w.closeImplied(tag)
			switch {
			case preservedElements[tag]:
				w.flush()
				w.pad(w.depth())
				preserved.WriteString(raw)
				preserving = tag
				preserveNest = 1
			case voidElements[tag]:
				w.flush()
				w.writeLine(w.depth(), raw)
			case compactElements[tag]:
				w.flush()
				w.lineDepth = w.depth()
				w.line.WriteString(raw)
				w.open = append(w.open, tag)
			default:
				w.flush()
				w.writeLine(w.depth(), raw)
				w.open = append(w.open, tag)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if inlineElements[tag] {
				w.appendInline(raw)
				continue
			}
			i := w.lastOpen(tag)
			if i < 0 {
				// Stray end tag: keep it, nesting is unchanged.
				w.flush()
				w.writeLine(w.depth(), raw)
				continue
			}
			w.popTo(i + 1)
			w.open = w.open[:i]
			if compactElements[tag] && w.line.Len() > 0 {
				w.line.WriteString(raw)
				w.flush()
			} else {
				w.flush()
				w.writeLine(w.depth(), raw)
			}
		}
	}

	if preserved.Len() > 0 {
		w.out.WriteString(preserved.String())
		w.out.WriteByte('\n')
	}
	w.flush()
	return w.out.Bytes(), nil
}

// collapseSpace folds whitespace runs into single spaces, keeping one
// leading or trailing space when the text had any.
func collapseSpace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s != "" {
			return " "
		}
		return ""
	}
	out := strings.Join(fields, " ")
	if isSpace(s[0]) {
		out = " " + out
	}
	if isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}
