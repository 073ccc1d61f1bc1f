package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"

	perrors "github.com/conneroisu/assetpipe/internal/errors"
)

const maxIncludeDepth = 32

// Include expands include directives of the form
//
//	<prefix>include('relative/path', {"key": "value"})
//
// Paths resolve against the directory of the including file. The optional
// JSON object defines variables referenced as <prefix>key inside the
// included file; nested includes inherit the variables of their parent.
// Included Markdown files (.md, .markdown) are rendered to HTML.
type Include struct {
	Prefix   string
	markdown goldmark.Markdown
}

// NewInclude returns an Include for the given directive prefix, "@@" for
// markup and "//@@" for scripts.
func NewInclude(prefix string) *Include {
	return &Include{
		Prefix:   prefix,
		markdown: goldmark.New(),
	}
}

// Name returns the transformer name.
func (inc *Include) Name() string {
	return "include"
}

// Transform expands every directive in the asset.
func (inc *Include) Transform(ctx context.Context, in *Asset) (*Asset, error) {
	abs, err := filepath.Abs(in.Source)
	if err != nil {
		return nil, err
	}
	out, err := inc.expand(ctx, in.Data, abs, nil, []string{abs})
	if err != nil {
		return nil, err
	}
	return &Asset{Name: in.Name, Source: in.Source, Data: out}, nil
}

func (inc *Include) expand(ctx context.Context, data []byte, file string, vars map[string]interface{}, stack []string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(stack) > maxIncludeDepth {
		return nil, perrors.NewValidationError(perrors.ErrCodeIncludeCycle,
			fmt.Sprintf("include depth exceeds %d", maxIncludeDepth)).WithFile(file)
	}

	data = inc.substitute(data, vars)

	token := []byte(inc.Prefix + "include(")
	var buf bytes.Buffer
	for {
		i := bytes.Index(data, token)
		if i < 0 {
			buf.Write(data)
			break
		}
		buf.Write(data[:i])

		rest := data[i+len(token):]
		target, rawParams, n, err := parseDirective(rest)
		if err != nil {
			return nil, perrors.NewTransformError(inc.Name(), "malformed include directive", err).WithFile(file)
		}
		data = rest[n:]

		childVars, err := mergeVars(vars, rawParams)
		if err != nil {
			return nil, perrors.NewTransformError(inc.Name(), "invalid include parameters", err).WithFile(file)
		}

		childPath := filepath.Join(filepath.Dir(file), filepath.FromSlash(target))
		for _, s := range stack {
			if s == childPath {
				return nil, perrors.NewValidationError(perrors.ErrCodeIncludeCycle,
					"include cycle: "+strings.Join(append(stack, childPath), " -> ")).WithFile(file)
			}
		}

		content, err := os.ReadFile(childPath)
		if err != nil {
			return nil, perrors.NewIOError("read include", err).WithFile(childPath)
		}

		expanded, err := inc.expand(ctx, content, childPath, childVars, append(stack, childPath))
		if err != nil {
			return nil, err
		}

		if isMarkdown(childPath) {
			var md bytes.Buffer
			if err := inc.markdown.Convert(expanded, &md); err != nil {
				return nil, perrors.NewTransformError("markdown", "render failed", err).WithFile(childPath)
			}
			expanded = md.Bytes()
		}

		buf.Write(expanded)
	}

	return buf.Bytes(), nil
}

// substitute replaces <prefix>key with the variable's value. Longer keys
// go first so "@@titleText" is not clobbered by "@@title".
func (inc *Include) substitute(data []byte, vars map[string]interface{}) []byte {
	if len(vars) == 0 {
		return data
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		if k == "include" || k == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	for _, k := range keys {
		data = bytes.ReplaceAll(data, []byte(inc.Prefix+k), []byte(varString(vars[k])))
	}
	return data
}

func varString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

func mergeVars(parent map[string]interface{}, raw []byte) (map[string]interface{}, error) {
	merged := make(map[string]interface{}, len(parent))
	for k, v := range parent {
		merged[k] = v
	}
	if len(raw) == 0 {
		return merged, nil
	}

	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	for k, v := range params {
		setVar(merged, k, v)
	}
	return merged, nil
}

// setVar stores v under key. Nested objects are also stored under dotted
// keys ("obj.key"), replacing any left from an outer include.
func setVar(vars map[string]interface{}, key string, v interface{}) {
	prefix := key + "."
	for k := range vars {
		if strings.HasPrefix(k, prefix) {
			delete(vars, k)
		}
	}
	vars[key] = v
	if obj, ok := v.(map[string]interface{}); ok {
		for k, child := range obj {
			setVar(vars, prefix+k, child)
		}
	}
}

// parseDirective parses the arguments following "include(" and returns the
// target path, the raw JSON parameters (possibly empty) and the number of
// bytes consumed including the closing parenthesis.
func parseDirective(s []byte) (string, []byte, int, error) {
	i := skipSpace(s, 0)
	if i >= len(s) || (s[i] != '\'' && s[i] != '"') {
		return "", nil, 0, fmt.Errorf("expected quoted path")
	}
	quote := s[i]
	end := bytes.IndexByte(s[i+1:], quote)
	if end < 0 {
		return "", nil, 0, fmt.Errorf("unterminated path")
	}
	target := string(s[i+1 : i+1+end])
	if strings.TrimSpace(target) == "" {
		return "", nil, 0, fmt.Errorf("empty path")
	}
	i = skipSpace(s, i+end+2)

	var raw []byte
	if i < len(s) && s[i] == ',' {
		i = skipSpace(s, i+1)
		if i >= len(s) || s[i] != '{' {
			return "", nil, 0, fmt.Errorf("expected JSON object parameters")
		}
		n, err := matchBraces(s[i:])
		if err != nil {
			return "", nil, 0, err
		}
		raw = s[i : i+n]
		i = skipSpace(s, i+n)
	}

	if i >= len(s) || s[i] != ')' {
		return "", nil, 0, fmt.Errorf("expected closing parenthesis")
	}
	return target, raw, i + 1, nil
}

// matchBraces returns the length of the balanced {...} object at the start
// of s, skipping braces inside JSON strings.
func matchBraces(s []byte) (int, error) {
	depth := 0
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("unbalanced braces in parameters")
}

func skipSpace(s []byte, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func isMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
