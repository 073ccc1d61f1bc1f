package transform

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/conneroisu/assetpipe/internal/errors"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	return root
}

func runInclude(t *testing.T, inc *Include, root, name string) (*Asset, error) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(name))
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return inc.Transform(context.Background(), &Asset{Name: filepath.Base(p), Source: p, Data: data})
}

func TestIncludeRelativeToFile(t *testing.T) {
	root := writeTree(t, map[string]string{
		"html/index.html":           "<body>@@include('partials/header.html')</body>",
		"html/partials/header.html": "<header>@@include('nav.html')</header>",
		"html/partials/nav.html":    "<nav></nav>",
	})

	out, err := runInclude(t, NewInclude("@@"), root, "html/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<body><header><nav></nav></header></body>", string(out.Data))
}

func TestIncludeWithParameters(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html": `@@include("head.html", {"title": "Home", "titleSuffix": " | Site", "count": 3})`,
		"head.html":  "<title>@@title@@titleSuffix</title><i>@@count</i>@@include('inner.html')",
		"inner.html": "<b>@@title</b>",
	})

	out, err := runInclude(t, NewInclude("@@"), root, "index.html")
	require.NoError(t, err)
	assert.Equal(t, "<title>Home | Site</title><i>3</i><b>Home</b>", string(out.Data))
}

func TestIncludeNestedParameters(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html": `@@include("card.html", {"site": {"name": "Blog", "meta": {"lang": "en"}}})`,
		"card.html":  `<h1>@@site.name</h1><p lang="@@site.meta.lang">@@site.meta</p>`,
	})

	out, err := runInclude(t, NewInclude("@@"), root, "index.html")
	require.NoError(t, err)
	assert.Equal(t, `<h1>Blog</h1><p lang="en">{"lang":"en"}</p>`, string(out.Data))
}

func TestSetVarReplacesNestedKeys(t *testing.T) {
	vars := map[string]interface{}{}
	setVar(vars, "site", map[string]interface{}{"name": "A", "tag": "t"})
	assert.Equal(t, "A", vars["site.name"])
	assert.Equal(t, "t", vars["site.tag"])

	setVar(vars, "site", map[string]interface{}{"name": "B"})
	assert.Equal(t, "B", vars["site.name"])
	assert.NotContains(t, vars, "site.tag")
}

func TestIncludeParametersWithBracesInStrings(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html": `@@include('p.html', {"text": "a } b { c"})`,
		"p.html":     "<p>@@text</p>",
	})

	out, err := runInclude(t, NewInclude("@@"), root, "index.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>a } b { c</p>", string(out.Data))
}

func TestIncludeMarkdown(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html":       "<main>@@include('content/intro.md', {\"name\": \"World\"})</main>",
		"content/intro.md": "# Hello @@name\n\nSome *text*.\n",
	})

	out, err := runInclude(t, NewInclude("@@"), root, "index.html")
	require.NoError(t, err)
	assert.Contains(t, string(out.Data), "<h1>Hello World</h1>")
	assert.Contains(t, string(out.Data), "<em>text</em>")
}

func TestIncludeScriptPrefix(t *testing.T) {
	root := writeTree(t, map[string]string{
		"dev/main.js":         "//@@include('modules/util.js')\nmain();\n",
		"dev/modules/util.js": "function main() {}",
	})

	out, err := runInclude(t, NewInclude("//@@"), root, "dev/main.js")
	require.NoError(t, err)
	assert.Equal(t, "function main() {}\nmain();\n", string(out.Data))
}

func TestIncludeCycle(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.html": "@@include('b.html')",
		"b.html": "@@include('a.html')",
	})

	_, err := runInclude(t, NewInclude("@@"), root, "a.html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), perrors.ErrCodeIncludeCycle)
}

func TestIncludeMissingFile(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.html": "@@include('missing.html')",
	})

	_, err := runInclude(t, NewInclude("@@"), root, "a.html")
	require.Error(t, err)
	assert.True(t, perrors.IsType(err, perrors.ErrorTypeIO))
}

func TestIncludeMalformed(t *testing.T) {
	testCases := map[string]string{
		"unquoted":      "@@include(a.html)",
		"unterminated":  "@@include('a.html",
		"no paren":      "@@include('a.html'",
		"bad json":      "@@include('a.html', {\"x\": })",
		"unbalanced":    "@@include('a.html', {\"x\": 1)",
		"params no obj": "@@include('a.html', 42)",
	}

	for name, content := range testCases {
		t.Run(name, func(t *testing.T) {
			root := writeTree(t, map[string]string{"index.html": content, "a.html": "x"})
			_, err := runInclude(t, NewInclude("@@"), root, "index.html")
			require.Error(t, err)
			assert.True(t, perrors.IsType(err, perrors.ErrorTypeTransform))
		})
	}
}

func TestIncludeWithoutDirectivesIsUnchanged(t *testing.T) {
	root := writeTree(t, map[string]string{"index.html": "<p>email@@example</p>"})

	out, err := runInclude(t, NewInclude("@@"), root, "index.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>email@@example</p>", string(out.Data))
}
