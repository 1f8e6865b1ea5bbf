package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert_ProseThenCode(t *testing.T) {
	src := "A paragraph about the DAO pattern.\n\n```go\ntype DAO interface{}\n```\n"
	out, err := Convert([]byte(src), Options{})
	require.NoError(t, err)

	html := string(out)
	proseIdx := strings.Index(html, "A paragraph about the DAO pattern.")
	codeIdx := strings.Index(html, "type DAO interface{}")
	require.GreaterOrEqual(t, proseIdx, 0, "prose missing from output")
	require.GreaterOrEqual(t, codeIdx, 0, "code missing from output")
	assert.Less(t, proseIdx, codeIdx, "prose must precede code, matching source order")
	assert.Contains(t, html, "<pre>")
}

func TestConvert_GFMTable(t *testing.T) {
	src := "| Code | Meaning |\n|------|---------|\n| 404  | Not Found |\n"
	out, err := Convert([]byte(src), Options{})
	require.NoError(t, err)
	assert.Contains(t, string(out), "<table>")
	assert.Contains(t, string(out), "Not Found")
}

func TestConvert_RawHTML(t *testing.T) {
	src := "<div class=\"callout\">note</div>\n"

	safe, err := Convert([]byte(src), Options{})
	require.NoError(t, err)
	assert.NotContains(t, string(safe), "<div class=\"callout\">")

	unsafe, err := Convert([]byte(src), Options{Unsafe: true})
	require.NoError(t, err)
	assert.Contains(t, string(unsafe), "<div class=\"callout\">")
}

func TestConvert_Deterministic(t *testing.T) {
	src := "# Title\n\nSome *prose* with a [link](other.html).\n"
	a, err := Convert([]byte(src), Options{})
	require.NoError(t, err)
	b, err := Convert([]byte(src), Options{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExtractTitle(t *testing.T) {
	title, ok := ExtractTitle([]byte("# Dependency Injection\n\nBody.\n"))
	require.True(t, ok)
	assert.Equal(t, "Dependency Injection", title)

	_, ok = ExtractTitle([]byte("no heading here\n"))
	assert.False(t, ok)

	title, ok = ExtractTitle([]byte("## second level first\n\n# Real Title\n"))
	require.True(t, ok)
	assert.Equal(t, "Real Title", title)
}
