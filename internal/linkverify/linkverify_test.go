package linkverify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLinksFromReader(t *testing.T) {
	page := `<html><body>
		<a href="patterns/dao.html">DAO</a>
		<a href="https://external.example.com/doc">external</a>
		<a href="#section">anchor</a>
		<a href="mailto:dev@example.com">mail</a>
		<img src="img/diagram.png" alt="diagram">
		<link rel="stylesheet" href="style.css">
	</body></html>`

	links, err := ExtractLinksFromReader(strings.NewReader(page), "https://notes.example.com")
	require.NoError(t, err)

	byURL := map[string]*Link{}
	for _, l := range links {
		byURL[l.URL] = l
	}

	require.Contains(t, byURL, "patterns/dao.html")
	assert.True(t, byURL["patterns/dao.html"].IsInternal)
	assert.Equal(t, "DAO", byURL["patterns/dao.html"].Text)

	require.Contains(t, byURL, "https://external.example.com/doc")
	assert.False(t, byURL["https://external.example.com/doc"].IsInternal)

	assert.NotContains(t, byURL, "#section", "pure anchors are skipped")
	assert.NotContains(t, byURL, "mailto:dev@example.com")

	require.Contains(t, byURL, "img/diagram.png")
	assert.Equal(t, "img", byURL["img/diagram.png"].Tag)
	require.Contains(t, byURL, "style.css")
	assert.Equal(t, "stylesheet", byURL["style.css"].Text)
}

func TestVerifySite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "patterns"), 0755))

	index := `<html><body>
		<a href="patterns/dao.html">ok</a>
		<a href="patterns/missing.html">broken</a>
		<a href="https://external.example.com/">skip</a>
	</body></html>`
	dao := `<html><body><a href="../index.html">up</a></body></html>`

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "patterns", "dao.html"), []byte(dao), 0644))

	broken, err := VerifySite(dir, "https://notes.example.com")
	require.NoError(t, err)

	require.Len(t, broken, 1)
	assert.Equal(t, "index.html", broken[0].Page)
	assert.Equal(t, "patterns/missing.html", broken[0].Target)
}

func TestResolveTarget(t *testing.T) {
	assert.Equal(t, "patterns/dao.html", resolveTarget("index.html", "patterns/dao.html"))
	assert.Equal(t, "index.html", resolveTarget("patterns/dao.html", "../index.html"))
	assert.Equal(t, "style.css", resolveTarget("deep/nested/page.html", "/style.css"))
	assert.Empty(t, resolveTarget("index.html", "#fragment-only"))
}
