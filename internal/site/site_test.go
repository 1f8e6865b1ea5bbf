package site

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bookbuilder/internal/config"
	fe "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/bookbuilder/internal/freeze"
)

const twoPartManifest = `
book:
  title: Developer Notes
  author: Dev
  date: "2024-01-02"
  parts:
    - title: Getting Started
      chapters:
        - index.md
    - title: Patterns
      chapters:
        - patterns/dao.md
        - patterns/di.md
output:
  directory: site
`

func writeFixture(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func defaultFixture(t *testing.T) (string, *config.Manifest) {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, dir, map[string]string{
		"index.md":        "# Welcome\n\nStart here.\n",
		"patterns/dao.md": "---\ntitle: Data Access Objects\n---\n\nProse first.\n\n```java\nclass Dao {}\n```\n\nProse after.\n",
		"patterns/di.md":  "# Dependency Injection\n\nWiring things.\n",
	})
	m, err := config.Parse([]byte(twoPartManifest))
	require.NoError(t, err)
	return dir, m
}

func readSiteFile(t *testing.T, siteDir, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(siteDir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(b)
}

func TestBuildSiteTwoPartNavigation(t *testing.T) {
	dir, m := defaultFixture(t)
	g := NewGenerator(m, dir)

	report, err := g.BuildSite(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, report.OutcomeT)
	assert.Equal(t, 3, report.RenderedPages)

	siteDir := filepath.Join(dir, "site")
	index := readSiteFile(t, siteDir, "index.html")

	// Every chapter page exists at its slugified path.
	assert.FileExists(t, filepath.Join(siteDir, "index.html"))
	assert.FileExists(t, filepath.Join(siteDir, "patterns", "dao.html"))
	assert.FileExists(t, filepath.Join(siteDir, "patterns", "di.html"))

	// Navigation mirrors manifest order: parts, then chapters within parts.
	gettingStarted := strings.Index(index, "Getting Started")
	patterns := strings.Index(index, "Patterns")
	welcome := strings.Index(index, "Welcome")
	dao := strings.Index(index, "Data Access Objects")
	di := strings.Index(index, "Dependency Injection")
	require.True(t, gettingStarted >= 0 && patterns >= 0 && welcome >= 0 && dao >= 0 && di >= 0)
	assert.Less(t, gettingStarted, patterns)
	assert.Less(t, welcome, dao)
	assert.Less(t, dao, di)

	// Nav titles: frontmatter beats first H1 beats filename.
	assert.Contains(t, index, "Data Access Objects")
	assert.NotContains(t, index, ">Dao<")

	// Chapter pages link back with page-relative hrefs.
	daoPage := readSiteFile(t, siteDir, "patterns/dao.html")
	assert.Contains(t, daoPage, `href="../index.html"`)
	assert.Contains(t, daoPage, `href="../patterns/di.html"`)
	assert.Contains(t, daoPage, `class="active"`)
}

func TestBuildSiteProseCodeOrderPreserved(t *testing.T) {
	dir, m := defaultFixture(t)
	g := NewGenerator(m, dir)

	_, err := g.BuildSite(context.Background())
	require.NoError(t, err)

	page := readSiteFile(t, filepath.Join(dir, "site"), "patterns/dao.html")
	before := strings.Index(page, "Prose first.")
	code := strings.Index(page, "class Dao")
	after := strings.Index(page, "Prose after.")
	require.True(t, before >= 0 && code >= 0 && after >= 0)
	assert.Less(t, before, code)
	assert.Less(t, code, after)
}

func TestBuildSiteIdempotent(t *testing.T) {
	dir, m := defaultFixture(t)
	siteDir := filepath.Join(dir, "site")

	_, err := NewGenerator(m, dir).BuildSite(context.Background())
	require.NoError(t, err)

	// Pages and assets must be byte-identical across runs. The build report
	// carries timings and is exempt.
	first := map[string][]byte{}
	for _, rel := range []string{"index.html", "patterns/dao.html", "patterns/di.html", "style.css"} {
		b, err := os.ReadFile(filepath.Join(siteDir, filepath.FromSlash(rel)))
		require.NoError(t, err)
		first[rel] = b
	}

	_, err = NewGenerator(m, dir).BuildSite(context.Background())
	require.NoError(t, err)

	for rel, want := range first {
		got, err := os.ReadFile(filepath.Join(siteDir, filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Equal(t, want, got, "%s changed between identical builds", rel)
	}
}

func TestBuildSiteMissingChapterFatal(t *testing.T) {
	dir, m := defaultFixture(t)
	m.Book.Parts[1].Chapters = append(m.Book.Parts[1].Chapters, "patterns/ghost.md")

	report, err := NewGenerator(m, dir).BuildSite(context.Background())
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, report.OutcomeT)

	var ce *fe.ClassifiedError
	require.True(t, stderrors.As(err, &ce))
	assert.Equal(t, fe.CategoryReference, ce.Category())
	assert.Equal(t, "patterns/ghost.md", ce.Context()["path"])
	assert.Contains(t, err.Error(), "patterns/ghost.md")

	// Fatal resolution failure means no pages at all: the previous output
	// (none here) is left untouched.
	assert.NoFileExists(t, filepath.Join(dir, "site", "patterns", "di.html"))
	assert.NoDirExists(t, filepath.Join(dir, "site_stage"))
}

func TestBuildSitePartialFailureIsolation(t *testing.T) {
	dir, m := defaultFixture(t)
	writeFixture(t, dir, map[string]string{"patterns/broken.ipynb": "{not json"})
	m.Book.Parts[1].Chapters = append(m.Book.Parts[1].Chapters, "patterns/broken.ipynb")

	report, err := NewGenerator(m, dir).BuildSite(context.Background())
	require.NoError(t, err, "one bad chapter must not abort the build")
	assert.Equal(t, OutcomeFailed, report.OutcomeT)

	require.Len(t, report.FailedChapters, 1)
	assert.Equal(t, "patterns/broken.ipynb", report.FailedChapters[0].Path)
	assert.NotEmpty(t, report.FailedChapters[0].Reason)

	// The healthy chapters still rendered and the site was promoted.
	siteDir := filepath.Join(dir, "site")
	assert.FileExists(t, filepath.Join(siteDir, "patterns", "dao.html"))
	assert.FileExists(t, filepath.Join(siteDir, "patterns", "di.html"))
	assert.NoFileExists(t, filepath.Join(siteDir, "patterns", "broken.html"))

	// And the failed chapter is absent from navigation.
	index := readSiteFile(t, siteDir, "index.html")
	assert.NotContains(t, index, "broken")
}

func TestBuildSiteFreezeReuse(t *testing.T) {
	dir, m := defaultFixture(t)
	m.Format.HTML.Freeze = config.FreezeAuto

	store, err := freeze.NewStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	report1, err := NewGenerator(m, dir, WithFreezeStore(store)).BuildSite(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report1.RenderedPages)
	assert.Equal(t, 0, report1.CachedPages)

	// Drop the output so the rebuild exercises the render cache instead of
	// the signature short-circuit.
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "site")))

	report2, err := NewGenerator(m, dir, WithFreezeStore(store)).BuildSite(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report2.RenderedPages)
	assert.Equal(t, 3, report2.CachedPages)

	// Editing one chapter invalidates exactly that chapter.
	writeFixture(t, dir, map[string]string{"index.md": "# Welcome\n\nEdited.\n"})
	report3, err := NewGenerator(m, dir, WithFreezeStore(store)).BuildSite(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report3.RenderedPages)
	assert.Equal(t, 2, report3.CachedPages)
}

func TestBuildSiteSkipsUnchangedRebuild(t *testing.T) {
	dir, m := defaultFixture(t)
	m.Format.HTML.Freeze = config.FreezeAuto

	store, err := freeze.NewStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = NewGenerator(m, dir, WithFreezeStore(store)).BuildSite(context.Background())
	require.NoError(t, err)

	marker := filepath.Join(dir, "site", "patterns", "dao.html")
	before, err := os.Stat(marker)
	require.NoError(t, err)

	// Nothing changed: the build signature matches and the pipeline stops
	// without touching the existing output.
	report, err := NewGenerator(m, dir, WithFreezeStore(store)).BuildSite(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SkipNoChanges, report.SkipReason)
	assert.Equal(t, OutcomeSuccess, report.OutcomeT)
	assert.Equal(t, 0, report.RenderedPages)
	assert.Equal(t, 0, report.CachedPages)

	after, err := os.Stat(marker)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "skipped build must not rewrite pages")
	assert.NoDirExists(t, filepath.Join(dir, "site_stage"))

	// Editing a chapter invalidates the signature and the build runs again.
	writeFixture(t, dir, map[string]string{"index.md": "# Welcome\n\nEdited.\n"})
	report3, err := NewGenerator(m, dir, WithFreezeStore(store)).BuildSite(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report3.SkipReason)
	assert.Equal(t, 1, report3.RenderedPages)
	assert.Equal(t, 2, report3.CachedPages)
}

func TestBuildSiteAssetsAndBrokenLinks(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, map[string]string{
		"index.md":        "# Welcome\n\n![diagram](img/arch.png)\n\n[missing](nowhere.html)\n",
		"img/arch.png":    "fake-png-bytes",
		"refs.bib":        "@book{x}",
		"patterns/dao.md": "# DAO\n",
		"patterns/di.md":  "# DI\n",
	})
	m, err := config.Parse([]byte(twoPartManifest))
	require.NoError(t, err)
	m.Book.Bibliography = "refs.bib"

	report, err := NewGenerator(m, dir).BuildSite(context.Background())
	require.NoError(t, err)

	siteDir := filepath.Join(dir, "site")
	assert.FileExists(t, filepath.Join(siteDir, "img", "arch.png"))
	assert.FileExists(t, filepath.Join(siteDir, "refs.bib"))

	assert.Equal(t, OutcomeWarning, report.OutcomeT)
	assert.Equal(t, 1, report.BrokenLinks)
	require.NotEmpty(t, report.Issues)
	found := false
	for _, issue := range report.Issues {
		if issue.Code == IssueBrokenLink {
			found = true
			assert.Contains(t, issue.Message, "nowhere.html")
		}
	}
	assert.True(t, found)
}

func TestBuildSiteGeneratedIndex(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, map[string]string{
		"patterns/dao.md": "# DAO\n",
		"patterns/di.md":  "# DI\n",
	})
	m, err := config.Parse([]byte(`
book:
  title: Developer Notes
  parts:
    - title: Patterns
      chapters:
        - patterns/dao.md
        - patterns/di.md
`))
	require.NoError(t, err)

	_, err = NewGenerator(m, dir).BuildSite(context.Background())
	require.NoError(t, err)

	// No chapter claims index.html, so the builder emits a landing page.
	index := readSiteFile(t, filepath.Join(dir, "site"), "index.html")
	assert.Contains(t, index, "<h1>Developer Notes</h1>")
	assert.Contains(t, index, `href="patterns/dao.html"`)
}

func TestBuildSitePersistsReport(t *testing.T) {
	dir, m := defaultFixture(t)

	report, err := NewGenerator(m, dir).BuildSite(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, report.BuildID)

	siteDir := filepath.Join(dir, "site")
	assert.FileExists(t, filepath.Join(siteDir, "build-report.json"))
	txt := readSiteFile(t, siteDir, "build-report.txt")
	assert.Contains(t, txt, "outcome=success")
	assert.Contains(t, txt, "chapters=3")
}

func TestResolveDate(t *testing.T) {
	m, _ := config.Parse([]byte(twoPartManifest))
	assert.Equal(t, "2024-01-02", m.Book.Date)

	bc := newBuildContext(t.TempDir(), "today")
	assert.NotEqual(t, "today", bc.Date)
	assert.NotEmpty(t, bc.Date)

	bc = newBuildContext(t.TempDir(), "March 1, 2020")
	assert.Equal(t, "March 1, 2020", bc.Date)
}

func TestRootPrefix(t *testing.T) {
	assert.Equal(t, "", rootPrefix("index.html"))
	assert.Equal(t, "../", rootPrefix("patterns/dao.html"))
	assert.Equal(t, "../../", rootPrefix("a/b/c.html"))
}
