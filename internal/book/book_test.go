package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bookbuilder/internal/config"
)

func twoPartManifest(t *testing.T) *config.Manifest {
	t.Helper()
	m, err := config.Parse([]byte(`
book:
  title: Notes
  parts:
    - title: Part A
      chapters: [chapterX.md]
    - title: Part B
      chapters: [chapterY.md, chapterZ.ipynb]
`))
	require.NoError(t, err)
	return m
}

func TestFromManifest_PreservesOrder(t *testing.T) {
	b := FromManifest(twoPartManifest(t), "/src")

	require.Len(t, b.Parts, 2)
	assert.Equal(t, "Part A", b.Parts[0].Title)
	assert.Equal(t, "Part B", b.Parts[1].Title)
	require.Len(t, b.Parts[1].Chapters, 2)
	assert.Equal(t, "chapterY.md", b.Parts[1].Chapters[0].Path)
	assert.Equal(t, "chapterZ.ipynb", b.Parts[1].Chapters[1].Path)
	assert.Equal(t, KindMarkdown, b.Parts[1].Chapters[0].Kind)
	assert.Equal(t, KindNotebook, b.Parts[1].Chapters[1].Kind)
}

func TestBuildNav_MirrorsManifestOrder(t *testing.T) {
	b := FromManifest(twoPartManifest(t), "/src")
	nav := BuildNav(b)

	require.Len(t, nav.Groups, 2)
	assert.Equal(t, "Part A", nav.Groups[0].Title)
	require.Len(t, nav.Groups[0].Leaves, 1)
	assert.Equal(t, "chapterx.html", nav.Groups[0].Leaves[0].Href)

	assert.Equal(t, "Part B", nav.Groups[1].Title)
	require.Len(t, nav.Groups[1].Leaves, 2)
	assert.Equal(t, "chaptery.html", nav.Groups[1].Leaves[0].Href)
	assert.Equal(t, "chapterz.html", nav.Groups[1].Leaves[1].Href)
}

func TestOutputPathFor(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"index.md", "index.html"},
		{"patterns/dao.md", "patterns/dao.html"},
		{"HTTP Status Codes.md", "http-status-codes.html"},
		{"notebooks/ssh demo.ipynb", "notebooks/ssh-demo.html"},
		{"Guides/Résumé.md", "guides/resume.html"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, OutputPathFor(c.in), "input %q", c.in)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":      "hello-world",
		"Résumé":           "resume",
		"v1.2 Release":     "v1.2-release",
		"  spaces  ":       "spaces",
		"UPPER_case-mixed": "upper-case-mixed",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestTitleFromFilename(t *testing.T) {
	b := FromManifest(twoPartManifest(t), "/src")
	assert.Equal(t, "ChapterX", b.Parts[0].Chapters[0].Title)

	c := newChapter("guides/getting-started.md", "/src")
	assert.Equal(t, "Getting Started", c.Title)
}
