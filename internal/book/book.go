// Package book holds the in-memory model of a manifest-driven book: parts,
// chapters, and the navigation tree derived from them.
package book

import (
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/bookbuilder/internal/config"
)

// ChapterKind discriminates the supported content file types.
type ChapterKind string

const (
	KindMarkdown ChapterKind = "markdown"
	KindNotebook ChapterKind = "notebook"
)

// Chapter is a single content file rendered to one output page.
//
// Path is the manifest-relative reference (slash separated, the unique key);
// AbsPath the resolved filesystem location; OutputPath the site-relative HTML
// page the chapter renders to.
type Chapter struct {
	Path       string
	AbsPath    string
	OutputPath string
	Kind       ChapterKind
	Title      string // filename-derived default; renderers override from content
}

// Part is a named group of chapters in manifest order.
type Part struct {
	Title    string
	Chapters []Chapter
}

// Book is the fully resolved model built from a validated manifest.
type Book struct {
	Title        string
	Author       string
	Date         string
	RepoURL      string
	SiteURL      string
	Bibliography string
	Parts        []Part
}

// FromManifest resolves a validated manifest into a Book. Ordering is
// preserved verbatim: parts and chapters appear exactly as declared.
func FromManifest(m *config.Manifest, baseDir string) *Book {
	b := &Book{
		Title:        m.Book.Title,
		Author:       m.Book.Author,
		Date:         m.Book.Date,
		RepoURL:      m.Book.RepoURL,
		SiteURL:      m.Book.SiteURL,
		Bibliography: m.Book.Bibliography,
	}
	for _, p := range m.Book.Parts {
		part := Part{Title: p.Title}
		for _, c := range p.Chapters {
			part.Chapters = append(part.Chapters, newChapter(c, baseDir))
		}
		b.Parts = append(b.Parts, part)
	}
	return b
}

// Chapters returns all chapters in manifest order.
func (b *Book) Chapters() []Chapter {
	var all []Chapter
	for _, p := range b.Parts {
		all = append(all, p.Chapters...)
	}
	return all
}

func newChapter(ref, baseDir string) Chapter {
	return Chapter{
		Path:       ref,
		AbsPath:    filepath.Join(baseDir, filepath.FromSlash(ref)),
		OutputPath: OutputPathFor(ref),
		Kind:       kindFor(ref),
		Title:      titleFromFilename(ref),
	}
}

func kindFor(ref string) ChapterKind {
	if strings.EqualFold(path.Ext(ref), ".ipynb") {
		return KindNotebook
	}
	return KindMarkdown
}

// OutputPathFor maps a chapter reference to its site-relative HTML page.
// Directory structure is preserved; each segment is slugified.
func OutputPathFor(ref string) string {
	dir, file := path.Split(ref)
	base := strings.TrimSuffix(file, path.Ext(file))

	segments := []string{}
	for _, seg := range strings.Split(strings.Trim(dir, "/"), "/") {
		if seg == "" {
			continue
		}
		segments = append(segments, Slugify(seg))
	}
	segments = append(segments, Slugify(base)+".html")
	return path.Join(segments...)
}

// titleFromFilename derives a fallback title from the file name:
// "getting-started.md" becomes "Getting Started".
func titleFromFilename(ref string) string {
	base := strings.TrimSuffix(path.Base(ref), path.Ext(ref))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
