package site

import (
	"os"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	fe "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/bookbuilder/internal/freeze"
	"git.home.luguber.info/inful/bookbuilder/internal/frontmatter"
	"git.home.luguber.info/inful/bookbuilder/internal/markdown"
	"git.home.luguber.info/inful/bookbuilder/internal/notebook"
)

// RenderedChapter is a chapter after content rendering: the HTML fragment,
// the resolved title, and the content fingerprint used by the freeze store.
type RenderedChapter struct {
	Chapter     book.Chapter
	Title       string
	HTML        []byte
	Fingerprint string
	FromCache   bool
}

// ChapterRenderer turns chapter source files into HTML fragments.
type ChapterRenderer struct {
	opts markdown.Options
}

// NewChapterRenderer constructs a renderer with the given Markdown options.
func NewChapterRenderer(opts markdown.Options) *ChapterRenderer {
	return &ChapterRenderer{opts: opts}
}

// Render reads and converts a single chapter. Failures are classified render
// errors carrying the chapter's manifest-relative path; the caller decides
// whether one bad chapter sinks the build.
func (r *ChapterRenderer) Render(ch book.Chapter) (*RenderedChapter, error) {
	content, err := os.ReadFile(ch.AbsPath)
	if err != nil {
		return nil, fe.WrapError(err, fe.CategoryFileSystem, "read chapter").
			WithContext("path", ch.Path).Build()
	}
	return r.RenderContent(ch, content)
}

// RenderContent converts already-read chapter content. The build pipeline
// uses this form since it reads each file once for fingerprinting.
func (r *ChapterRenderer) RenderContent(ch book.Chapter, content []byte) (*RenderedChapter, error) {
	switch ch.Kind {
	case book.KindNotebook:
		return r.renderNotebook(ch, content)
	default:
		return r.renderMarkdown(ch, content)
	}
}

func (r *ChapterRenderer) renderMarkdown(ch book.Chapter, content []byte) (*RenderedChapter, error) {
	fm, body, had, err := frontmatter.Split(content)
	if err != nil {
		return nil, fe.WrapError(err, fe.CategoryRender, "split frontmatter").
			WithContext("path", ch.Path).Build()
	}

	title := ch.Title // filename fallback
	if had {
		fields, err := frontmatter.ParseYAML(fm)
		if err != nil {
			return nil, fe.WrapError(err, fe.CategoryRender, "parse frontmatter").
				WithContext("path", ch.Path).Build()
		}
		if t, ok := frontmatter.Title(fields); ok {
			title = t
		}
	}
	if title == ch.Title {
		// No frontmatter title; the first H1 outranks the filename.
		if t, ok := markdown.ExtractTitle(body); ok {
			title = t
		}
	}

	html, err := markdown.Convert(body, r.opts)
	if err != nil {
		return nil, fe.WrapError(err, fe.CategoryRender, "convert markdown").
			WithContext("path", ch.Path).Build()
	}

	return &RenderedChapter{
		Chapter:     ch,
		Title:       title,
		HTML:        html,
		Fingerprint: freeze.Fingerprint(fm, body),
	}, nil
}

func (r *ChapterRenderer) renderNotebook(ch book.Chapter, content []byte) (*RenderedChapter, error) {
	doc, err := notebook.Parse(content)
	if err != nil {
		return nil, fe.WrapError(err, fe.CategoryRender, "parse notebook").
			WithContext("path", ch.Path).Build()
	}

	html, err := notebook.Render(doc, r.opts)
	if err != nil {
		return nil, fe.WrapError(err, fe.CategoryRender, "render notebook").
			WithContext("path", ch.Path).Build()
	}

	title := ch.Title
	if t, ok := notebook.ExtractTitle(doc); ok {
		title = t
	}

	return &RenderedChapter{
		Chapter:     ch,
		Title:       title,
		HTML:        html,
		Fingerprint: freeze.FingerprintBytes(content),
	}, nil
}
