// Package markdown converts chapter bodies to HTML fragments via Goldmark.
package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// Options tunes Markdown conversion. The zero value is the default profile.
type Options struct {
	// Unsafe passes raw HTML blocks through to the output. Developer-notes
	// content embeds raw HTML snippets, so the builder enables this.
	Unsafe bool
}

func newGoldmark(opts Options) goldmark.Markdown {
	rendererOpts := []renderer.Option{}
	if opts.Unsafe {
		rendererOpts = append(rendererOpts, html.WithUnsafe())
	}
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Footnote),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(rendererOpts...),
	)
}

// Convert renders a Markdown body (frontmatter already removed) to an HTML
// fragment. Source ordering of prose and fenced code blocks is preserved by
// construction.
func Convert(body []byte, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := newGoldmark(opts).Convert(body, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExtractTitle returns the text of the first level-1 heading, if any.
func ExtractTitle(body []byte) (string, bool) {
	md := newGoldmark(Options{})
	root := md.Parser().Parse(text.NewReader(body))

	var title string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if h, ok := n.(*gmast.Heading); ok && h.Level == 1 {
			var sb bytes.Buffer
			for c := h.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*gmast.Text); ok {
					sb.Write(t.Segment.Value(body))
				}
			}
			title = sb.String()
			return gmast.WalkStop, nil
		}
		return gmast.WalkContinue, nil
	})
	return title, title != ""
}
