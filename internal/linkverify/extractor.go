// Package linkverify extracts links from generated HTML pages and checks
// that internal references resolve to emitted files.
package linkverify

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
)

// Link represents an extracted link from HTML content.
type Link struct {
	URL        string // the URL or path
	Text       string // link text/title
	Tag        string // HTML tag (a, img, link, script)
	Attribute  string // attribute containing the link (href, src)
	IsInternal bool   // true if the link targets the generated site
}

// ExtractLinks extracts all links from an HTML file.
func ExtractLinks(htmlPath string, baseURL string) ([]*Link, error) {
	file, err := os.Open(filepath.Clean(htmlPath))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "open HTML file").
			WithContext("path", htmlPath).Build()
	}
	defer func() {
		_ = file.Close()
	}()

	return ExtractLinksFromReader(file, baseURL)
}

// ExtractLinksFromReader extracts all links from an HTML reader.
func ExtractLinksFromReader(r io.Reader, baseURL string) ([]*Link, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "parse HTML").Build()
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "invalid base URL").
			WithContext("base_url", baseURL).Build()
	}

	var links []*Link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			collectElementLinks(n, &links, base)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func collectElementLinks(n *html.Node, links *[]*Link, base *url.URL) {
	add := func(val, text, attr string) {
		if val == "" {
			return
		}
		*links = append(*links, &Link{
			URL:        val,
			Text:       text,
			Tag:        n.Data,
			Attribute:  attr,
			IsInternal: isInternalLink(val, base),
		})
	}

	switch n.Data {
	case "a":
		add(getAttr(n, "href"), extractText(n), "href")
	case "img":
		add(getAttr(n, "src"), getAttr(n, "alt"), "src")
	case "script":
		add(getAttr(n, "src"), "", "src")
	case "link":
		add(getAttr(n, "href"), getAttr(n, "rel"), "href")
	}
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func extractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text.WriteString(extractText(c))
	}
	return strings.TrimSpace(text.String())
}

func isInternalLink(linkURL string, baseURL *url.URL) bool {
	if strings.HasPrefix(linkURL, "mailto:") ||
		strings.HasPrefix(linkURL, "tel:") ||
		strings.HasPrefix(linkURL, "javascript:") ||
		strings.HasPrefix(linkURL, "#") {
		return false
	}

	u, err := url.Parse(linkURL)
	if err != nil {
		return false
	}
	if u.Scheme == "" && u.Host == "" {
		return true
	}
	return baseURL != nil && baseURL.Host != "" && u.Host == baseURL.Host
}
