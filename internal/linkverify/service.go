package linkverify

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// BrokenLink describes an internal link whose target file does not exist in
// the generated site.
type BrokenLink struct {
	Page   string // site-relative page the link appears on
	Target string // the raw link target
	Text   string // link text, for reporting
}

// VerifySite walks every HTML page under siteDir and checks internal links
// against the emitted files. External links are not contacted; the builder
// has no business probing the network during a static build.
func VerifySite(siteDir, baseURL string) ([]BrokenLink, error) {
	var pages []string
	err := filepath.WalkDir(siteDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".html") {
			pages = append(pages, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var broken []BrokenLink
	for _, page := range pages {
		rel, err := filepath.Rel(siteDir, page)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)

		links, err := ExtractLinks(page, baseURL)
		if err != nil {
			return nil, err
		}
		for _, l := range links {
			if !l.IsInternal {
				continue
			}
			target := resolveTarget(rel, l.URL)
			if target == "" {
				continue
			}
			if _, statErr := os.Stat(filepath.Join(siteDir, filepath.FromSlash(target))); statErr != nil {
				broken = append(broken, BrokenLink{Page: rel, Target: l.URL, Text: l.Text})
			}
		}
	}
	return broken, nil
}

// resolveTarget resolves a link target against the page it appears on,
// returning a site-relative path, or empty when the target is not a file
// reference (pure fragments, queries on the same page).
func resolveTarget(page, raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return ""
	}
	p := u.Path
	if strings.HasPrefix(p, "/") {
		return strings.TrimPrefix(path.Clean(p), "/")
	}
	return path.Clean(path.Join(path.Dir(page), p))
}
