package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	fe "git.home.luguber.info/inful/bookbuilder/internal/foundation/errors"
)

// supportedChapterExtensions lists the content file types the renderer
// understands. Anything else in a chapter list is a manifest mistake.
var supportedChapterExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".qmd":      true,
	".ipynb":    true,
}

// Validate checks that every chapter reference resolves to an existing,
// supported content file under baseDir.
//
// Missing chapters are fatal: navigation order is the manifest's core
// contract and cannot be honored around holes (see DESIGN.md for the policy
// decision).
func (m *Manifest) Validate(baseDir string) error {
	for _, p := range m.Book.Parts {
		for _, c := range p.Chapters {
			abs := filepath.Join(baseDir, filepath.FromSlash(c))
			fi, err := os.Stat(abs)
			if err != nil {
				return fe.ReferenceError(fmt.Sprintf("chapter path %q does not resolve", c)).
					WithContext("path", c).
					WithContext("part", p.Title).
					Build()
			}
			if fi.IsDir() {
				return fe.ReferenceError(fmt.Sprintf("chapter path %q is a directory", c)).
					WithContext("path", c).
					WithContext("part", p.Title).
					Build()
			}
			ext := strings.ToLower(filepath.Ext(c))
			if !supportedChapterExtensions[ext] {
				return fe.ValidationError(fmt.Sprintf("unsupported chapter type %q", ext)).
					WithContext("path", c).
					Build()
			}
		}
	}
	if m.Book.Bibliography != "" {
		bib := filepath.Join(baseDir, filepath.FromSlash(m.Book.Bibliography))
		if _, err := os.Stat(bib); err != nil {
			return fe.ReferenceError(fmt.Sprintf("bibliography file %q does not resolve", m.Book.Bibliography)).
				WithContext("path", m.Book.Bibliography).
				Build()
		}
	}
	return nil
}

// ChapterPaths returns every chapter reference in manifest order.
func (m *Manifest) ChapterPaths() []string {
	var paths []string
	for _, p := range m.Book.Parts {
		paths = append(paths, p.Chapters...)
	}
	return paths
}
