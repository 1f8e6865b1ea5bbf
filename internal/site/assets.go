package site

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/bookbuilder/internal/linkverify"
)

// stageCopyAssets emits the stylesheet, copies the bibliography, and carries
// over every local asset (images, attachments) the rendered chapters
// reference, preserving their location relative to the page.
func (g *Generator) stageCopyAssets(_ context.Context, bs *BuildState) error {
	if err := os.WriteFile(filepath.Join(g.stageDir, "style.css"), []byte(styleCSS), 0o644); err != nil {
		return newFatalStageError(StageCopyAssets, err)
	}

	if bib := g.manifest.Book.Bibliography; bib != "" {
		src := filepath.Join(g.baseDir, filepath.FromSlash(bib))
		dst := filepath.Join(g.stageDir, filepath.FromSlash(bib))
		if err := copyFile(src, dst); err != nil {
			return newFatalStageError(StageCopyAssets, err)
		}
	}

	copied := map[string]struct{}{}
	for _, rc := range bs.Rendered {
		targets, err := referencedAssets(rc, g.manifest.Book.SiteURL)
		if err != nil {
			return newWarnStageError(StageCopyAssets, err)
		}
		for _, t := range targets {
			if _, done := copied[t.dst]; done {
				continue
			}
			copied[t.dst] = struct{}{}
			src := filepath.Join(g.baseDir, filepath.FromSlash(t.src))
			dst := filepath.Join(g.stageDir, filepath.FromSlash(t.dst))
			if err := copyFile(src, dst); err != nil {
				// Dangling references surface in the verify_links stage.
				slog.Debug("Referenced asset not copied", "src", t.src, "error", err)
			}
		}
	}
	return nil
}

type assetRef struct {
	src string // source-tree relative path
	dst string // site-relative path
}

// referencedAssets lists local non-page targets linked from a rendered
// chapter. Source paths resolve against the chapter's source directory,
// destinations against its output page.
func referencedAssets(rc *RenderedChapter, siteURL string) ([]assetRef, error) {
	links, err := linkverify.ExtractLinksFromReader(bytes.NewReader(rc.HTML), siteURL)
	if err != nil {
		return nil, err
	}

	var refs []assetRef
	for _, l := range links {
		if !l.IsInternal {
			continue
		}
		p := strings.SplitN(strings.SplitN(l.URL, "#", 2)[0], "?", 2)[0]
		if p == "" || strings.HasSuffix(strings.ToLower(p), ".html") {
			continue
		}
		var src, dst string
		if strings.HasPrefix(p, "/") {
			src = strings.TrimPrefix(path.Clean(p), "/")
			dst = src
		} else {
			src = path.Clean(path.Join(path.Dir(rc.Chapter.Path), p))
			dst = path.Clean(path.Join(path.Dir(rc.Chapter.OutputPath), p))
		}
		if src == "" || strings.HasPrefix(src, "..") || strings.HasPrefix(dst, "..") {
			continue
		}
		refs = append(refs, assetRef{src: src, dst: dst})
	}
	return refs, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
