// Package site generates the multi-page HTML site from a validated manifest.
//
// Generation runs as a staged pipeline writing into an isolated staging
// directory that is atomically promoted on success, so a failed build never
// corrupts the previous output.
package site

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
	"git.home.luguber.info/inful/bookbuilder/internal/freeze"
	"git.home.luguber.info/inful/bookbuilder/internal/frontmatter"
	"git.home.luguber.info/inful/bookbuilder/internal/linkverify"
	"git.home.luguber.info/inful/bookbuilder/internal/markdown"
	"git.home.luguber.info/inful/bookbuilder/internal/metrics"
)

// Generator builds a site from a parsed manifest.
type Generator struct {
	manifest   *config.Manifest
	baseDir    string
	outputDir  string
	stageDir   string
	renderer   *ChapterRenderer
	recorder   metrics.Recorder
	store      *freeze.Store
	buildCtx   *BuildContext
	configHash string
}

// Option customizes a Generator.
type Option func(*Generator)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(g *Generator) {
		if r != nil {
			g.recorder = r
		}
	}
}

// WithFreezeStore attaches an opened freeze store. The store is only
// consulted when the manifest enables freezing.
func WithFreezeStore(s *freeze.Store) Option {
	return func(g *Generator) { g.store = s }
}

// NewGenerator constructs a Generator for a manifest rooted at baseDir.
// The output directory from the manifest is resolved against baseDir unless
// absolute.
func NewGenerator(m *config.Manifest, baseDir string, opts ...Option) *Generator {
	out := m.Output.Directory
	if !filepath.IsAbs(out) {
		out = filepath.Join(baseDir, out)
	}
	g := &Generator{
		manifest:  m,
		baseDir:   baseDir,
		outputDir: filepath.Clean(out),
		// Developer-notes content embeds raw HTML snippets.
		renderer: NewChapterRenderer(markdown.Options{Unsafe: true}),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OutputDir returns the resolved final output directory.
func (g *Generator) OutputDir() string { return g.outputDir }

// BuildSite runs the full build pipeline and returns the report. The report
// is always non-nil; the error is non-nil only for fatal aborts (the report
// then records which stage failed).
func (g *Generator) BuildSite(ctx context.Context) (*BuildReport, error) {
	g.buildCtx = newBuildContext(g.baseDir, g.manifest.Book.Date)
	b := book.FromManifest(g.manifest, g.baseDir)

	report := newBuildReport(g.buildCtx.BuildID, len(b.Chapters()))
	report.GitStamp = g.buildCtx.Git.Stamp()

	bs := newBuildState(g, report)
	bs.Book = b

	slog.Info("Starting site build",
		"build_id", g.buildCtx.BuildID,
		"book", b.Title,
		"chapters", report.Chapters,
		"output", g.outputDir)

	stages := []namedStage{
		{StagePrepareOutput, g.stagePrepareOutput},
		{StageResolveChapters, g.stageResolveChapters},
		{StageLoadFreeze, g.stageLoadFreeze},
		{StageCheckSignature, g.stageCheckSignature},
		{StageRenderChapters, g.stageRenderChapters},
		{StageWritePages, g.stageWritePages},
		{StageIndexes, g.stageIndexes},
		{StageCopyAssets, g.stageCopyAssets},
		{StageVerifyLinks, g.stageVerifyLinks},
		{StageFinalizeFreeze, g.stageFinalizeFreeze},
	}

	fatal := runStages(ctx, bs, stages)
	if fatal != nil {
		g.abortStaging()
	} else if bs.Skip {
		// Unchanged inputs; the existing output stays as-is.
		g.abortStaging()
	} else if err := g.finalizeStaging(); err != nil {
		se := newFatalStageError(StagePromote, err)
		report.recordStageError(se)
		fatal = se
		g.abortStaging()
	}

	report.finish()
	report.deriveOutcome()
	g.recorder.ObserveBuildDuration(report.End.Sub(report.Start))
	g.recorder.IncBuildOutcome(report.Outcome)

	if err := report.Persist(g.outputDir); err != nil {
		slog.Warn("Failed to persist build report", "error", err)
	}

	slog.Info("Site build finished", "outcome", report.Outcome, "summary", report.Summary())
	return report, fatal
}

func (g *Generator) stagePrepareOutput(_ context.Context, _ *BuildState) error {
	if err := g.beginStaging(); err != nil {
		return newFatalStageError(StagePrepareOutput, err)
	}
	return nil
}

// stageResolveChapters checks every manifest reference against the source
// tree. A missing chapter aborts the build: the navigation contract cannot
// be honored around holes.
func (g *Generator) stageResolveChapters(_ context.Context, _ *BuildState) error {
	if err := g.manifest.Validate(g.baseDir); err != nil {
		return newFatalStageError(StageResolveChapters, err)
	}
	return nil
}

func (g *Generator) stageLoadFreeze(ctx context.Context, bs *BuildState) error {
	mode := g.manifest.Format.HTML.Freeze
	if mode == config.FreezeOff || g.store == nil {
		g.store = nil
		return nil
	}

	hash, err := freeze.ConfigHash(g.manifest.Format)
	if err != nil {
		// Cache misconfiguration never breaks a build; render everything fresh.
		bs.Report.AddIssue(IssueFreezeUnavailable, StageLoadFreeze, SeverityWarning,
			"config hash failed, freeze disabled for this run", "", nil)
		g.store = nil
		return newWarnStageError(StageLoadFreeze, err)
	}
	g.configHash = hash

	if mode == config.FreezeRefresh {
		if err := g.store.Clear(ctx); err != nil {
			bs.Report.AddIssue(IssueFreezeUnavailable, StageLoadFreeze, SeverityWarning,
				"clearing freeze store failed, freeze disabled for this run", "", nil)
			g.store = nil
			return newWarnStageError(StageLoadFreeze, err)
		}
	}
	return nil
}

// stageCheckSignature compares the current chapter set against the signature
// of the previous completed build. When every fingerprint matches and the
// output is already in place, the remaining stages are skipped and the
// existing site is left untouched. Chapter contents read here are handed to
// the render stage through BuildState.
func (g *Generator) stageCheckSignature(ctx context.Context, bs *BuildState) error {
	if g.store == nil || g.manifest.Format.HTML.Freeze != config.FreezeAuto {
		return nil
	}

	chapters := bs.Book.Chapters()
	sources := make(map[string][]byte, len(chapters))
	keys := make(map[string]string, len(chapters))
	fps := make([]freeze.ChapterFingerprint, 0, len(chapters))
	for _, ch := range chapters {
		content, err := os.ReadFile(ch.AbsPath)
		if err != nil {
			// Unreadable chapters are the render stage's problem; no skip
			// decision can be made for an incomplete set.
			return nil
		}
		key := g.cacheKey(contentFingerprint(ch, content))
		sources[ch.Path] = content
		keys[ch.Path] = key
		fps = append(fps, freeze.ChapterFingerprint{Path: ch.Path, Fingerprint: key})
	}
	bs.Sources = sources
	bs.CacheKeys = keys

	sig, err := freeze.ComputeBuildSignature(fps, g.configHash)
	if err != nil {
		return newWarnStageError(StageCheckSignature, err)
	}
	bs.Signature = sig

	prev, err := g.store.GetBuildSignature(ctx)
	if err != nil {
		slog.Warn("Build signature lookup failed", "error", err)
		return nil
	}
	if prev == nil || !sig.Equals(prev) {
		return nil
	}
	if _, err := os.Stat(filepath.Join(g.outputDir, "index.html")); err != nil {
		return nil
	}

	bs.Skip = true
	bs.Report.SkipReason = SkipNoChanges
	slog.Info("Build inputs unchanged, keeping existing output", "build_hash", sig.BuildHash)
	return nil
}

// cacheKey mixes the content fingerprint with the format config hash so theme
// or renderer option changes invalidate cached fragments.
func (g *Generator) cacheKey(fingerprint string) string {
	if g.configHash == "" {
		return fingerprint
	}
	return fingerprint + "-" + g.configHash[:12]
}

func contentFingerprint(ch book.Chapter, content []byte) string {
	if ch.Kind == book.KindNotebook {
		return freeze.FingerprintBytes(content)
	}
	fm, body, _, err := frontmatter.Split(content)
	if err != nil {
		// Render will fail with a classified error; the fingerprint is moot.
		return freeze.FingerprintBytes(content)
	}
	return freeze.Fingerprint(fm, body)
}

// stageRenderChapters renders every chapter in manifest order. A failing
// chapter is recorded and skipped; the rest of the book still builds. Only
// the degenerate case of every chapter failing aborts the pipeline.
func (g *Generator) stageRenderChapters(ctx context.Context, bs *BuildState) error {
	chapters := bs.Book.Chapters()
	useCache := g.store != nil && g.manifest.Format.HTML.Freeze == config.FreezeAuto

	var failed int
	fail := func(ch book.Chapter, err error) {
		failed++
		bs.Report.FailedChapters = append(bs.Report.FailedChapters,
			ChapterFailure{Path: ch.Path, Reason: err.Error()})
		bs.Report.AddIssue(IssueChapterRenderFailure, StageRenderChapters, SeverityError,
			err.Error(), ch.Path, err)
		g.recorder.IncChapterFailed()
		slog.Error("Chapter render failed", "path", ch.Path, "error", err)
	}

	for _, ch := range chapters {
		content, ok := bs.Sources[ch.Path]
		if !ok {
			var err error
			content, err = os.ReadFile(ch.AbsPath)
			if err != nil {
				fail(ch, err)
				continue
			}
		}

		key, ok := bs.CacheKeys[ch.Path]
		if !ok {
			key = g.cacheKey(contentFingerprint(ch, content))
		}

		if useCache {
			if e, ok, err := g.store.Get(ctx, ch.Path, key); err == nil && ok {
				bs.Rendered = append(bs.Rendered, &RenderedChapter{
					Chapter:     ch,
					Title:       e.Title,
					HTML:        e.HTML,
					Fingerprint: key,
					FromCache:   true,
				})
				bs.Report.CachedPages++
				g.recorder.IncChapterRendered(true)
				slog.Debug("Chapter served from freeze store", "path", ch.Path)
				continue
			} else if err != nil {
				slog.Warn("Freeze lookup failed", "path", ch.Path, "error", err)
			}
		}

		rc, err := g.renderer.RenderContent(ch, content)
		if err != nil {
			fail(ch, err)
			continue
		}
		rc.Fingerprint = key
		bs.Rendered = append(bs.Rendered, rc)
		bs.Report.RenderedPages++
		g.recorder.IncChapterRendered(false)

		if g.store != nil {
			err := g.store.Put(ctx, freeze.Entry{
				Path: ch.Path, Fingerprint: key, Title: rc.Title, HTML: rc.HTML,
			})
			if err != nil {
				slog.Warn("Freeze store write failed", "path", ch.Path, "error", err)
			}
		}
	}

	if failed == len(chapters) && failed > 0 {
		return newFatalStageError(StageRenderChapters,
			fmt.Errorf("all %d chapters failed to render", failed))
	}
	if failed > 0 {
		return newWarnStageError(StageRenderChapters,
			fmt.Errorf("%d of %d chapters failed to render", failed, len(chapters)))
	}
	return nil
}

// stageWritePages writes one HTML page per rendered chapter. Navigation is
// rebuilt with the rendered titles; failed chapters are absent from it since
// their pages do not exist.
func (g *Generator) stageWritePages(_ context.Context, bs *BuildState) error {
	byPath := make(map[string]*RenderedChapter, len(bs.Rendered))
	for _, rc := range bs.Rendered {
		byPath[rc.Chapter.Path] = rc
	}

	navBook := &book.Book{Title: bs.Book.Title}
	for _, p := range bs.Book.Parts {
		part := book.Part{Title: p.Title}
		for _, c := range p.Chapters {
			rc, ok := byPath[c.Path]
			if !ok {
				continue
			}
			c.Title = rc.Title
			part.Chapters = append(part.Chapters, c)
		}
		navBook.Parts = append(navBook.Parts, part)
	}
	bs.Nav = book.BuildNav(navBook)

	stamp := g.buildCtx.Git.Stamp()
	for _, rc := range bs.Rendered {
		out := rc.Chapter.OutputPath
		page, err := renderPage(pageData{
			BookTitle: bs.Book.Title,
			Author:    bs.Book.Author,
			Date:      g.buildCtx.Date,
			Title:     rc.Title,
			Content:   htmlFragment(rc.HTML),
			Nav:       navFor(bs.Nav, out),
			Prefix:    rootPrefix(out),
			EditURL:   g.buildCtx.Git.EditURL(bs.Book.RepoURL, rc.Chapter.Path),
			GitStamp:  stamp,
		})
		if err != nil {
			return newFatalStageError(StageWritePages, fmt.Errorf("render page %s: %w", out, err))
		}
		dst := filepath.Join(g.stageDir, filepath.FromSlash(out))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return newFatalStageError(StageWritePages, err)
		}
		if err := os.WriteFile(dst, page, 0o644); err != nil {
			return newFatalStageError(StageWritePages, fmt.Errorf("write page %s: %w", out, err))
		}
	}
	return nil
}

func (g *Generator) stageIndexes(_ context.Context, bs *BuildState) error {
	idxPath := filepath.Join(g.stageDir, "index.html")
	if _, err := os.Stat(idxPath); err == nil {
		// A chapter named index.md already provides the landing page.
		return nil
	}
	idx, err := renderIndex(indexData{
		BookTitle: bs.Book.Title,
		Author:    bs.Book.Author,
		Date:      g.buildCtx.Date,
		Nav:       navFor(bs.Nav, "index.html"),
		GitStamp:  g.buildCtx.Git.Stamp(),
	})
	if err != nil {
		return newFatalStageError(StageIndexes, err)
	}
	if err := os.WriteFile(idxPath, idx, 0o644); err != nil {
		return newFatalStageError(StageIndexes, err)
	}
	return nil
}

func (g *Generator) stageVerifyLinks(_ context.Context, bs *BuildState) error {
	broken, err := linkverify.VerifySite(g.stageDir, g.manifest.Book.SiteURL)
	if err != nil {
		return newWarnStageError(StageVerifyLinks, err)
	}
	bs.Report.BrokenLinks = len(broken)
	for _, b := range broken {
		bs.Report.AddIssue(IssueBrokenLink, StageVerifyLinks, SeverityWarning,
			fmt.Sprintf("broken link %q on %s", b.Target, b.Page), b.Page,
			fmt.Errorf("broken link %q on %s", b.Target, b.Page))
	}
	if len(broken) > 0 {
		slog.Warn("Broken internal links found", "count", len(broken))
	}
	return nil
}

func (g *Generator) stageFinalizeFreeze(ctx context.Context, bs *BuildState) error {
	if g.store == nil {
		return nil
	}
	if err := g.store.Prune(ctx, g.manifest.ChapterPaths()); err != nil {
		return newWarnStageError(StageFinalizeFreeze, err)
	}

	fps := make([]freeze.ChapterFingerprint, 0, len(bs.Rendered))
	for _, rc := range bs.Rendered {
		fps = append(fps, freeze.ChapterFingerprint{Path: rc.Chapter.Path, Fingerprint: rc.Fingerprint})
	}
	sig, err := freeze.ComputeBuildSignature(fps, g.configHash)
	if err != nil {
		return newWarnStageError(StageFinalizeFreeze, err)
	}
	if err := g.store.PutBuildSignature(ctx, sig); err != nil {
		return newWarnStageError(StageFinalizeFreeze, err)
	}
	slog.Debug("Build signature stored", "build_hash", sig.BuildHash)
	return nil
}
