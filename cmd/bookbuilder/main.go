package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/bookbuilder/internal/config"
	"git.home.luguber.info/inful/bookbuilder/internal/freeze"
	"git.home.luguber.info/inful/bookbuilder/internal/metrics"
	"git.home.luguber.info/inful/bookbuilder/internal/notify"
	"git.home.luguber.info/inful/bookbuilder/internal/preview"
	"git.home.luguber.info/inful/bookbuilder/internal/site"
)

var CLI struct {
	Manifest string `short:"m" help:"Book manifest path" default:"book.yaml"`
	Verbose  bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Output string `short:"o" help:"Override the output directory"`
		Freeze string `help:"Override the freeze mode (off|auto|refresh)"`
	} `cmd:"" help:"Build the site from the book manifest"`

	Init struct {
		Force bool `help:"Overwrite an existing manifest"`
	} `cmd:"" help:"Create a starter book manifest"`

	Check struct{} `cmd:"" help:"Validate the manifest and chapter references without building"`

	Preview struct {
		Port         int           `short:"p" help:"HTTP port (defaults to the manifest preview.port)"`
		RebuildEvery time.Duration `help:"Periodic full rebuild interval (0 disables)"`
	} `cmd:"" help:"Serve the site locally and rebuild on source changes"`

	Clean struct{} `cmd:"" help:"Remove build output and the freeze store"`
}

func main() {
	ctx := kong.Parse(&CLI)

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	})))

	var err error
	switch ctx.Command() {
	case "build":
		err = runBuild()
	case "init":
		err = runInit()
	case "check":
		err = runCheck()
	case "preview":
		err = runPreview()
	case "clean":
		err = runClean()
	}
	if err != nil {
		slog.Error("Command failed", "command", ctx.Command(), "error", err)
		os.Exit(1)
	}
}

// logLevel picks the log level: --verbose wins, then BOOKBUILDER_LOG_LEVEL
// (debug|info|warn|error), then info.
func logLevel() slog.Level {
	if CLI.Verbose {
		return slog.LevelDebug
	}
	var level slog.Level
	if v := os.Getenv("BOOKBUILDER_LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err == nil {
			return level
		}
	}
	return slog.LevelInfo
}

func loadManifest() (*config.Manifest, string, error) {
	m, err := config.Load(CLI.Manifest)
	if err != nil {
		return nil, "", err
	}
	baseDir, err := filepath.Abs(filepath.Dir(CLI.Manifest))
	if err != nil {
		return nil, "", err
	}
	return m, baseDir, nil
}

func applyBuildOverrides(m *config.Manifest) error {
	if CLI.Build.Output != "" {
		m.Output.Directory = CLI.Build.Output
	}
	if CLI.Build.Freeze != "" {
		switch mode := config.FreezeMode(CLI.Build.Freeze); mode {
		case config.FreezeOff, config.FreezeAuto, config.FreezeRefresh:
			m.Format.HTML.Freeze = mode
		default:
			return fmt.Errorf("unknown freeze mode %q", CLI.Build.Freeze)
		}
	}
	return nil
}

// freezeDBPath is where the render cache lives, beside the source tree.
func freezeDBPath(baseDir string) string {
	return filepath.Join(baseDir, ".bookbuilder", "freeze.db")
}

func openFreezeStore(m *config.Manifest, baseDir string) *freeze.Store {
	if m.Format.HTML.Freeze == config.FreezeOff {
		return nil
	}
	dbPath := freezeDBPath(baseDir)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		slog.Warn("Freeze store unavailable", "error", err)
		return nil
	}
	store, err := freeze.NewStore(dbPath)
	if err != nil {
		slog.Warn("Freeze store unavailable", "error", err)
		return nil
	}
	return store
}

func runBuild() error {
	m, baseDir, err := loadManifest()
	if err != nil {
		return err
	}
	if err := applyBuildOverrides(m); err != nil {
		return err
	}

	store := openFreezeStore(m, baseDir)
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	notifier, err := notify.NewNotifier(m.Notifications.NATS)
	if err != nil {
		// Notification trouble never blocks a build.
		slog.Warn("Notifications disabled", "error", err)
	}
	defer notifier.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g := site.NewGenerator(m, baseDir, site.WithFreezeStore(store))
	report, buildErr := g.BuildSite(ctx)

	if err := notifier.PublishBuild(m.Book.Title, report); err != nil {
		slog.Warn("Failed to publish build event", "error", err)
	}

	for _, fc := range report.FailedChapters {
		fmt.Fprintf(os.Stderr, "failed chapter: %s: %s\n", fc.Path, fc.Reason)
	}
	fmt.Println(report.Summary())

	if buildErr != nil {
		return buildErr
	}
	if report.OutcomeT == site.OutcomeFailed {
		return fmt.Errorf("%d chapters failed to render", len(report.FailedChapters))
	}
	return nil
}

func runInit() error {
	slog.Info("Initializing manifest", "path", CLI.Manifest, "force", CLI.Init.Force)
	return config.Init(CLI.Manifest, CLI.Init.Force)
}

func runCheck() error {
	m, baseDir, err := loadManifest()
	if err != nil {
		return err
	}
	if err := m.Validate(baseDir); err != nil {
		return err
	}
	fmt.Printf("manifest ok: %q, %d parts, %d chapters\n",
		m.Book.Title, len(m.Book.Parts), len(m.ChapterPaths()))
	return nil
}

func runPreview() error {
	m, baseDir, err := loadManifest()
	if err != nil {
		return err
	}

	store := openFreezeStore(m, baseDir)
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	build := func(ctx context.Context) (*site.BuildReport, error) {
		g := site.NewGenerator(m, baseDir,
			site.WithFreezeStore(store),
			site.WithRecorder(recorder))
		return g.BuildSite(ctx)
	}

	siteDir := site.NewGenerator(m, baseDir).OutputDir()
	srv := preview.NewServer(m, baseDir, siteDir, build, preview.Options{
		Port:            CLI.Preview.Port,
		RebuildInterval: CLI.Preview.RebuildEvery,
		Registry:        registry,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return srv.Run(ctx)
}

func runClean() error {
	m, baseDir, err := loadManifest()
	if err != nil {
		return err
	}
	out := site.NewGenerator(m, baseDir).OutputDir()
	for _, dir := range []string{out, out + "_stage", out + ".prev"} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
	}
	if err := os.RemoveAll(filepath.Dir(freezeDBPath(baseDir))); err != nil {
		return fmt.Errorf("remove freeze store: %w", err)
	}
	slog.Info("Cleaned build output", "output", out)
	return nil
}
