// Package preview serves the generated site locally and rebuilds it when the
// source tree changes.
package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/bookbuilder/internal/config"
	"git.home.luguber.info/inful/bookbuilder/internal/metrics"
	"git.home.luguber.info/inful/bookbuilder/internal/site"
)

// debounceWindow coalesces filesystem event bursts (editors write several
// events per save) into one rebuild.
const debounceWindow = 300 * time.Millisecond

// Options configures the preview server.
type Options struct {
	Port            int
	RebuildInterval time.Duration // optional periodic full rebuild, 0 disables
	Registry        *prom.Registry
}

// buildStatus tracks the latest build result for the health endpoint.
type buildStatus struct {
	mu           sync.RWMutex
	lastError    error
	lastOutcome  site.BuildOutcome
	hasGoodBuild bool
}

func (bs *buildStatus) set(report *site.BuildReport, err error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.lastError = err
	if report != nil {
		bs.lastOutcome = report.OutcomeT
	}
	if err == nil {
		bs.hasGoodBuild = true
	}
}

func (bs *buildStatus) snapshot() (outcome site.BuildOutcome, err error, good bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.lastOutcome, bs.lastError, bs.hasGoodBuild
}

// BuildFunc runs one full site build.
type BuildFunc func(ctx context.Context) (*site.BuildReport, error)

// Server is the local preview server: static file serving over the output
// directory plus source watching with debounced rebuilds.
type Server struct {
	manifest *config.Manifest
	baseDir  string
	siteDir  string
	build    BuildFunc
	opts     Options
	status   *buildStatus
}

// NewServer constructs a preview server. build runs a complete site build
// into siteDir.
func NewServer(m *config.Manifest, baseDir, siteDir string, build BuildFunc, opts Options) *Server {
	if opts.Port == 0 {
		opts.Port = m.Preview.Port
	}
	return &Server{
		manifest: m,
		baseDir:  baseDir,
		siteDir:  siteDir,
		build:    build,
		opts:     opts,
		status:   &buildStatus{},
	}
}

// Run performs the initial build, then serves and watches until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	report, err := s.build(ctx)
	s.status.set(report, err)
	if err != nil {
		// Keep serving; the watcher rebuilds once the source is fixed.
		slog.Error("Initial build failed", "error", err)
	}

	httpServer, err := s.startHTTP(ctx)
	if err != nil {
		return err
	}

	watcher, err := s.setupWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	rebuildReq, trigger := setupDebouncer()
	s.startRebuildWorker(ctx, rebuildReq)

	scheduler, err := s.startScheduler(rebuildReq)
	if err != nil {
		return err
	}

	err = s.runLoop(ctx, watcher, trigger)

	if scheduler != nil {
		if serr := scheduler.Shutdown(); serr != nil {
			slog.Warn("Scheduler shutdown error", "error", serr)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		slog.Warn("HTTP server shutdown error", "error", serr)
	}
	return err
}

func (s *Server) startHTTP(ctx context.Context) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(s.siteDir)))
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", metrics.HTTPHandler(s.opts.Registry))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", s.opts.Port, err)
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("Preview server error", "error", err)
		}
	}()
	slog.Info("Preview server listening", "url", fmt.Sprintf("http://localhost:%d", s.opts.Port))
	return srv, nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	outcome, lastErr, good := s.status.snapshot()
	resp := map[string]any{
		"status":         "ok",
		"last_outcome":   string(outcome),
		"has_good_build": good,
	}
	code := http.StatusOK
	if lastErr != nil {
		resp["status"] = "degraded"
		resp["last_error"] = lastErr.Error()
		if !good {
			code = http.StatusServiceUnavailable
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) setupWatcher() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if err := s.addDirsRecursive(watcher, s.baseDir); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	return watcher, nil
}

// addDirsRecursive watches every source directory, skipping the output tree
// so the builder's own writes never trigger rebuilds.
func (s *Server) addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if s.isOutputPath(path) || strings.HasPrefix(filepath.Base(path), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			slog.Warn("watch add failed", "dir", path, "error", err)
		}
		return nil
	})
}

func (s *Server) isOutputPath(path string) bool {
	for _, dir := range []string{s.siteDir, s.siteDir + "_stage", s.siteDir + ".prev"} {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func setupDebouncer() (chan struct{}, func()) {
	var mu sync.Mutex
	var timer *time.Timer
	rebuildReq := make(chan struct{}, 1)

	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceWindow, func() {
			select {
			case rebuildReq <- struct{}{}:
			default:
			}
		})
	}
	return rebuildReq, trigger
}

// startRebuildWorker serializes rebuilds: at most one build runs at a time
// and a request arriving mid-build queues exactly one follow-up.
func (s *Server) startRebuildWorker(ctx context.Context, rebuildReq chan struct{}) {
	var mu sync.Mutex
	running := false
	pending := false

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-rebuildReq:
				if !ok {
					return
				}
				mu.Lock()
				if running {
					pending = true
					mu.Unlock()
					continue
				}
				running = true
				mu.Unlock()

				slog.Info("Change detected; rebuilding site")
				report, err := s.build(ctx)
				s.status.set(report, err)
				if err != nil {
					slog.Warn("Rebuild failed", "error", err)
				}

				mu.Lock()
				running = false
				if pending {
					pending = false
					mu.Unlock()
					select {
					case rebuildReq <- struct{}{}:
					default:
					}
				} else {
					mu.Unlock()
				}
			}
		}
	}()
}

// startScheduler sets up the optional periodic full rebuild. Useful when the
// book embeds content the watcher cannot see (git metadata, "today" dates).
func (s *Server) startScheduler(rebuildReq chan struct{}) (gocron.Scheduler, error) {
	if s.opts.RebuildInterval <= 0 {
		return nil, nil
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(s.opts.RebuildInterval),
		gocron.NewTask(func() {
			select {
			case rebuildReq <- struct{}{}:
			default:
			}
		}),
		gocron.WithName("periodic-rebuild"),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule periodic rebuild: %w", err)
	}
	scheduler.Start()
	slog.Info("Periodic rebuild scheduled", "interval", s.opts.RebuildInterval)
	return scheduler, nil
}

func (s *Server) runLoop(ctx context.Context, watcher *fsnotify.Watcher, trigger func()) error {
	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutting down preview server")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleFileEvent(watcher, ev, trigger)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

func (s *Server) handleFileEvent(watcher *fsnotify.Watcher, ev fsnotify.Event, trigger func()) {
	if shouldIgnoreEvent(ev.Name) || s.isOutputPath(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = s.addDirsRecursive(watcher, ev.Name)
		}
	}
	slog.Debug("File change detected", "path", ev.Name, "op", ev.Op.String())
	trigger()
}

// shouldIgnoreEvent filters events for hidden files and editor temp/swap
// files that never affect the rendered site.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, ".#") ||
		(strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#")) {
		return true
	}
	return base == "Thumbs.db"
}
