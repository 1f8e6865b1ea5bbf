// Package notify publishes build events to NATS so downstream tooling
// (dashboards, chat hooks) can react to finished builds.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/bookbuilder/internal/config"
	"git.home.luguber.info/inful/bookbuilder/internal/site"
)

// BuildEvent is the wire format of a published build notification.
type BuildEvent struct {
	BuildID        string                `json:"build_id"`
	Book           string                `json:"book"`
	Outcome        string                `json:"outcome"`
	Chapters       int                   `json:"chapters"`
	RenderedPages  int                   `json:"rendered_pages"`
	CachedPages    int                   `json:"cached_pages"`
	FailedChapters []site.ChapterFailure `json:"failed_chapters,omitempty"`
	BrokenLinks    int                   `json:"broken_links"`
	DurationMS     int64                 `json:"duration_ms"`
	GitStamp       string                `json:"git_stamp,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
}

// Notifier publishes build events to a NATS subject.
type Notifier struct {
	conn    *nats.Conn
	subject string
}

// NewNotifier connects to NATS using the manifest's notification settings.
// Returns (nil, nil) when notifications are not configured.
func NewNotifier(cfg *config.NATSConfig) (*Notifier, error) {
	if cfg == nil {
		return nil, nil
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name("bookbuilder"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(2),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	slog.Info("NATS notifier initialized", "url", cfg.URL, "subject", cfg.Subject)
	return &Notifier{conn: conn, subject: cfg.Subject}, nil
}

// PublishBuild publishes the outcome of a finished build. Safe on a nil
// receiver so callers do not guard every publish site.
func (n *Notifier) PublishBuild(bookTitle string, report *site.BuildReport) error {
	if n == nil {
		return nil
	}

	event := BuildEvent{
		BuildID:        report.BuildID,
		Book:           bookTitle,
		Outcome:        report.Outcome,
		Chapters:       report.Chapters,
		RenderedPages:  report.RenderedPages,
		CachedPages:    report.CachedPages,
		FailedChapters: report.FailedChapters,
		BrokenLinks:    report.BrokenLinks,
		DurationMS:     report.End.Sub(report.Start).Milliseconds(),
		GitStamp:       report.GitStamp,
		Timestamp:      time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal build event: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish build event: %w", err)
	}
	// Flush so short-lived CLI invocations do not drop the event on exit.
	if err := n.conn.FlushTimeout(3 * time.Second); err != nil {
		return fmt.Errorf("flush build event: %w", err)
	}
	slog.Debug("Published build event", "subject", n.subject, "outcome", event.Outcome)
	return nil
}

// Close drains the connection. Nil-safe.
func (n *Notifier) Close() {
	if n == nil || n.conn == nil {
		return
	}
	n.conn.Close()
}
