package freeze

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists rendered chapter HTML keyed by path and fingerprint.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Entry is one cached render.
type Entry struct {
	Path        string
	Fingerprint string
	Title       string
	HTML        []byte
}

// NewStore opens (or creates) the freeze database.
// Use ":memory:" for an ephemeral store in tests.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open freeze database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize freeze schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS renders (
		path TEXT NOT NULL PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		title TEXT NOT NULL,
		html BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_renders_fingerprint ON renders(fingerprint);
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT NOT NULL PRIMARY KEY,
		value BLOB NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the cached render for path if its fingerprint still matches.
func (s *Store) Get(ctx context.Context, path, fingerprint string) (*Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT fingerprint, title, html FROM renders WHERE path = ?", path)

	var e Entry
	e.Path = path
	if err := row.Scan(&e.Fingerprint, &e.Title, &e.HTML); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query render: %w", err)
	}
	if e.Fingerprint != fingerprint {
		return nil, false, nil
	}
	return &e, true, nil
}

// Put stores or replaces the cached render for a chapter.
func (s *Store) Put(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO renders (path, fingerprint, title, html, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   fingerprint = excluded.fingerprint,
		   title = excluded.title,
		   html = excluded.html,
		   updated_at = excluded.updated_at`,
		e.Path, e.Fingerprint, e.Title, e.HTML, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store render: %w", err)
	}
	return nil
}

// Prune removes cached renders whose paths are no longer in the manifest.
func (s *Store) Prune(ctx context.Context, keep []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keepSet := make(map[string]struct{}, len(keep))
	for _, p := range keep {
		keepSet[p] = struct{}{}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT path FROM renders")
	if err != nil {
		return fmt.Errorf("list renders: %w", err)
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan render path: %w", err)
		}
		if _, ok := keepSet[p]; !ok {
			stale = append(stale, p)
		}
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close rows: %w", err)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate renders: %w", err)
	}

	for _, p := range stale {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM renders WHERE path = ?", p); err != nil {
			return fmt.Errorf("delete stale render: %w", err)
		}
	}
	return nil
}

// Clear drops every cached render and the stored build signature
// (freeze: refresh).
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM renders"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM meta")
	return err
}

const buildSignatureKey = "build_signature"

// GetBuildSignature returns the signature of the last completed build, or
// (nil, nil) when none is stored.
func (s *Store) GetBuildSignature(ctx context.Context) (*BuildSignature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", buildSignatureKey)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query build signature: %w", err)
	}
	var sig BuildSignature
	if err := json.Unmarshal(raw, &sig); err != nil {
		return nil, fmt.Errorf("decode build signature: %w", err)
	}
	return &sig, nil
}

// PutBuildSignature stores the signature of a completed build.
func (s *Store) PutBuildSignature(ctx context.Context, sig *BuildSignature) error {
	raw, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("encode build signature: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		buildSignatureKey, raw)
	if err != nil {
		return fmt.Errorf("store build signature: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
