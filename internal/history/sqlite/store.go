// Package sqlite stores the post history in an SQLite database file or in memory.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register driver

	"github.com/JakeFAU/urlbot/internal/bot"
	"github.com/JakeFAU/urlbot/internal/history"
)

// Memory is the path that selects a private in-memory database.
const Memory = ":memory:"

// Store implements history.Store on SQLite.
type Store struct {
	db    *sql.DB
	clock bot.Clock
}

var _ history.Store = (*Store)(nil)

// Open opens or creates the database at path. An empty path or Memory keeps
// everything in memory for the lifetime of the Store.
func Open(path string, clock bot.Clock) (*Store, error) {
	if path == "" {
		path = Memory
	}
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// an in-memory database lives and dies with its connection
	db.SetMaxOpenConns(1)

	s := &Store{db: db, clock: clock}
	if err := s.configure(path); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure(path string) error {
	pragmas := []string{"PRAGMA busy_timeout=5000"}
	if path != Memory {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			user TEXT NOT NULL,
			channel TEXT NOT NULL,
			time_created TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_url ON posts(url)`,
		`CREATE TABLE IF NOT EXISTS errors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL,
			error_info TEXT NOT NULL,
			time_created TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AddLog appends one post.
func (s *Store) AddLog(ctx context.Context, e history.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (title, url, user, channel, time_created) VALUES (?, ?, ?, ?, ?)`,
		e.Title, e.URL, e.User, e.Channel, history.Timestamp(s.clock.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// CheckPrepost returns the most recent post of exactly url.
func (s *Store) CheckPrepost(ctx context.Context, url string) (*history.PrevPost, error) {
	var p history.PrevPost
	err := s.db.QueryRowContext(ctx,
		`SELECT user, channel, time_created FROM posts WHERE url = ? ORDER BY id DESC LIMIT 1`,
		url,
	).Scan(&p.User, &p.Channel, &p.TimeCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query prepost: %w", err)
	}
	return &p, nil
}

// LogError records a failed resolution.
func (s *Store) LogError(ctx context.Context, url string, info history.ErrorInfo) error {
	b, err := info.JSON()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO errors (url, error_info, time_created) VALUES (?, ?, ?)`,
		url, string(b), history.Timestamp(s.clock.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert error: %w", err)
	}
	return nil
}
