// Package postgres stores the post history in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/urlbot/internal/bot"
	"github.com/JakeFAU/urlbot/internal/history"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store implements history.Store on Postgres.
type Store struct {
	pool  pool
	clock bot.Clock
}

var _ history.Store = (*Store)(nil)

// New connects to Postgres and ensures the schema exists.
func New(ctx context.Context, cfg Config, clock bot.Clock) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{pool: p, clock: clock}
	if err := s.InitSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, clock bot.Clock) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: p, clock: clock}, nil
}

// InitSchema creates the posts and errors tables when missing.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS posts (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	url TEXT NOT NULL,
	"user" TEXT NOT NULL,
	channel TEXT NOT NULL,
	time_created TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_url ON posts(url)`,
		`CREATE TABLE IF NOT EXISTS errors (
	id BIGSERIAL PRIMARY KEY,
	url TEXT NOT NULL,
	error_info JSONB NOT NULL,
	time_created TEXT NOT NULL
)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// AddLog appends one post.
func (s *Store) AddLog(ctx context.Context, e history.Entry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO posts (title, url, "user", channel, time_created) VALUES ($1, $2, $3, $4, $5)`,
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
	err := s.pool.QueryRow(ctx,
		`SELECT "user", channel, time_created FROM posts WHERE url = $1 ORDER BY id DESC LIMIT 1`,
		url,
	).Scan(&p.User, &p.Channel, &p.TimeCreated)
	if errors.Is(err, pgx.ErrNoRows) {
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
	_, err = s.pool.Exec(ctx,
		`INSERT INTO errors (url, error_info, time_created) VALUES ($1, $2, $3)`,
		url, b, history.Timestamp(s.clock.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert error: %w", err)
	}
	return nil
}
