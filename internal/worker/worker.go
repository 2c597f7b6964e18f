// Package worker runs the bot for a single network: store, transport session
// and reconnect loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/urlbot/internal/bot"
	"github.com/JakeFAU/urlbot/internal/config"
	"github.com/JakeFAU/urlbot/internal/history"
	"github.com/JakeFAU/urlbot/internal/history/postgres"
	"github.com/JakeFAU/urlbot/internal/history/sqlite"
	"github.com/JakeFAU/urlbot/internal/message"
	"github.com/JakeFAU/urlbot/internal/metrics"
	"github.com/JakeFAU/urlbot/internal/plugins"
	"github.com/JakeFAU/urlbot/internal/policy/ratelimit"
	"github.com/JakeFAU/urlbot/internal/resolver"
	"github.com/JakeFAU/urlbot/internal/retriever"
	"github.com/JakeFAU/urlbot/internal/title"
	"github.com/JakeFAU/urlbot/internal/transport/irc"
)

// Session is one transport connection.
type Session interface {
	bot.Client
	OnEvent(fn func(bot.Event))
	Run(ctx context.Context) error
}

// SessionFactory opens a new, not yet connected Session.
type SessionFactory func(settings irc.Settings, logger *zap.Logger) Session

// IRCSessions is the production SessionFactory.
func IRCSessions(settings irc.Settings, logger *zap.Logger) Session {
	return irc.New(settings, logger)
}

// Worker owns everything that belongs to one network.
type Worker struct {
	cfg        config.Config
	saver      *config.Saver
	clock      bot.Clock
	ids        bot.IDGenerator
	newSession SessionFactory
	logger     *zap.Logger

	connected atomic.Bool
}

// New builds a Worker for cfg.
func New(
	cfg config.Config,
	clock bot.Clock,
	ids bot.IDGenerator,
	newSession SessionFactory,
	logger *zap.Logger,
) *Worker {
	if newSession == nil {
		newSession = IRCSessions
	}
	return &Worker{
		cfg:        cfg,
		saver:      config.NewSaver(cfg),
		clock:      clock,
		ids:        ids,
		newSession: newSession,
		logger:     logger,
	}
}

// Name returns the network name.
func (w *Worker) Name() string {
	return w.cfg.Network.Name
}

// Connected reports whether a session is currently running.
func (w *Worker) Connected() bool {
	return w.connected.Load()
}

// Run connects and serves until ctx is done. With reconnect enabled a dropped
// connection is retried after the configured delay; otherwise its error is
// returned.
func (w *Worker) Run(ctx context.Context) error {
	store, err := OpenStore(ctx, w.cfg, w.clock)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			w.logger.Warn("close history store", zap.Error(cerr))
		}
	}()

	res := w.newResolver(store)
	for {
		err := w.serve(ctx, store, res)
		if ctx.Err() != nil {
			return nil
		}
		if !w.cfg.Features.Reconnect {
			return err
		}
		delay := w.cfg.Params.ReconnectDelay()
		w.logger.Warn("connection lost, reconnecting", zap.Error(err), zap.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (w *Worker) serve(ctx context.Context, store history.Store, res message.Resolver) error {
	logger := w.logger
	if id, err := w.ids.NewID(); err == nil {
		logger = logger.With(zap.String("session", id))
	}

	sess := w.newSession(irc.Settings{
		Connection: w.cfg.Connection,
		Channels:   w.saver.Channels(),
	}, logger.Named("irc"))
	handler := message.NewHandler(w.cfg, sess, res, store, w.saver, logger)
	sess.OnEvent(func(ev bot.Event) {
		handler.Handle(ctx, ev)
	})

	metrics.IncConnectedWorkers()
	w.connected.Store(true)
	defer func() {
		w.connected.Store(false)
		metrics.DecConnectedWorkers()
	}()
	logger.Info("session starting", zap.String("server", w.cfg.Connection.Server))
	if err := sess.Run(ctx); err != nil {
		return err
	}
	if ctx.Err() == nil {
		return errors.New("session ended")
	}
	return nil
}

func (w *Worker) newResolver(store history.Store) *resolver.Resolver {
	h := w.cfg.HTTP
	ret := retriever.New(retriever.Options{
		Timeout:      h.Timeout(),
		MaxRedirects: h.MaxRedirections,
		MaxRetries:   h.MaxRetries,
		RetryDelay:   h.RetryDelay(),
		AcceptLang:   h.AcceptLang,
		UserAgent:    h.UserAgent,
		Limiter:      ratelimit.New(ratelimit.Config{PerSecond: h.RateLimitPerDomain}),
	}, w.logger.Named("retriever"))

	opts := []resolver.Option{
		resolver.WithPlugins(plugins.Default(), w.cfg.Plugins),
		resolver.WithLogger(w.logger.Named("resolver")),
	}
	if w.cfg.Features.History {
		opts = append(opts, resolver.WithErrorLog(store))
	}
	return resolver.New(ret, title.Features{
		ReportMetadata: w.cfg.Features.ReportMetadata,
		ReportMime:     w.cfg.Features.ReportMime,
	}, opts...)
}

// OpenStore selects the history backend for cfg: Postgres when configured,
// a SQLite file when history is on, otherwise an in-memory SQLite database.
func OpenStore(ctx context.Context, cfg config.Config, clock bot.Clock) (history.Store, error) {
	if cfg.Database.Type == config.DBPostgres {
		store, err := postgres.New(ctx, postgres.Config{DSN: cfg.Database.DSN}, clock)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return store, nil
	}
	path, err := cfg.DatabasePath()
	if err != nil {
		return nil, fmt.Errorf("database path: %w", err)
	}
	store, err := sqlite.Open(path, clock)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return store, nil
}
