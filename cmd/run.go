package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/urlbot/internal/api"
	"github.com/JakeFAU/urlbot/internal/clock/system"
	"github.com/JakeFAU/urlbot/internal/config"
	"github.com/JakeFAU/urlbot/internal/dispatcher"
	"github.com/JakeFAU/urlbot/internal/id/uuid"
	"github.com/JakeFAU/urlbot/internal/logging"
	"github.com/JakeFAU/urlbot/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// errNoNetworks is returned when no loaded configuration is enabled.
var errNoNetworks = errors.New("no enabled networks")

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connects to every enabled network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd, opts)
		},
	}
}

func runBot(cmd *cobra.Command, opts *rootOptions) error {
	cfgs, created, err := loadConfigs(opts)
	if err != nil {
		return err
	}

	development := opts.verbose
	for _, cfg := range cfgs {
		development = development || cfg.Logging.Development
	}
	logger, err := logging.New(development)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	for _, p := range created {
		logger.Info("wrote default configuration", zap.String("path", p))
	}

	clock := system.New()
	ids := uuid.New()
	var (
		workers []*worker.Worker
		runners []dispatcher.Runner
	)
	for _, cfg := range cfgs {
		if !cfg.Network.Enable {
			logger.Info("network disabled, skipping", zap.String("network", cfg.Network.Name), zap.String("path", cfg.Path))
			continue
		}
		w := worker.New(cfg, clock, ids, nil, logging.ForNetwork(logger, "worker", cfg.Network.Name))
		workers = append(workers, w)
		runners = append(runners, w)
	}
	if len(runners) == 0 {
		return errNoNetworks
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.statusAddr != "" {
		srv := &http.Server{
			Addr:              opts.statusAddr,
			Handler:           api.NewServer(anyConnected(workers), logger.Named("api")).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("status server started", zap.String("addr", opts.statusAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("status server shutdown error", zap.Error(err))
			}
		}()
	}

	logger.Info("starting", zap.Int("networks", len(runners)))
	err = dispatcher.New(runners, logger.Named("dispatcher")).Run(ctx)
	logger.Info("shutdown complete")
	return err
}

// loadConfigs gathers every --conf file, the files found in --conf-dir and,
// when neither is given, the default file in the user configuration directory.
// Missing files are created with defaults and reported in created.
func loadConfigs(opts *rootOptions) (cfgs []config.Config, created []string, err error) {
	paths := append([]string(nil), opts.confs...)
	if opts.confDir != "" {
		found, err := config.FindConfigsInDir(config.ExpandTilde(opts.confDir))
		if err != nil {
			return nil, nil, err
		}
		paths = append(paths, found...)
	}
	if len(opts.confs) == 0 && opts.confDir == "" {
		dir, err := config.DefaultDir()
		if err != nil {
			return nil, nil, err
		}
		paths = append(paths, filepath.Join(dir, "config.toml"))
	}

	for _, p := range paths {
		p = config.ExpandTilde(p)
		wrote, err := config.EnsureDefault(p)
		if err != nil {
			return nil, nil, err
		}
		if wrote {
			created = append(created, p)
		}
		cfg, err := config.Load(p)
		if err != nil {
			return nil, nil, fmt.Errorf("load %s: %w", p, err)
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, created, nil
}

func anyConnected(workers []*worker.Worker) api.ReadyFunc {
	return func() bool {
		for _, w := range workers {
			if w.Connected() {
				return true
			}
		}
		return false
	}
}
