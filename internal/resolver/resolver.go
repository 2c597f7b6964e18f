// Package resolver turns one URL into a title: domain plugins first, then a
// plain fetch followed by content extraction.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/urlbot/internal/config"
	"github.com/JakeFAU/urlbot/internal/history"
	"github.com/JakeFAU/urlbot/internal/metrics"
	"github.com/JakeFAU/urlbot/internal/plugins"
	"github.com/JakeFAU/urlbot/internal/retriever"
	"github.com/JakeFAU/urlbot/internal/title"
)

// Fetcher issues HTTP requests; *retriever.Retriever satisfies it.
type Fetcher interface {
	plugins.Fetcher
	Request(ctx context.Context, rawURL string) (*http.Response, error)
}

// ErrorLogger records failed resolutions; history.Store satisfies it.
type ErrorLogger interface {
	LogError(ctx context.Context, url string, info history.ErrorInfo) error
}

// Resolver resolves URLs to human readable strings.
type Resolver struct {
	fetcher   Fetcher
	plugins   []plugins.Plugin
	pluginCfg config.PluginsConfig
	features  title.Features
	errLog    ErrorLogger
	logger    *zap.Logger
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithPlugins replaces the plugin registry.
func WithPlugins(list []plugins.Plugin, cfg config.PluginsConfig) Option {
	return func(r *Resolver) {
		r.plugins = list
		r.pluginCfg = cfg
	}
}

// WithErrorLog records every failure into l.
func WithErrorLog(l ErrorLogger) Option {
	return func(r *Resolver) { r.errLog = l }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New builds a Resolver without plugins unless WithPlugins is given.
func New(f Fetcher, features title.Features, opts ...Option) *Resolver {
	r := &Resolver{fetcher: f, features: features, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the summary string for rawURL.
//
// Every plugin that claims the URL is tried in order and the first success
// wins. When at least one plugin claimed it and all failed, the last plugin
// error is returned and no generic fetch happens.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	var pluginErr error
	rt := plugins.Runtime{Fetcher: r.fetcher, Config: r.pluginCfg}
	for _, p := range r.plugins {
		if !p.Check(r.pluginCfg, u) {
			continue
		}
		t, err := p.Evaluate(ctx, rt, u)
		if err == nil {
			metrics.ObserveResolution(rawURL, "title")
			return t, nil
		}
		r.logger.Warn("plugin failed", zap.String("plugin", p.Name()), zap.String("url", rawURL), zap.Error(err))
		pluginErr = err
	}
	if pluginErr != nil {
		r.fail(ctx, rawURL, history.ErrorInfo{Error: pluginErr.Error()})
		return "", pluginErr
	}

	resp, err := r.fetcher.Request(ctx, rawURL)
	if err != nil {
		info := history.ErrorInfo{Error: err.Error()}
		var statusErr *retriever.StatusError
		if errors.As(err, &statusErr) {
			info.Status = statusErr.Code
			info.FinalURL = statusErr.URL
		}
		r.fail(ctx, rawURL, info)
		return "", err
	}
	defer resp.Body.Close()

	t, err := title.Extract(ctx, resp, r.features)
	if err != nil {
		r.fail(ctx, rawURL, history.ErrorInfo{
			Error:       err.Error(),
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			FinalURL:    finalURL(resp),
		})
		return "", err
	}
	metrics.ObserveResolution(rawURL, "title")
	return t, nil
}

func (r *Resolver) fail(ctx context.Context, rawURL string, info history.ErrorInfo) {
	metrics.ObserveResolution(rawURL, "error")
	if r.errLog == nil {
		return
	}
	if err := r.errLog.LogError(ctx, rawURL, info); err != nil {
		r.logger.Error("log resolution error", zap.String("url", rawURL), zap.Error(err))
	}
}

func finalURL(resp *http.Response) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	return resp.Request.URL.String()
}
