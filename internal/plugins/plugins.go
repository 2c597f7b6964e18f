// Package plugins holds per-domain title resolvers that query a provider API
// instead of scraping the page.
package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/JakeFAU/urlbot/internal/config"
	"github.com/JakeFAU/urlbot/internal/retriever"
)

const maxAPIResponseBytes = 1 << 20

// ErrEmptyTitle is returned when the provider answers without a title.
var ErrEmptyTitle = errors.New("empty title")

// Fetcher performs one HTTP GET; *retriever.Retriever satisfies it.
type Fetcher interface {
	RequestWithHeaders(ctx context.Context, rawURL string, header http.Header) (*http.Response, error)
}

// Runtime is what a plugin needs to evaluate a URL.
type Runtime struct {
	Fetcher Fetcher
	Config  config.PluginsConfig
}

// Plugin resolves titles for the URLs it claims.
type Plugin interface {
	Name() string
	// Check reports whether the plugin is configured and claims u.
	Check(cfg config.PluginsConfig, u *url.URL) bool
	Evaluate(ctx context.Context, rt Runtime, u *url.URL) (string, error)
}

// Default returns the registry in priority order.
func Default() []Plugin {
	return []Plugin{NewImgur(), NewYouTube(), NewVimeo()}
}

// Find returns the plugin called name from list.
func Find(list []Plugin, name string) (Plugin, bool) {
	for _, p := range list {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Names lists plugin names in registry order.
func Names(list []Plugin) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.Name())
	}
	return out
}

func host(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}

// getJSON fetches rawURL and decodes a JSON body into out.
func getJSON(ctx context.Context, f Fetcher, rawURL string, header http.Header, out any) error {
	resp, err := f.RequestWithHeaders(ctx, rawURL, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &retriever.StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAPIResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode api response: %w", err)
	}
	return nil
}
