package plugins

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JakeFAU/urlbot/internal/config"
)

// VimeoBaseURL is the Vimeo API root.
const VimeoBaseURL = "https://api.vimeo.com/"

// Vimeo resolves video names via the Vimeo API.
type Vimeo struct {
	BaseURL string
}

// NewVimeo returns the plugin pointed at the public API.
func NewVimeo() *Vimeo {
	return &Vimeo{BaseURL: VimeoBaseURL}
}

// Name implements Plugin.
func (*Vimeo) Name() string { return "vimeo" }

// Check implements Plugin.
func (*Vimeo) Check(cfg config.PluginsConfig, u *url.URL) bool {
	if cfg.Vimeo.APIKey == "" {
		return false
	}
	switch host(u) {
	case "vimeo.com", "www.vimeo.com":
		return true
	}
	return false
}

// Evaluate implements Plugin.
func (v *Vimeo) Evaluate(ctx context.Context, rt Runtime, u *url.URL) (string, error) {
	id := strings.TrimPrefix(u.Path, "/")
	header := http.Header{}
	header.Set("Authorization", "bearer "+rt.Config.Vimeo.APIKey)

	var resp struct {
		Name string `json:"name"`
	}
	if err := getJSON(ctx, rt.Fetcher, v.BaseURL+"videos/"+url.PathEscape(id), header, &resp); err != nil {
		return "", fmt.Errorf("vimeo: %w", err)
	}
	if strings.TrimSpace(resp.Name) == "" {
		return "", fmt.Errorf("vimeo: %w", ErrEmptyTitle)
	}
	return resp.Name, nil
}
