package plugins

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JakeFAU/urlbot/internal/config"
)

// ImgurBaseURL is the Imgur API v3 root.
const ImgurBaseURL = "https://api.imgur.com/3/"

// Imgur resolves gallery titles via the Imgur API.
type Imgur struct {
	BaseURL string
}

// NewImgur returns the plugin pointed at the public API.
func NewImgur() *Imgur {
	return &Imgur{BaseURL: ImgurBaseURL}
}

// Name implements Plugin.
func (*Imgur) Name() string { return "imgur" }

// Check implements Plugin.
func (*Imgur) Check(cfg config.PluginsConfig, u *url.URL) bool {
	if cfg.Imgur.APIKey == "" {
		return false
	}
	return host(u) == "imgur.com" && strings.HasPrefix(u.Path, "/gallery/")
}

// Evaluate implements Plugin.
func (i *Imgur) Evaluate(ctx context.Context, rt Runtime, u *url.URL) (string, error) {
	header := http.Header{}
	header.Set("Authorization", "Client-ID "+rt.Config.Imgur.APIKey)

	var resp struct {
		Data struct {
			Title string `json:"title"`
		} `json:"data"`
	}
	if err := getJSON(ctx, rt.Fetcher, i.BaseURL+strings.TrimPrefix(u.Path, "/"), header, &resp); err != nil {
		return "", fmt.Errorf("imgur: %w", err)
	}
	if strings.TrimSpace(resp.Data.Title) == "" {
		return "", fmt.Errorf("imgur: %w", ErrEmptyTitle)
	}
	return resp.Data.Title, nil
}
