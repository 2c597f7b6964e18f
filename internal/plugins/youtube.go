package plugins

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/urlbot/internal/config"
)

// YouTubeBaseURL is the Data API v3 root.
const YouTubeBaseURL = "https://www.googleapis.com/youtube/v3/"

// ErrNoItems is returned when the API answers with an empty item list.
var ErrNoItems = errors.New("no list items in response")

// YouTube resolves video titles via the YouTube Data API.
type YouTube struct {
	BaseURL string
}

// NewYouTube returns the plugin pointed at the public API.
func NewYouTube() *YouTube {
	return &YouTube{BaseURL: YouTubeBaseURL}
}

// Name implements Plugin.
func (*YouTube) Name() string { return "youtube" }

// Check implements Plugin.
func (*YouTube) Check(cfg config.PluginsConfig, u *url.URL) bool {
	if cfg.YouTube.APIKey == "" {
		return false
	}
	switch host(u) {
	case "youtube.com", "www.youtube.com", "music.youtube.com", "youtu.be":
		return true
	}
	return false
}

// Evaluate implements Plugin.
func (y *YouTube) Evaluate(ctx context.Context, rt Runtime, u *url.URL) (string, error) {
	var id string
	switch host(u) {
	case "youtu.be":
		id = strings.TrimPrefix(u.Path, "/")
	case "youtube.com", "www.youtube.com", "music.youtube.com":
		id = u.Query().Get("v")
	default:
		return "", fmt.Errorf("youtube: unknown domain %q", u.Host)
	}

	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("id", id)
	q.Set("key", rt.Config.YouTube.APIKey)

	var resp struct {
		Items []struct {
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := getJSON(ctx, rt.Fetcher, y.BaseURL+"videos?"+q.Encode(), nil, &resp); err != nil {
		return "", fmt.Errorf("youtube: %w", err)
	}
	if len(resp.Items) == 0 {
		return "", fmt.Errorf("youtube: %w", ErrNoItems)
	}
	if strings.TrimSpace(resp.Items[0].Snippet.Title) == "" {
		return "", fmt.Errorf("youtube: %w", ErrEmptyTitle)
	}
	return resp.Items[0].Snippet.Title, nil
}
