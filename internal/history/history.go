// Package history defines the post log that answers whether a URL was
// announced before, and where.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout renders creation timestamps, e.g. "Mon Jan  2 15:04:05 2006".
const TimeLayout = time.ANSIC

// Entry is one announcement to record.
type Entry struct {
	Title   string
	URL     string
	User    string
	Channel string
}

// PrevPost describes the most recent earlier announcement of a URL.
type PrevPost struct {
	User        string
	Channel     string
	TimeCreated string
}

// ErrorInfo is the diagnostic context stored for a failed resolution.
type ErrorInfo struct {
	Error       string `json:"error"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	FinalURL    string `json:"final_url,omitempty"`
}

// JSON encodes the info for the errors relation.
func (e ErrorInfo) JSON() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal error info: %w", err)
	}
	return b, nil
}

// Store persists posts and resolution errors.
type Store interface {
	AddLog(ctx context.Context, entry Entry) error
	// CheckPrepost returns nil when url was never logged.
	CheckPrepost(ctx context.Context, url string) (*PrevPost, error)
	LogError(ctx context.Context, url string, info ErrorInfo) error
	Close() error
}

// Timestamp formats t for storage.
func Timestamp(t time.Time) string {
	return t.Format(TimeLayout)
}
