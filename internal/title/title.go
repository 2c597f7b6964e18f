// Package title turns an HTTP response into a short human readable summary:
// the page title, image dimensions or the MIME type and size.
package title

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Body budget: the response is read in ChunkBytes pieces, at most ChunksMax of them.
const (
	ChunkBytes = 100 * 1024
	ChunksMax  = 10
)

// ErrNoContent is returned when nothing could be extracted within the budget.
var ErrNoContent = errors.New("failed to parse title")

// Features selects the optional summaries.
type Features struct {
	ReportMetadata bool
	ReportMime     bool
}

// Extract reads resp.Body progressively and returns the first summary that
// can be derived. It does not close the body.
func Extract(ctx context.Context, resp *http.Response, features Features) (string, error) {
	contentType := resp.Header.Get("Content-Type")
	mediaType := ""
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			mediaType = strings.ToLower(mt)
		}
	}

	buf := make([]byte, 0, ChunkBytes)
	chunk := make([]byte, ChunkBytes)
	for i := 0; i < ChunksMax; i++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("extract: %w", err)
		}
		n, err := io.ReadFull(resp.Body, chunk)
		buf = append(buf, chunk[:n]...)
		done := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
		if err != nil && !done {
			return "", fmt.Errorf("read body: %w", err)
		}
		if s, ok := summarize(buf, done || i == ChunksMax-1, contentType, mediaType, resp.ContentLength, features); ok {
			return s, nil
		}
		if done {
			break
		}
	}
	return "", fmt.Errorf("%s: %w", requestURL(resp), ErrNoContent)
}

func summarize(buf []byte, final bool, contentType, mediaType string, contentLength int64, f Features) (string, bool) {
	if t, ok := FromHTML(buf, contentType, !final); ok {
		return t, true
	}
	switch {
	case mediaType == "" || mediaType == "text/html":
		return "", false
	case strings.HasPrefix(mediaType, "image/"):
		if f.ReportMetadata {
			if s, ok := ImageMetadata(buf); ok {
				return s, true
			}
		}
	}
	if f.ReportMime {
		size := contentLength
		if size < 0 {
			if !final {
				return "", false
			}
			size = int64(len(buf))
		}
		return fmt.Sprintf("%s %s", mediaType, FormatSize(size)), true
	}
	return "", false
}

func requestURL(resp *http.Response) string {
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return "response"
}
