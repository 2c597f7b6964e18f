// Package retriever performs bounded HTTP fetches: per-attempt timeout, capped
// redirect following, cookie persistence across the chain and retry on server
// errors.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/JakeFAU/urlbot/internal/buildinfo"
	"github.com/JakeFAU/urlbot/internal/metrics"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRedirects = 10
	DefaultAcceptLang   = "en"

	maxCookiesPerResponse = 32
)

var (
	// ErrRedirectLimit is returned when a chain exceeds the redirect limit.
	ErrRedirectLimit = errors.New("too many redirects")
	// ErrMissingLocation is returned for a redirect without a Location header.
	ErrMissingLocation = errors.New("redirect without location header")
)

// StatusError reports a terminal non-success HTTP status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Waiter delays requests to a host; ratelimit.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Options configures a Retriever.
type Options struct {
	Timeout      time.Duration
	MaxRedirects int
	MaxRetries   int
	RetryDelay   time.Duration
	AcceptLang   string
	UserAgent    string
	Limiter      Waiter
	// Transport overrides the default transport, mainly in tests.
	Transport http.RoundTripper
}

// Retriever issues GET requests according to its Options.
type Retriever struct {
	opts      Options
	transport http.RoundTripper
	logger    *zap.Logger
}

// New builds a Retriever, filling unset options with defaults.
func New(opts Options, logger *zap.Logger) *Retriever {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRedirects < 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.AcceptLang == "" {
		opts.AcceptLang = DefaultAcceptLang
	}
	if opts.UserAgent == "" {
		opts.UserAgent = buildinfo.UserAgent()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := opts.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}
	return &Retriever{opts: opts, transport: transport, logger: logger}
}

// Options returns the effective options.
func (r *Retriever) Options() Options {
	return r.opts
}

// Request fetches rawURL. The caller must close the response body.
func (r *Retriever) Request(ctx context.Context, rawURL string) (*http.Response, error) {
	return r.RequestWithHeaders(ctx, rawURL, nil)
}

// RequestWithHeaders fetches rawURL with extra request headers.
//
// A 2xx response is returned as is. A 5xx response is retried after the retry
// delay until the retry budget is spent, after which the last response is
// returned without error so the caller may still inspect it. Any other status
// is a *StatusError.
func (r *Retriever) RequestWithHeaders(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	jar, err := newSessionJar()
	if err != nil {
		return nil, err
	}
	client := &http.Client{
		Transport: r.transport,
		Timeout:   r.opts.Timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) > r.opts.MaxRedirects {
				return ErrRedirectLimit
			}
			return nil
		},
	}

	for attempt := 0; ; attempt++ {
		if r.opts.Limiter != nil {
			if err := r.opts.Limiter.Wait(ctx, rawURL); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("User-Agent", r.opts.UserAgent)
		req.Header.Set("Accept-Language", r.opts.AcceptLang)
		req.Header.Set("Accept-Encoding", "identity")

		resp, err := client.Do(req)
		if err != nil {
			metrics.ObserveFetchAttempt(rawURL, 0)
			return nil, fmt.Errorf("request %s: %w", rawURL, err)
		}
		metrics.ObserveFetchAttempt(rawURL, resp.StatusCode)

		switch code := resp.StatusCode; {
		case code >= 200 && code < 300:
			return resp, nil
		case code >= 500 && attempt < r.opts.MaxRetries:
			discard(resp)
			metrics.ObserveRetry(rawURL)
			r.logger.Debug("server error, retrying",
				zap.String("url", rawURL),
				zap.Int("status", code),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", r.opts.RetryDelay),
			)
			if err := sleep(ctx, r.opts.RetryDelay); err != nil {
				return nil, err
			}
		case code >= 500:
			return resp, nil
		case code >= 300 && code < 400:
			discard(resp)
			if resp.Header.Get("Location") == "" {
				return nil, fmt.Errorf("%s: %w", resp.Request.URL, ErrMissingLocation)
			}
			return nil, &StatusError{URL: resp.Request.URL.String(), Code: code}
		default:
			discard(resp)
			return nil, &StatusError{URL: resp.Request.URL.String(), Code: code}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		DisableCompression:    true,
	}
}

// sessionJar bounds how many cookies one response may add.
type sessionJar struct {
	*cookiejar.Jar
}

func newSessionJar() (*sessionJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &sessionJar{Jar: jar}, nil
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if len(cookies) > maxCookiesPerResponse {
		cookies = cookies[:maxCookiesPerResponse]
	}
	j.Jar.SetCookies(u, cookies)
}
