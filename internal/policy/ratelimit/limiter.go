// Package ratelimit spaces out fetches to the same registrable domain.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/urlbot/internal/metrics"
)

// Config holds rate limiter configuration.
type Config struct {
	// PerSecond is the sustained request rate per domain; <= 0 disables limiting.
	PerSecond float64
	// Burst defaults to 1.
	Burst int
}

// minIdle is the shortest time a bucket is kept after its last use.
const minIdle = time.Minute

// Limiter keeps one token bucket per registrable domain, so a.example.com and
// b.example.com share a budget. Buckets idle long enough to have refilled are
// dropped, since a fresh bucket behaves the same.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastUsed time.Time
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Limit(cfg.PerSecond)
	if cfg.PerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	idle := minIdle
	if limit != rate.Inf {
		if refill := time.Duration(float64(burst) / float64(limit) * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &Limiter{
		buckets:   make(map[string]*bucket),
		limit:     limit,
		burst:     burst,
		idle:      idle,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Wait blocks until rawURL's domain has a token or ctx ends.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if l.limit == rate.Inf {
		return nil
	}
	domain := Domain(rawURL)

	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	b, ok := l.buckets[domain]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[domain] = b
	}
	b.lastUsed = now
	l.mu.Unlock()

	start := time.Now()
	if err := b.lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", domain, err)
	}
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(domain, d)
	}
	return nil
}

// sweep drops buckets unused for longer than l.idle. Callers hold l.mu.
func (l *Limiter) sweep(now time.Time) {
	for domain, b := range l.buckets {
		if now.Sub(b.lastUsed) >= l.idle {
			delete(l.buckets, domain)
		}
	}
	l.lastSweep = now
}

// Domain returns the bucket key for rawURL: the registrable domain (eTLD+1)
// when there is one, else the lower-cased host, else "unknown".
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	host := strings.ToLower(u.Hostname())
	if net.ParseIP(host) != nil {
		return host
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}
