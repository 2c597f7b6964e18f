// Package metrics exposes Prometheus collectors for the bot.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	resolutionsTotal           *prometheus.CounterVec
	fetchAttemptsTotal         *prometheus.CounterVec
	fetchRetriesTotal          *prometheus.CounterVec
	announcementsTotal         *prometheus.CounterVec
	connectedWorkers           prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		resolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "urlbot_resolutions_total",
				Help: "Total number of URL resolutions, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "urlbot_fetch_attempts_total",
				Help: "Total number of HTTP fetch attempts, labeled by site and status code.",
			},
			[]string{"site", "code"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "urlbot_fetch_retries_total",
				Help: "Total number of retries after a server error, labeled by site.",
			},
			[]string{"site"},
		)

		announcementsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "urlbot_announcements_total",
				Help: "Total number of lines sent to IRC, labeled by network and kind.",
			},
			[]string{"network", "kind"},
		)

		connectedWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "urlbot_connected_workers",
				Help: "Number of network workers currently connected.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "urlbot_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations, labeled by site.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of status server requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of status server latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// siteLabels maps the hosts with dedicated handlers to their label. Every
// other host shares "other" so chat users cannot grow the label set.
var siteLabels = map[string]string{
	"imgur.com":   "imgur",
	"youtube.com": "youtube",
	"youtu.be":    "youtube",
	"vimeo.com":   "vimeo",
}

// SiteLabel reduces a URL or bare host to a bounded label: a known site name,
// "other", or "unknown" when no host can be parsed.
func SiteLabel(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	host := strings.ToLower(u.Hostname())
	for {
		if label, ok := siteLabels[host]; ok {
			return label
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			return "other"
		}
		host = host[i+1:]
	}
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveResolution counts one resolved URL; outcome is "title" or "error".
func ObserveResolution(site, outcome string) {
	Init()
	resolutionsTotal.WithLabelValues(SiteLabel(site), outcome).Inc()
}

// ObserveFetchAttempt counts one HTTP attempt. Transport failures use code 0.
func ObserveFetchAttempt(site string, code int) {
	Init()
	fetchAttemptsTotal.WithLabelValues(SiteLabel(site), strconv.Itoa(code)).Inc()
}

// ObserveRetry counts one retry after a server error.
func ObserveRetry(site string) {
	Init()
	fetchRetriesTotal.WithLabelValues(SiteLabel(site)).Inc()
}

// ObserveAnnouncement counts one outbound line.
func ObserveAnnouncement(network, kind string) {
	Init()
	announcementsTotal.WithLabelValues(network, kind).Inc()
}

// IncConnectedWorkers increments the connected workers gauge.
func IncConnectedWorkers() {
	Init()
	connectedWorkers.Inc()
}

// DecConnectedWorkers decrements the connected workers gauge.
func DecConnectedWorkers() {
	Init()
	connectedWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(SiteLabel(domain)).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one status server request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
