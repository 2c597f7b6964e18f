package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSiteLabel(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"known site", "https://imgur.com/gallery/abc", "imgur"},
		{"known subdomain", "https://i.IMGUR.com/abc.png", "imgur"},
		{"short host", "https://youtu.be/abc", "youtube"},
		{"bare host", "vimeo.com", "vimeo"},
		{"lookalike", "https://notvimeo.com/1", "other"},
		{"arbitrary host", "http://example.com/path", "other"},
		{"host with port", "example.com:8080", "other"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SiteLabel(tc.input); got != tc.expected {
				t.Errorf("SiteLabel(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestSiteLabelIsBounded(t *testing.T) {
	allowed := map[string]bool{"imgur": true, "youtube": true, "vimeo": true, "other": true, "unknown": true}
	for i := 0; i < 1000; i++ {
		label := SiteLabel(fmt.Sprintf("https://host-%d.example-%d.test/", i, i))
		if !allowed[label] {
			t.Fatalf("unexpected label %q", label)
		}
	}
}

func TestObserveResolution(t *testing.T) {
	Init()
	Init()

	ObserveResolution("https://www.youtube.com/watch?v=a", "title")
	ObserveResolution("https://youtu.be/b", "title")
	ObserveResolution("https://youtube.com/watch?v=c", "error")

	if val := testutil.ToFloat64(resolutionsTotal.WithLabelValues("youtube", "title")); val != 2 {
		t.Errorf("expected 2 titles, got %f", val)
	}
	if val := testutil.ToFloat64(resolutionsTotal.WithLabelValues("youtube", "error")); val != 1 {
		t.Errorf("expected 1 error, got %f", val)
	}
}

func TestObserveFetchAttemptAndRetry(t *testing.T) {
	ObserveFetchAttempt("http://vimeo.com/1", 500)
	ObserveRetry("http://vimeo.com/1")

	if val := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("vimeo", "500")); val != 1 {
		t.Errorf("expected 1 attempt, got %f", val)
	}
	if val := testutil.ToFloat64(fetchRetriesTotal.WithLabelValues("vimeo")); val != 1 {
		t.Errorf("expected 1 retry, got %f", val)
	}
}

func TestConnectedWorkersGauge(t *testing.T) {
	IncConnectedWorkers()
	IncConnectedWorkers()
	DecConnectedWorkers()
	if val := testutil.ToFloat64(connectedWorkers); val != 1 {
		t.Errorf("expected gauge 1, got %f", val)
	}
	DecConnectedWorkers()
}

// Fuzz test for SiteLabel.
func FuzzSiteLabel(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SiteLabel(orig) == "" {
			t.Errorf("SiteLabel(%q) returned an empty string", orig)
		}
	})
}
