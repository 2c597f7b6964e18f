package buildinfo

import "testing"

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "urlbot/"+Version {
		t.Fatalf("unexpected user agent %q", got)
	}
}
