package message

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"
)

// characters RFC 1738 does not permit in a URL
var unsafeChars = regexp.MustCompile("[{}|\\\\^~\\[\\]`<>\"]")

func containsUnsafeChars(token string) bool {
	return unsafeChars.MatchString(token)
}

func hasScheme(token string) bool {
	u, err := url.Parse(token)
	return err == nil && u.Scheme != ""
}

func containsURLs(text string) bool {
	for _, tok := range strings.Fields(text) {
		if hasScheme(tok) {
			return true
		}
	}
	return false
}

// isPing reports whether text mentions nick as a whole word.
func isPing(nick, text string) bool {
	if nick == "" {
		return false
	}
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(nick) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// addSchemeForTLD turns a scheme-less token such as "example.com/x" into
// "http://example.com/x" when its host ends in a known top-level domain.
func addSchemeForTLD(token string) (string, bool) {
	if hasScheme(token) {
		return "", false
	}
	first, _ := utf8.DecodeRuneInString(token)
	if !unicode.IsLetter(first) {
		return "", false
	}

	candidate := "http://" + token
	u, err := url.Parse(candidate)
	if err != nil || u.User != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if !strings.Contains(host, ".") {
		return "", false
	}
	tld := host[strings.LastIndex(host, ".")+1:]
	if !isTLD(tld) {
		return "", false
	}
	return candidate, true
}

func isTLD(label string) bool {
	if label == "" {
		return false
	}
	suffix, icann := publicsuffix.PublicSuffix(label)
	return icann && suffix == label
}

// isFetchable accepts absolute http(s) URLs with a host.
func isFetchable(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Opaque == "" && u.Hostname() != ""
}

// normalizeURL keys a URL for in-message de-duplication: scheme and host are
// lower-cased, default ports and the fragment dropped and the query sorted.
func normalizeURL(u *url.URL) string {
	n := *u
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	if n.Scheme == "http" {
		n.Host = strings.TrimSuffix(n.Host, ":80")
	}
	if n.Scheme == "https" {
		n.Host = strings.TrimSuffix(n.Host, ":443")
	}
	n.Fragment = ""
	n.RawFragment = ""
	if n.RawQuery != "" {
		n.RawQuery = sortQuery(n.RawQuery)
	}
	return n.String()
}

func sortQuery(raw string) string {
	q, err := url.ParseQuery(raw)
	if err != nil {
		parts := strings.Split(raw, "&")
		sort.Strings(parts)
		return strings.Join(parts, "&")
	}
	return q.Encode()
}

// formatPrepost renders a repost notice.
func formatPrepost(title, when, user, channel string) string {
	return fmt.Sprintf("⤷ %s → %s %s (%s)", title, when, user, channel)
}

func formatTitle(title string) string {
	return "⤷ " + title
}
