package message

import (
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// maxLineBytes is the longest reply payload, per RFC 1459.
const maxLineBytes = 510

// highlightMask is a zero width joiner; it stops clients matching the nickname.
const highlightMask = "\u200d"

// maskHighlight inserts highlightMask after the first grapheme cluster of name.
func maskHighlight(name string) string {
	if name == "" {
		return name
	}
	first, rest, _, _ := uniseg.FirstGraphemeClusterInString(name, -1)
	return first + highlightMask + rest
}

// truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	end := n
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end]
}
