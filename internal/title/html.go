package title

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

var closeTag = []byte("</title")

// FromHTML finds the first <title> element in page and normalises it.
// With needClose set the title is only accepted once its closing tag is in
// page, so a partial download cannot yield a truncated title.
func FromHTML(page []byte, contentType string, needClose bool) (string, bool) {
	if needClose && !bytes.Contains(bytes.ToLower(page), closeTag) {
		return "", false
	}

	var r io.Reader = bytes.NewReader(page)
	// a guess from the first KiB only overrides UTF-8 when the bytes are not UTF-8
	enc, name, certain := charset.DetermineEncoding(page, contentType)
	if name != "utf-8" && (certain || !validUTF8(page)) {
		r = enc.NewDecoder().Reader(r)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", false
	}
	sel := doc.Find("title").First()
	if sel.Length() == 0 {
		return "", false
	}
	t := Normalize(sel.Text())
	return t, t != ""
}

// Normalize collapses a multi-line title into one line of trimmed segments.
func Normalize(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	parts := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, " ")
}

// validUTF8 reports whether page is UTF-8, ignoring a rune cut off by the end
// of the current chunk.
func validUTF8(page []byte) bool {
	for i := len(page) - 1; i >= 0 && i >= len(page)-utf8.UTFMax; i-- {
		if utf8.RuneStart(page[i]) {
			if !utf8.FullRune(page[i:]) {
				page = page[:i]
			}
			break
		}
	}
	return utf8.Valid(page)
}
