package title

import (
	"bytes"
	"fmt"
	"image"
	"strconv"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// ImageMetadata reports "<mime> <width>×<height>" for a recognised image header.
func ImageMetadata(data []byte) (string, bool) {
	if w, h, ok := pnmSize(data); ok {
		return fmt.Sprintf("image/x-portable-anymap %d×%d", w, h), true
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("image/%s %d×%d", format, cfg.Width, cfg.Height), true
}

// pnmSize reads width and height from a netpbm (P1 to P6) header.
func pnmSize(data []byte) (int, int, bool) {
	if len(data) < 3 || data[0] != 'P' || data[1] < '1' || data[1] > '6' || !pnmSpace(data[2]) {
		return 0, 0, false
	}
	rest := data[2:]
	var dims [2]int
	for i := range dims {
		var tok []byte
		tok, rest = pnmToken(rest)
		n, err := strconv.Atoi(string(tok))
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		dims[i] = n
	}
	return dims[0], dims[1], true
}

// pnmToken skips whitespace and '#' comments and returns the next token.
func pnmToken(b []byte) ([]byte, []byte) {
	for len(b) > 0 {
		switch {
		case pnmSpace(b[0]):
			b = b[1:]
		case b[0] == '#':
			if i := bytes.IndexAny(b, "\r\n"); i >= 0 {
				b = b[i:]
			} else {
				b = nil
			}
		default:
			end := 0
			for end < len(b) && !pnmSpace(b[end]) && b[end] != '#' {
				end++
			}
			return b[:end], b[end:]
		}
	}
	return nil, nil
}

func pnmSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
