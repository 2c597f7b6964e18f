package title

import (
	"strconv"

	"github.com/dustin/go-humanize"
)

var sizeUnits = []string{"KB", "MB", "GB", "TB"}

// FormatSize renders n bytes in 1024-based units with at most two decimals
// and no space, e.g. 16B or 1.31KB.
func FormatSize(n int64) string {
	if n < 1024 {
		return strconv.FormatInt(n, 10) + "B"
	}
	f := float64(n)
	unit := ""
	for _, u := range sizeUnits {
		f /= 1024
		unit = u
		if f < 1024 {
			break
		}
	}
	return humanize.FtoaWithDigits(f, 2) + unit
}
