package transfer

import (
	"math"
	"strconv"
	"strings"
)

var speedUnits = []string{"B/s", "KB/s", "MB/s", "GB/s"}

// FormatSpeed renders bytes per second with 1024-based units and one
// decimal, dropping a trailing ".0". Zero renders as "0 KB/s".
func FormatSpeed(bps float64) string {
	if bps <= 0 || math.IsNaN(bps) {
		return "0 KB/s"
	}
	i := 0
	for bps >= 1024 && i < len(speedUnits)-1 {
		bps /= 1024
		i++
	}
	s := strconv.FormatFloat(bps, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0") + " " + speedUnits[i]
}

// percent returns loaded as a share of total, rounded and capped at 100.
func percent(loaded, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(loaded) * 100 / float64(total)))
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}
