package utils

import (
	"math"
	"strconv"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatSize renders a byte count with binary (1024) units, at most two
// decimals and no trailing zeros: 1536 -> "1.5 KB". Anything past TB stays in TB.
func FormatSize(bytes int64) string {
	value := float64(bytes)
	order := 0
	for value >= 1024 && order < len(sizeUnits)-1 {
		order++
		value /= 1024
	}

	rounded := math.Round(value*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + sizeUnits[order]
}
