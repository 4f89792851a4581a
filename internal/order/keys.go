package order

import (
	"math"
	"strconv"
	"strings"
)

// ExtractTrailingNumber returns the value of the last maximal run of decimal
// digits in name, wherever it sits ("tile_0003.png" -> 3). Leading zeros are
// ignored and runs that overflow int64 saturate at math.MaxInt64.
func ExtractTrailingNumber(name string) (int64, bool) {
	end := -1
	for i := len(name) - 1; i >= 0; i-- {
		if isDigit(name[i]) {
			end = i + 1
			break
		}
	}
	if end < 0 {
		return 0, false
	}
	start := end - 1
	for start > 0 && isDigit(name[start-1]) {
		start--
	}

	digits := strings.TrimLeft(name[start:end], "0")
	if digits == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return math.MaxInt64, true
	}
	return n, true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
