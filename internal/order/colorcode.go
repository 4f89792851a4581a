package order

import (
	"fmt"
	"regexp"
	"strconv"
)

// Color codes travel from the classify/import stage to the sort stage inside
// the item title: "C<2-digit saturation>/<3-digit brightness> <name>".

const (
	MaxBrightness = 999
	MaxSaturation = 99
)

// ColorCode is the sortable color key. Group 0 holds gray-like items, group 1
// chromatic ones. Brightness 0 is the lightest, Saturation 0 the least
// saturated.
type ColorCode struct {
	Group      int
	Brightness int
	Saturation int
}

var colorPrefix = regexp.MustCompile(`^C(\d{2})/(\d{3})(?: |$)`)

// GroupFor maps a saturation code to its group.
func GroupFor(saturation, grayThreshold int) int {
	if saturation <= grayThreshold {
		return 0
	}
	return 1
}

// FormatColorTitle prefixes name with the color code. An existing prefix is
// replaced rather than stacked.
func FormatColorTitle(c ColorCode, name string) string {
	return fmt.Sprintf("C%02d/%03d %s",
		clamp(c.Saturation, 0, MaxSaturation),
		clamp(c.Brightness, 0, MaxBrightness),
		StripColorPrefix(name))
}

// ParseColorTitle reads the color prefix back. rest is the title without it.
func ParseColorTitle(title string, grayThreshold int) (code ColorCode, rest string, ok bool) {
	m := colorPrefix.FindStringSubmatch(title)
	if m == nil {
		return ColorCode{}, title, false
	}
	sat, _ := strconv.Atoi(m[1])
	bri, _ := strconv.Atoi(m[2])
	code = ColorCode{
		Group:      GroupFor(sat, grayThreshold),
		Brightness: bri,
		Saturation: sat,
	}
	return code, title[len(m[0]):], true
}

func StripColorPrefix(title string) string {
	if m := colorPrefix.FindStringIndex(title); m != nil {
		return title[m[1]:]
	}
	return title
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
