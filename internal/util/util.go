// Package util holds small helpers for byte sizes and file names shared by
// the config, slicer and file handling code.
package util

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// byteUnits are binary multiples, so "6MB" in a config and "6.00 MB" in a
// log line mean the same amount.
var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// ParseSize turns a size such as "6MB", "900K" or "1.5m" into bytes. Units
// are case-insensitive, the trailing "B" is optional and a bare number is
// taken as bytes.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	split := strings.IndexFunc(s, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
	if split == -1 {
		split = len(s)
	}
	num, unit := s[:split], strings.TrimSpace(s[split:])
	if num == "" {
		return 0, fmt.Errorf("size %q has no number", s)
	}
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("size %q: %w", s, err)
	}

	if !strings.HasSuffix(unit, "B") {
		unit += "B"
	}
	for i, u := range byteUnits {
		if u == unit {
			return int64(value * float64(int64(1)<<(10*i))), nil
		}
	}
	return 0, fmt.Errorf("size %q: unknown unit (use B, K/KB, M/MB, G/GB, T/TB)", s)
}

// FormatBytesToHumanReadable renders n with the largest unit that keeps the
// value at or above 1, e.g. "999 B" or "1.46 KB".
func FormatBytesToHumanReadable(n int64) string {
	v, i := float64(n), 0
	for v >= 1024 && i < len(byteUnits)-1 {
		v /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%.2f %s", v, byteUnits[i])
}

// SafeBase returns the base name of a path, or "image" when there is none.
func SafeBase(name string) string {
	if name == "" {
		return "image"
	}
	return filepath.Base(name)
}

// TrimExt drops the extension of a file name.
func TrimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
