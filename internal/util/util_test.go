package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"512", 512},
		{"1K", 1024},
		{"6MB", 6 * 1024 * 1024},
		{"1.5m", 1536 * 1024},
		{" 2 GB ", 2 * 1024 * 1024 * 1024},
		{"3b", 3},
		{"1T", 1 << 40},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "MB", "12XB", "5BB", "1..2M"} {
		_, err := ParseSize(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatBytesToHumanReadable(t *testing.T) {
	assert.Equal(t, "999 B", FormatBytesToHumanReadable(999))
	assert.Equal(t, "1023 B", FormatBytesToHumanReadable(1023))
	assert.Equal(t, "1.50 KB", FormatBytesToHumanReadable(1536))
	assert.Equal(t, "6.00 MB", FormatBytesToHumanReadable(6<<20))

	// what ParseSize reads back is what was printed
	n, err := ParseSize(FormatBytesToHumanReadable(28 << 20))
	require.NoError(t, err)
	assert.Equal(t, int64(28<<20), n)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "image", SafeBase(""))
	assert.Equal(t, "a.png", SafeBase("/x/y/a.png"))
	assert.Equal(t, "tile_01", TrimExt("tile_01.jpeg"))
}
