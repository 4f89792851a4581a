package colorclass

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"board-tiler/internal/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestClassify_Extremes(t *testing.T) {
	c := New(DefaultConfig())

	white := c.Classify(solid(120, 80, color.White))
	assert.Equal(t, order.ColorCode{Group: 0, Brightness: 0, Saturation: 0}, white)

	black := c.Classify(solid(120, 80, color.Black))
	assert.Equal(t, order.ColorCode{Group: 0, Brightness: 999, Saturation: 0}, black)

	red := c.Classify(solid(64, 64, color.NRGBA{R: 255, A: 255}))
	assert.Equal(t, 1, red.Group)
	assert.Equal(t, 99, red.Saturation)
	// luma of pure red is 0.2126*255: (1-0.2126)*999 = 786.6
	assert.Equal(t, 787, red.Brightness)
}

func TestClassify_GrayThreshold(t *testing.T) {
	// spread 10/255 boosted 4x -> 0.157 -> code 16
	tinted := solid(50, 50, color.NRGBA{R: 130, G: 125, B: 120, A: 255})

	cfg := DefaultConfig()
	got := New(cfg).Classify(tinted)
	assert.Equal(t, 16, got.Saturation)
	assert.Equal(t, 0, got.Group)

	cfg.GrayThreshold = 10
	got = New(cfg).Classify(tinted)
	assert.Equal(t, 1, got.Group)
}

func TestClassify_CropTopIgnoresHeader(t *testing.T) {
	// white header over a black body
	img := solid(100, 100, color.Black)
	for y := 0; y < 20; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.White)
		}
	}
	cfg := DefaultConfig()
	cfg.BlurSigma = 0
	cfg.CropTop = 0.3
	got := New(cfg).Classify(img)
	assert.Equal(t, 999, got.Brightness)

	cfg.CropTop = 0
	got = New(cfg).Classify(img)
	assert.Less(t, got.Brightness, 999)
}

func TestClassify_Fallbacks(t *testing.T) {
	c := New(DefaultConfig())
	assert.Equal(t, Neutral, c.Classify(nil))
	assert.Equal(t, Neutral, c.Classify(image.NewNRGBA(image.Rect(0, 0, 0, 0))))

	code, err := c.ClassifyBytes([]byte("not an image"))
	assert.Error(t, err)
	assert.Equal(t, Neutral, code)
}

func TestClassify_CodeRoundTripsThroughTitle(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(40, 40, color.NRGBA{R: 20, G: 90, B: 200, A: 255})))

	c := New(DefaultConfig())
	code, err := c.ClassifyBytes(buf.Bytes())
	require.NoError(t, err)
	title := order.FormatColorTitle(code, "ocean.png")

	parsed, rest, ok := order.ParseColorTitle(title, c.GrayThreshold())
	require.True(t, ok)
	assert.Equal(t, code, parsed)
	assert.Equal(t, "ocean.png", rest)
}
