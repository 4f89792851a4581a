// Package colorclass reduces an image to a brightness/saturation color code
// used to cluster board items visually.
package colorclass

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"board-tiler/internal/order"

	"github.com/disintegration/imaging"
)

type Config struct {
	SampleSize      int     // edge of the square the image is reduced to
	BlurSigma       float64 // gaussian sigma applied after reduction
	CropTop         float64 // share of rows dropped from the top
	CropSide        float64 // share of columns dropped from each side
	SaturationBoost float64
	GrayThreshold   int // saturation codes at or below this are gray-like
}

func DefaultConfig() Config {
	return Config{
		SampleSize:      50,
		BlurSigma:       1.0,
		CropTop:         0.25,
		CropSide:        0,
		SaturationBoost: 4,
		GrayThreshold:   20,
	}
}

// Neutral is reported for images whose pixels cannot be read.
var Neutral = order.ColorCode{Group: 0, Brightness: 500, Saturation: 0}

type Classifier struct {
	cfg Config
}

func New(cfg Config) *Classifier {
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultConfig().SampleSize
	}
	return &Classifier{cfg: cfg}
}

func (c *Classifier) GrayThreshold() int { return c.cfg.GrayThreshold }

// Classify computes the color code of img. Nil or empty images yield Neutral.
func (c *Classifier) Classify(img image.Image) order.ColorCode {
	if img == nil || img.Bounds().Empty() {
		return Neutral
	}

	n := c.cfg.SampleSize
	small := imaging.Resize(img, n, n, imaging.Linear)
	if c.cfg.BlurSigma > 0 {
		small = imaging.Blur(small, c.cfg.BlurSigma)
	}

	top := int(math.Round(float64(n) * clampRatio(c.cfg.CropTop)))
	side := int(math.Round(float64(n) * clampRatio(c.cfg.CropSide)))
	if top >= n {
		top = n - 1
	}
	if 2*side >= n {
		side = (n - 1) / 2
	}
	region := imaging.Crop(small, image.Rect(side, top, n-side, n))

	var sumY, sumSpread float64
	px := region.Pix
	count := 0
	for i := 0; i+3 < len(px); i += 4 {
		r, g, b := float64(px[i]), float64(px[i+1]), float64(px[i+2])
		sumY += 0.2126*r + 0.7152*g + 0.0722*b
		sumSpread += math.Max(r, math.Max(g, b)) - math.Min(r, math.Min(g, b))
		count++
	}
	if count == 0 {
		return Neutral
	}

	avgY := sumY / float64(count)
	spread := sumSpread / float64(count) / 255

	brightness := int(math.Round((1 - avgY/255) * order.MaxBrightness))
	saturation := int(math.Round(math.Min(1, spread*c.cfg.SaturationBoost) * order.MaxSaturation))
	brightness = clampInt(brightness, 0, order.MaxBrightness)
	saturation = clampInt(saturation, 0, order.MaxSaturation)

	return order.ColorCode{
		Group:      order.GroupFor(saturation, c.cfg.GrayThreshold),
		Brightness: brightness,
		Saturation: saturation,
	}
}

// ClassifyBytes decodes data and classifies it. When the bytes cannot be
// decoded it returns Neutral together with the decode error.
func (c *Classifier) ClassifyBytes(data []byte) (order.ColorCode, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Neutral, fmt.Errorf("decode image: %w", err)
	}
	return c.Classify(img), nil
}

func clampRatio(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 0.9 {
		return 0.9
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
