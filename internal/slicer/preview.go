package slicer

import (
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	"image/jpeg"
	"io"
	"math"

	"board-tiler/internal/geom"
	"board-tiler/internal/logger"

	"golang.org/x/image/draw"
)

// PreviewItem is one image placed on the preview at its board rectangle.
type PreviewItem struct {
	Image image.Image
	Rect  geom.Rect
}

// RenderPreview draws the items at their board rectangles into one JPEG no
// larger than maxEdge pixels on its longest side.
func RenderPreview(w io.Writer, items []PreviewItem, maxEdge int) error {
	if len(items) == 0 {
		return fmt.Errorf("no images to compose")
	}
	if maxEdge <= 0 {
		return fmt.Errorf("invalid preview size: %d", maxEdge)
	}

	bounds := items[0].Rect
	minX, minY := bounds.X, bounds.Y
	maxX, maxY := bounds.X+bounds.W, bounds.Y+bounds.H
	for _, it := range items[1:] {
		minX = math.Min(minX, it.Rect.X)
		minY = math.Min(minY, it.Rect.Y)
		maxX = math.Max(maxX, it.Rect.X+it.Rect.W)
		maxY = math.Max(maxY, it.Rect.Y+it.Rect.H)
	}
	boardW, boardH := maxX-minX, maxY-minY
	if boardW <= 0 || boardH <= 0 {
		return fmt.Errorf("invalid preview bounds: %.0fx%.0f", boardW, boardH)
	}

	scale := float64(maxEdge) / math.Max(boardW, boardH)
	canvasW := max(1, int(math.Round(boardW*scale)))
	canvasH := max(1, int(math.Round(boardH*scale)))

	canvas := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	stddraw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, stddraw.Src)

	for _, it := range items {
		if it.Image == nil {
			continue
		}
		x0 := int(math.Round((it.Rect.X - minX) * scale))
		y0 := int(math.Round((it.Rect.Y - minY) * scale))
		x1 := int(math.Round((it.Rect.X + it.Rect.W - minX) * scale))
		y1 := int(math.Round((it.Rect.Y + it.Rect.H - minY) * scale))
		dst := image.Rect(x0, y0, max(x1, x0+1), max(y1, y0+1))

		// Resize and draw at position using bilinear interpolation
		draw.BiLinear.Scale(canvas, dst, it.Image, it.Image.Bounds(), stddraw.Over, nil)
	}

	if err := jpeg.Encode(w, canvas, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}

	logger.Debug.Printf("Preview composed (%dx%d, scale %.4f)", canvasW, canvasH, scale)
	return nil
}
