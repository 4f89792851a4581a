// Package slicer splits images that exceed the board's per-widget limits
// into tiles, encodes each tile under a byte budget and computes where the
// tiles go so that together they rebuild the source.
package slicer

import (
	"errors"
	"fmt"
	"image"
)

// FallbackTileEdge is used when the tile-edge probe fails.
const FallbackTileEdge = 4096

var ErrSourceTooLarge = errors.New("source image exceeds the maximum supported size")

// Plan is the tiling of one source image. The last column and row hold the
// remainder and are never padded.
type Plan struct {
	SourceWidth  int
	SourceHeight int
	TileEdge     int
	TilesX       int
	TilesY       int
	ColWidths    []int
	RowHeights   []int
}

// PlanSlice tiles a width x height source with tiles no larger than edge.
func PlanSlice(width, height, edge int) Plan {
	if edge <= 0 {
		edge = FallbackTileEdge
	}
	p := Plan{
		SourceWidth:  width,
		SourceHeight: height,
		TileEdge:     edge,
		TilesX:       ceilDiv(width, edge),
		TilesY:       ceilDiv(height, edge),
	}
	p.ColWidths = spans(width, edge, p.TilesX)
	p.RowHeights = spans(height, edge, p.TilesY)
	return p
}

func (p Plan) Count() int { return p.TilesX * p.TilesY }

// Rect is the pixel rectangle of tile (col, row) in source coordinates
// starting at (0, 0).
func (p Plan) Rect(col, row int) image.Rectangle {
	x := col * p.TileEdge
	y := row * p.TileEdge
	return image.Rect(x, y, x+p.ColWidths[col], y+p.RowHeights[row])
}

func (p Plan) String() string {
	return fmt.Sprintf("%dx%d -> %dx%d tiles of <=%dpx", p.SourceWidth, p.SourceHeight, p.TilesX, p.TilesY, p.TileEdge)
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func spans(total, edge, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = edge
	}
	if n > 0 {
		out[n-1] = total - (n-1)*edge
	}
	return out
}

// Prober reports the largest tile edge the target can display.
type Prober interface {
	MaxTextureSize() (int, error)
}

// StaticProber is a Prober with a known limit.
type StaticProber int

func (p StaticProber) MaxTextureSize() (int, error) {
	if p <= 0 {
		return 0, fmt.Errorf("no texture size configured")
	}
	return int(p), nil
}
