// Package layout computes grid positions for an ordered sequence of items.
package layout

import (
	"fmt"
	"math"

	"board-tiler/internal/geom"
)

type SizeMode string

const (
	SizeNone   SizeMode = "none"
	SizeWidth  SizeMode = "width"
	SizeHeight SizeMode = "height"
)

type Anchor string

const (
	TopLeft     Anchor = "top-left"
	TopRight    Anchor = "top-right"
	BottomLeft  Anchor = "bottom-left"
	BottomRight Anchor = "bottom-right"
)

type Packing string

const (
	// PackUniform gives every cell the widest width and tallest height.
	PackUniform Packing = "uniform"
	// PackRows sizes each row after its own items.
	PackRows Packing = "rows"
)

type Config struct {
	Columns       int
	HorizontalGap float64
	VerticalGap   float64
	SizeMode      SizeMode
	Anchor        Anchor
	Packing       Packing
}

func (c Config) Validate() error {
	if c.Columns < 1 {
		return fmt.Errorf("columns must be at least 1, got %d", c.Columns)
	}
	if c.HorizontalGap < 0 || c.VerticalGap < 0 {
		return fmt.Errorf("gaps must not be negative")
	}
	switch c.SizeMode {
	case SizeNone, SizeWidth, SizeHeight, "":
	default:
		return fmt.Errorf("unknown size mode: %s (use none, width or height)", c.SizeMode)
	}
	switch c.Anchor {
	case TopLeft, TopRight, BottomLeft, BottomRight, "":
	default:
		return fmt.Errorf("unknown anchor: %s", c.Anchor)
	}
	switch c.Packing {
	case PackUniform, PackRows, "":
	default:
		return fmt.Errorf("unknown packing: %s (use uniform or rows)", c.Packing)
	}
	return nil
}

func (a Anchor) flips() (x, y bool) {
	switch a {
	case TopRight:
		return true, false
	case BottomLeft:
		return false, true
	case BottomRight:
		return true, true
	}
	return false, false
}

type Slot struct {
	Col, Row int
	Center   geom.Point // relative to the grid's top-left corner
}

type Grid struct {
	Slots  []Slot
	Width  float64
	Height float64
	Rows   int
}

// NormalizeSizes scales every size to the smallest width (SizeWidth) or
// height (SizeHeight), keeping aspect ratios. Zero sizes are left alone.
func NormalizeSizes(sizes []geom.Size, mode SizeMode) []geom.Size {
	out := make([]geom.Size, len(sizes))
	copy(out, sizes)
	if mode != SizeWidth && mode != SizeHeight {
		return out
	}

	target := math.Inf(1)
	for _, s := range sizes {
		if isHole(s) {
			continue
		}
		if mode == SizeWidth {
			target = math.Min(target, s.W)
		} else {
			target = math.Min(target, s.H)
		}
	}
	if math.IsInf(target, 1) || target <= 0 {
		return out
	}

	for i, s := range sizes {
		if isHole(s) {
			continue
		}
		if mode == SizeWidth && s.W > 0 {
			out[i] = geom.Size{W: target, H: s.H * target / s.W}
		}
		if mode == SizeHeight && s.H > 0 {
			out[i] = geom.Size{W: s.W * target / s.H, H: target}
		}
	}
	return out
}

// Compute assigns items, in order, to rows of cfg.Columns and returns their
// slot centers relative to the grid's top-left corner. Zero sizes are holes:
// they keep a slot without an item.
func Compute(sizes []geom.Size, cfg Config) Grid {
	if len(sizes) == 0 {
		return Grid{}
	}
	cols := max(1, cfg.Columns)
	if cfg.Packing == PackRows {
		return computeRows(sizes, cols, cfg)
	}
	return computeUniform(sizes, cols, cfg)
}

func computeUniform(sizes []geom.Size, cols int, cfg Config) Grid {
	var cellW, cellH float64
	for _, s := range sizes {
		cellW = math.Max(cellW, s.W)
		cellH = math.Max(cellH, s.H)
	}
	rows := (len(sizes) + cols - 1) / cols
	flipX, flipY := cfg.Anchor.flips()

	g := Grid{
		Slots:  make([]Slot, len(sizes)),
		Width:  float64(cols)*cellW + float64(cols-1)*cfg.HorizontalGap,
		Height: float64(rows)*cellH + float64(rows-1)*cfg.VerticalGap,
		Rows:   rows,
	}
	for i := range sizes {
		col, row := i%cols, i/cols
		if flipX {
			col = cols - 1 - col
		}
		if flipY {
			row = rows - 1 - row
		}
		g.Slots[i] = Slot{
			Col: col,
			Row: row,
			Center: geom.Point{
				X: float64(col)*(cellW+cfg.HorizontalGap) + cellW/2,
				Y: float64(row)*(cellH+cfg.VerticalGap) + cellH/2,
			},
		}
	}
	return g
}

// computeRows packs each row by its own items. Mirroring is done on the
// computed coordinates so rows of different heights stay aligned.
func computeRows(sizes []geom.Size, cols int, cfg Config) Grid {
	var maxW, maxH float64
	for _, s := range sizes {
		maxW = math.Max(maxW, s.W)
		maxH = math.Max(maxH, s.H)
	}
	eff := make([]geom.Size, len(sizes))
	for i, s := range sizes {
		if isHole(s) {
			s = geom.Size{W: maxW, H: maxH}
		}
		eff[i] = s
	}

	rows := (len(eff) + cols - 1) / cols
	g := Grid{Slots: make([]Slot, len(eff)), Rows: rows}

	top := 0.0
	for r := 0; r < rows; r++ {
		start, end := r*cols, min((r+1)*cols, len(eff))
		rowH := 0.0
		for _, s := range eff[start:end] {
			rowH = math.Max(rowH, s.H)
		}
		cursor := 0.0
		for i := start; i < end; i++ {
			s := eff[i]
			g.Slots[i] = Slot{
				Col:    i - start,
				Row:    r,
				Center: geom.Point{X: cursor + s.W/2, Y: top + rowH/2},
			}
			cursor += s.W + cfg.HorizontalGap
		}
		g.Width = math.Max(g.Width, cursor-cfg.HorizontalGap)
		top += rowH + cfg.VerticalGap
	}
	g.Height = top - cfg.VerticalGap

	flipX, flipY := cfg.Anchor.flips()
	for i := range g.Slots {
		s := &g.Slots[i]
		if flipX {
			s.Center.X = g.Width - s.Center.X
			s.Col = cols - 1 - s.Col
		}
		if flipY {
			s.Center.Y = g.Height - s.Center.Y
			s.Row = rows - 1 - s.Row
		}
	}
	return g
}

// Place turns slot centers into absolute board positions for a grid whose
// top-left corner sits at origin.
func (g Grid) Place(origin geom.Point) []geom.Point {
	out := make([]geom.Point, len(g.Slots))
	for i, s := range g.Slots {
		out[i] = origin.Add(s.Center)
	}
	return out
}

// OriginFor anchors a grid at the top-left of the items' original bounding box.
func OriginFor(bounds geom.Rect) geom.Point {
	return bounds.TopLeft()
}

// CenteredOn returns the origin that centers g on center. New items with no
// prior position are placed this way around the viewport center.
func CenteredOn(center geom.Point, g Grid) geom.Point {
	return geom.Point{X: center.X - g.Width/2, Y: center.Y - g.Height/2}
}

func isHole(s geom.Size) bool { return s.W == 0 && s.H == 0 }
