package slicer

import "board-tiler/internal/geom"

// Footprint is the board size of the rebuilt mosaic.
func (p Plan) Footprint(scale float64) geom.Size {
	if scale <= 0 {
		scale = 1
	}
	return geom.Size{W: float64(p.SourceWidth) * scale, H: float64(p.SourceHeight) * scale}
}

// PlanMosaic returns the board center of every tile, row-major, so that the
// tiles sit edge to edge and the mosaic is centered on center.
func PlanMosaic(p Plan, center geom.Point, scale float64) []geom.Point {
	if scale <= 0 {
		scale = 1
	}
	fp := p.Footprint(scale)
	left := center.X - fp.W/2
	top := center.Y - fp.H/2

	xOff := prefixSums(p.ColWidths)
	yOff := prefixSums(p.RowHeights)

	out := make([]geom.Point, 0, p.Count())
	for row := 0; row < p.TilesY; row++ {
		for col := 0; col < p.TilesX; col++ {
			out = append(out, geom.Point{
				X: left + (float64(xOff[col])+float64(p.ColWidths[col])/2)*scale,
				Y: top + (float64(yOff[row])+float64(p.RowHeights[row])/2)*scale,
			})
		}
	}
	return out
}

func prefixSums(v []int) []int {
	out := make([]int, len(v))
	sum := 0
	for i, x := range v {
		out[i] = sum
		sum += x
	}
	return out
}
