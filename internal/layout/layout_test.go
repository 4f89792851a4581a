package layout

import (
	"testing"

	"board-tiler/internal/geom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repeat(n int, s geom.Size) []geom.Size {
	out := make([]geom.Size, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestCompute_UniformSpacing(t *testing.T) {
	cfg := Config{Columns: 3, HorizontalGap: 10, VerticalGap: 10, Anchor: TopLeft}
	g := Compute(repeat(7, geom.Size{W: 100, H: 100}), cfg)

	require.Len(t, g.Slots, 7)
	assert.Equal(t, 3, g.Rows)
	assert.Equal(t, 320.0, g.Width)
	assert.Equal(t, 320.0, g.Height)

	perRow := map[int]int{}
	for _, s := range g.Slots {
		perRow[s.Row]++
	}
	assert.Equal(t, map[int]int{0: 3, 1: 3, 2: 1}, perRow)

	for i := 1; i < 3; i++ {
		assert.Equal(t, 110.0, g.Slots[i].Center.X-g.Slots[i-1].Center.X)
	}
	assert.Equal(t, 110.0, g.Slots[3].Center.Y-g.Slots[0].Center.Y)
	assert.Equal(t, 110.0, g.Slots[6].Center.Y-g.Slots[3].Center.Y)
	assert.Equal(t, geom.Point{X: 50, Y: 50}, g.Slots[0].Center)
	assert.Equal(t, geom.Point{X: 50, Y: 270}, g.Slots[6].Center)
}

func TestCompute_BottomRightMirrorsTopLeft(t *testing.T) {
	sizes := repeat(7, geom.Size{W: 100, H: 100})
	cfg := Config{Columns: 3, HorizontalGap: 10, VerticalGap: 10, Anchor: TopLeft}
	tl := Compute(sizes, cfg)
	cfg.Anchor = BottomRight
	br := Compute(sizes, cfg)

	for i := range sizes {
		assert.Equal(t, tl.Width-tl.Slots[i].Center.X, br.Slots[i].Center.X, "x of %d", i)
		assert.Equal(t, tl.Height-tl.Slots[i].Center.Y, br.Slots[i].Center.Y, "y of %d", i)
		assert.Equal(t, 2-tl.Slots[i].Col, br.Slots[i].Col)
		assert.Equal(t, 2-tl.Slots[i].Row, br.Slots[i].Row)
	}
	// first item sits in the bottom-right cell
	assert.Equal(t, geom.Point{X: 270, Y: 270}, br.Slots[0].Center)
}

func TestCompute_SingleAxisFlips(t *testing.T) {
	sizes := repeat(4, geom.Size{W: 10, H: 10})
	cfg := Config{Columns: 2}

	cfg.Anchor = TopRight
	g := Compute(sizes, cfg)
	assert.Equal(t, geom.Point{X: 15, Y: 5}, g.Slots[0].Center)
	assert.Equal(t, geom.Point{X: 5, Y: 5}, g.Slots[1].Center)

	cfg.Anchor = BottomLeft
	g = Compute(sizes, cfg)
	assert.Equal(t, geom.Point{X: 5, Y: 15}, g.Slots[0].Center)
	assert.Equal(t, geom.Point{X: 5, Y: 5}, g.Slots[2].Center)
}

func TestCompute_EndToEndGrid(t *testing.T) {
	g := Compute(repeat(10, geom.Size{W: 200, H: 150}), Config{Columns: 4, Anchor: TopLeft})
	centers := g.Place(geom.Point{})

	xs := []float64{100, 300, 500, 700}
	ys := []float64{75, 225, 375}
	for i, c := range centers {
		assert.Equal(t, xs[i%4], c.X)
		assert.Equal(t, ys[i/4], c.Y)
	}
	assert.Equal(t, 800.0, g.Width)
	assert.Equal(t, 450.0, g.Height)
}

func TestCompute_RowsPacking(t *testing.T) {
	sizes := []geom.Size{
		{W: 100, H: 50}, {W: 60, H: 80},
		{W: 40, H: 40},
	}
	cfg := Config{Columns: 2, HorizontalGap: 10, VerticalGap: 5, Packing: PackRows, Anchor: TopLeft}
	g := Compute(sizes, cfg)

	assert.Equal(t, 170.0, g.Width)
	assert.Equal(t, 125.0, g.Height)
	// row 0 is 80 tall, both items centered on y=40
	assert.Equal(t, geom.Point{X: 50, Y: 40}, g.Slots[0].Center)
	assert.Equal(t, geom.Point{X: 140, Y: 40}, g.Slots[1].Center)
	assert.Equal(t, geom.Point{X: 20, Y: 105}, g.Slots[2].Center)

	cfg.Anchor = BottomRight
	br := Compute(sizes, cfg)
	for i := range sizes {
		assert.Equal(t, g.Width-g.Slots[i].Center.X, br.Slots[i].Center.X)
		assert.Equal(t, g.Height-g.Slots[i].Center.Y, br.Slots[i].Center.Y)
	}
	// the short last row lands at the top, its height still 40
	assert.Equal(t, 20.0, br.Slots[2].Center.Y)
}

func TestCompute_EdgeCases(t *testing.T) {
	assert.Empty(t, Compute(nil, Config{Columns: 3}).Slots)

	// defensive clamp: zero columns lays out a single column
	g := Compute(repeat(3, geom.Size{W: 10, H: 10}), Config{Columns: 0})
	assert.Equal(t, 3, g.Rows)
	assert.Equal(t, 10.0, g.Width)
}

func TestCompute_Holes(t *testing.T) {
	sizes := []geom.Size{{W: 10, H: 10}, {}, {W: 10, H: 10}}
	g := Compute(sizes, Config{Columns: 3})
	assert.Equal(t, 25.0, g.Slots[2].Center.X)

	g = Compute(sizes, Config{Columns: 3, Packing: PackRows})
	assert.Equal(t, 25.0, g.Slots[2].Center.X)
}

func TestNormalizeSizes(t *testing.T) {
	in := []geom.Size{{W: 200, H: 100}, {W: 100, H: 300}, {}}

	w := NormalizeSizes(in, SizeWidth)
	assert.Equal(t, []geom.Size{{W: 100, H: 50}, {W: 100, H: 300}, {}}, w)

	h := NormalizeSizes(in, SizeHeight)
	assert.Equal(t, []geom.Size{{W: 200, H: 100}, {W: 100.0 / 3, H: 100}, {}}, h)

	assert.Equal(t, in, NormalizeSizes(in, SizeNone))
}

func TestPlacementOrigins(t *testing.T) {
	g := Compute(repeat(2, geom.Size{W: 100, H: 100}), Config{Columns: 2})
	assert.Equal(t, geom.Point{X: -100, Y: -50}, CenteredOn(geom.Point{}, g))
	assert.Equal(t, geom.Point{X: 5, Y: 7}, OriginFor(geom.Rect{X: 5, Y: 7, W: 1, H: 1}))

	centers := g.Place(geom.Point{X: 1000, Y: 1000})
	assert.Equal(t, geom.Point{X: 1050, Y: 1050}, centers[0])
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Columns: 1}.Validate())
	assert.Error(t, Config{Columns: 0}.Validate())
	assert.Error(t, Config{Columns: 2, HorizontalGap: -1}.Validate())
	assert.Error(t, Config{Columns: 2, Anchor: "middle"}.Validate())
	assert.Error(t, Config{Columns: 2, SizeMode: "area"}.Validate())
	assert.Error(t, Config{Columns: 2, Packing: "skyline"}.Validate())
}
