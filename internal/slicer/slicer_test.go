package slicer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"

	"board-tiler/internal/geom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sizedEncoder produces quality*perQuality bytes, so the search outcome is
// predictable.
type sizedEncoder struct {
	perQuality int
	mu         sync.Mutex
	tried      []int
}

func (e *sizedEncoder) Encode(_ image.Image, q int) ([]byte, error) {
	e.mu.Lock()
	e.tried = append(e.tried, q)
	e.mu.Unlock()
	return make([]byte, q*e.perQuality), nil
}

// rawEncoder returns the pixels it was given.
type rawEncoder struct{}

func (rawEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	n, ok := img.(*image.NRGBA)
	if !ok {
		return nil, errors.New("unexpected image type")
	}
	if n.Bounds().Dx() == 1 {
		return nil, errors.New("refusing 1px column")
	}
	return bytes.Clone(n.Pix), nil
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func TestPlanSlice_Coverage(t *testing.T) {
	cases := []struct{ w, h, edge int }{
		{10, 7, 4}, {8192, 4096, 4096}, {9000, 100, 4096}, {1, 1, 4096}, {12289, 8193, 4096}, {5, 5, 5},
	}
	for _, c := range cases {
		p := PlanSlice(c.w, c.h, c.edge)

		assert.Equal(t, (c.w+c.edge-1)/c.edge, p.TilesX)
		assert.Equal(t, (c.h+c.edge-1)/c.edge, p.TilesY)

		covered := 0
		for row := 0; row < p.TilesY; row++ {
			for col := 0; col < p.TilesX; col++ {
				r := p.Rect(col, row)
				assert.LessOrEqual(t, r.Dx(), c.edge)
				assert.LessOrEqual(t, r.Dy(), c.edge)
				assert.Positive(t, r.Dx())
				assert.Positive(t, r.Dy())
				if col+1 < p.TilesX {
					assert.Equal(t, r.Max.X, p.Rect(col+1, row).Min.X, "no gap or overlap on x")
				}
				if row+1 < p.TilesY {
					assert.Equal(t, r.Max.Y, p.Rect(col, row+1).Min.Y, "no gap or overlap on y")
				}
				covered += r.Dx() * r.Dy()
			}
		}
		assert.Equal(t, c.w*c.h, covered)
		assert.Equal(t, image.Rect(0, 0, c.w, c.h), p.Rect(0, 0).Union(p.Rect(p.TilesX-1, p.TilesY-1)))
	}
}

func TestPlanSlice_Remainder(t *testing.T) {
	p := PlanSlice(10, 7, 4)
	assert.Equal(t, []int{4, 4, 2}, p.ColWidths)
	assert.Equal(t, []int{4, 3}, p.RowHeights)
	assert.Equal(t, 6, p.Count())
}

func TestSlicer_NeedsSlicing(t *testing.T) {
	s := New(DefaultConfig())
	assert.False(t, s.NeedsSlicing(8192, 4096))
	assert.True(t, s.NeedsSlicing(8193, 10))
	assert.True(t, s.NeedsSlicing(10, 4097))
}

type failingProber struct{}

func (failingProber) MaxTextureSize() (int, error) { return 0, errors.New("no gpu") }

func TestSlicer_Plan(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TileEdge = 8192

	s := New(cfg, WithProber(StaticProber(2048)))
	p, err := s.Plan(5000, 3000)
	require.NoError(t, err)
	assert.Equal(t, 2048, p.TileEdge)

	s = New(cfg, WithProber(failingProber{}))
	p, err = s.Plan(5000, 3000)
	require.NoError(t, err)
	assert.Equal(t, FallbackTileEdge, p.TileEdge)

	_, err = s.Plan(40000, 100)
	assert.ErrorIs(t, err, ErrSourceTooLarge)

	_, err = s.Plan(0, 100)
	assert.Error(t, err)
}

func TestEncodeWithBudget(t *testing.T) {
	base := Config{Qualities: []int{85, 82, 80}, QualityStep: 5, MinQuality: 40, Workers: 1}
	img := gradient(4, 4)

	tests := []struct {
		name        string
		target      int64
		hard        int64
		wantQuality int
		overCap     bool
	}{
		{"first quality fits", 85_000, 100_000, 85, false},
		{"second quality fits", 82_000, 100_000, 82, false},
		{"lowest accepted over target", 10_000, 100_000, 80, false},
		{"lowered under hard cap", 10_000, 62_000, 60, false},
		{"floor returned over cap", 10_000, 30_000, 40, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.TargetBytes, cfg.HardBytes = tt.target, tt.hard
			s := New(cfg, WithEncoder(&sizedEncoder{perQuality: 1000}))
			got, err := s.Encode(img)
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuality, got.Quality)
			assert.Equal(t, tt.overCap, got.OverCap)
			assert.Len(t, got.Data, tt.wantQuality*1000)
		})
	}
}

func TestEncodeWithBudget_NeverExceedsHardCapAboveFloor(t *testing.T) {
	img := gradient(4, 4)
	for hard := int64(1_000); hard <= 100_000; hard += 3_700 {
		cfg := Config{
			TargetBytes: 5_000, HardBytes: hard,
			Qualities: []int{85, 82, 80}, QualityStep: 7, MinQuality: 33, Workers: 1,
		}
		got, err := New(cfg, WithEncoder(&sizedEncoder{perQuality: 1000})).Encode(img)
		require.NoError(t, err)
		if got.Quality > cfg.MinQuality {
			assert.LessOrEqual(t, int64(len(got.Data)), hard)
		}
		assert.Equal(t, int64(len(got.Data)) > hard, got.OverCap)
	}
}

func TestSliceAndEncode_ExactPixels(t *testing.T) {
	src := gradient(20, 12)
	// the source starts at (5,3); tiles are addressed relative to it
	origin := image.Pt(5, 3)
	shifted := src.SubImage(image.Rect(5, 3, 15, 10))

	cfg := DefaultConfig()
	cfg.Workers = 3
	s := New(cfg, WithEncoder(rawEncoder{}))
	plan := PlanSlice(10, 7, 4)

	tiles, err := s.SliceAndEncode(context.Background(), shifted, plan)
	require.NoError(t, err)
	require.Len(t, tiles, 6)

	for _, tile := range tiles {
		require.NoError(t, tile.Err)
		abs := tile.Rect.Add(origin)
		var pix []byte
		for y := abs.Min.Y; y < abs.Max.Y; y++ {
			off := src.PixOffset(abs.Min.X, y)
			pix = append(pix, src.Pix[off:off+4*abs.Dx()]...)
		}
		assert.Equal(t, pix, tile.Data, "tile %d,%d", tile.Col, tile.Row)
	}
}

func TestSliceAndEncode_FailedTileIsSkipped(t *testing.T) {
	s := New(DefaultConfig(), WithEncoder(rawEncoder{}))
	// last column is 1px wide and fails to encode
	plan := PlanSlice(9, 4, 4)

	tiles, err := s.SliceAndEncode(context.Background(), gradient(9, 4), plan)
	require.NoError(t, err)
	require.Len(t, tiles, 3)
	assert.NoError(t, tiles[0].Err)
	assert.NoError(t, tiles[1].Err)
	assert.Error(t, tiles[2].Err)
}

func TestSliceAndEncode_JPEG(t *testing.T) {
	s := New(DefaultConfig())
	plan := PlanSlice(300, 200, 128)
	tiles, err := s.SliceAndEncode(context.Background(), gradient(300, 200), plan)
	require.NoError(t, err)
	for _, tile := range tiles {
		require.NoError(t, tile.Err)
		img, err := jpeg.Decode(bytes.NewReader(tile.Data))
		require.NoError(t, err)
		assert.Equal(t, tile.Rect.Size(), img.Bounds().Size())
		assert.Equal(t, 85, tile.Quality)
	}
}

func TestPlanMosaic(t *testing.T) {
	p := PlanSlice(10, 7, 4)
	centers := PlanMosaic(p, geom.Point{X: 100, Y: 100}, 1)
	require.Len(t, centers, 6)

	// mosaic spans 95..105 x 96.5..103.5
	assert.Equal(t, geom.Point{X: 97, Y: 98.5}, centers[0])
	assert.Equal(t, geom.Point{X: 104, Y: 98.5}, centers[2])
	assert.Equal(t, geom.Point{X: 97, Y: 102}, centers[3])

	// edge to edge: neighbours are half a tile apart from each shared edge
	assert.Equal(t, 4.0, centers[1].X-centers[0].X)
	assert.Equal(t, 3.0, centers[2].X-centers[1].X)

	scaled := PlanMosaic(p, geom.Point{}, 2)
	assert.Equal(t, geom.Point{X: -6, Y: -3}, scaled[0])
	assert.Equal(t, geom.Size{W: 20, H: 14}, p.Footprint(2))
}

func TestRenderPreview(t *testing.T) {
	var buf bytes.Buffer
	err := RenderPreview(&buf, []PreviewItem{
		{Image: gradient(20, 10), Rect: geom.Rect{X: 0, Y: 0, W: 200, H: 100}},
		{Image: gradient(20, 10), Rect: geom.Rect{X: 200, Y: 100, W: 200, H: 100}},
	}, 100)
	require.NoError(t, err)

	img, err := jpeg.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(100, 50), img.Bounds().Size())

	assert.Error(t, RenderPreview(&buf, nil, 100))
}
