package slicer

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"board-tiler/internal/logger"
	"board-tiler/internal/util"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	WidthThreshold  int // sources wider than this are sliced
	HeightThreshold int // sources taller than this are sliced
	TileEdge        int
	MaxSourceEdge   int // sources larger than this on either axis are rejected

	TargetBytes int64 // preferred per-tile size
	HardBytes   int64 // platform upload limit
	Qualities   []int // tried in order against TargetBytes
	QualityStep int
	MinQuality  int

	Workers int
}

func DefaultConfig() Config {
	return Config{
		WidthThreshold:  8192,
		HeightThreshold: 4096,
		TileEdge:        4096,
		MaxSourceEdge:   32768,
		TargetBytes:     6 * 1024 * 1024,
		HardBytes:       28 * 1024 * 1024,
		Qualities:       []int{85, 82, 80},
		QualityStep:     5,
		MinQuality:      40,
		Workers:         2,
	}
}

// Encoder turns pixels into a compressed byte string at a quality in 1..100.
type Encoder interface {
	Encode(img image.Image, quality int) ([]byte, error)
}

// JPEGEncoder encodes with imaging's JPEG writer.
type JPEGEncoder struct{}

func (JPEGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// Encoded is the outcome of the byte-budget search for one image.
type Encoded struct {
	Data    []byte
	Quality int
	OverCap bool // floor quality still exceeded HardBytes
}

// Tile is one encoded cell of a Plan. Err is set when the tile could not be
// encoded at all; such tiles are reported and skipped.
type Tile struct {
	Col, Row int
	Rect     image.Rectangle
	Encoded
	Err error
}

type Slicer struct {
	cfg    Config
	prober Prober
	enc    Encoder
}

type Option func(*Slicer)

func WithProber(p Prober) Option { return func(s *Slicer) { s.prober = p } }

func WithEncoder(e Encoder) Option { return func(s *Slicer) { s.enc = e } }

func New(cfg Config, opts ...Option) *Slicer {
	if len(cfg.Qualities) == 0 {
		cfg.Qualities = DefaultConfig().Qualities
	}
	if cfg.QualityStep <= 0 {
		cfg.QualityStep = 5
	}
	if cfg.MinQuality <= 0 {
		cfg.MinQuality = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	s := &Slicer{cfg: cfg, prober: StaticProber(cfg.TileEdge), enc: JPEGEncoder{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NeedsSlicing applies the per-axis thresholds independently.
func (s *Slicer) NeedsSlicing(width, height int) bool {
	return width > s.cfg.WidthThreshold || height > s.cfg.HeightThreshold
}

// TileEdge is the configured tile edge bounded by the probed texture limit.
func (s *Slicer) TileEdge() int {
	limit, err := s.prober.MaxTextureSize()
	if err != nil || limit <= 0 {
		logger.Debug.Printf("Tile edge probe failed, using %d: %v", FallbackTileEdge, err)
		limit = FallbackTileEdge
	}
	if s.cfg.TileEdge > 0 && s.cfg.TileEdge < limit {
		return s.cfg.TileEdge
	}
	return limit
}

// Plan validates the source size and tiles it.
func (s *Slicer) Plan(width, height int) (Plan, error) {
	if width <= 0 || height <= 0 {
		return Plan{}, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if s.cfg.MaxSourceEdge > 0 && (width > s.cfg.MaxSourceEdge || height > s.cfg.MaxSourceEdge) {
		return Plan{}, fmt.Errorf("%w: %dx%d, limit is %dpx per side", ErrSourceTooLarge, width, height, s.cfg.MaxSourceEdge)
	}
	return PlanSlice(width, height, s.TileEdge()), nil
}

// WithinTarget reports whether n bytes fit the preferred upload size.
func (s *Slicer) WithinTarget(n int) bool {
	return s.cfg.TargetBytes <= 0 || int64(n) <= s.cfg.TargetBytes
}

// Encode runs the byte-budget search on a whole image.
func (s *Slicer) Encode(img image.Image) (Encoded, error) {
	return s.encodeWithBudget(img)
}

// SliceAndEncode crops every tile of plan out of img without resampling and
// encodes it. Each tile gets its own pixel buffer and output buffer, so tiles
// are encoded in parallel. A tile that fails to encode does not stop the
// others. The returned error is only the context's.
func (s *Slicer) SliceAndEncode(ctx context.Context, img image.Image, plan Plan) ([]Tile, error) {
	origin := img.Bounds().Min
	tiles := make([]Tile, plan.Count())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for row := 0; row < plan.TilesY; row++ {
		for col := 0; col < plan.TilesX; col++ {
			i := row*plan.TilesX + col
			rect := plan.Rect(col, row)
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				t := Tile{Col: col, Row: row, Rect: rect}
				crop := imaging.Crop(img, rect.Add(origin))
				t.Encoded, t.Err = s.encodeWithBudget(crop)
				if t.Err != nil {
					logger.Warn.Printf("Tile %d,%d failed to encode: %v", col, row, t.Err)
				} else if t.OverCap {
					logger.Warn.Printf("Tile %d,%d is %s at floor quality %d, over the %s limit",
						col, row, util.FormatBytesToHumanReadable(int64(len(t.Data))), t.Quality,
						util.FormatBytesToHumanReadable(s.cfg.HardBytes))
				}
				tiles[i] = t
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tiles, nil
}

// encodeWithBudget tries the fixed qualities against TargetBytes and keeps
// the first that fits. Otherwise the lowest fixed quality is accepted unless
// it breaks HardBytes, in which case quality drops by QualityStep until the
// result fits or MinQuality is reached. The floor result is returned even
// when it is still too large.
func (s *Slicer) encodeWithBudget(img image.Image) (Encoded, error) {
	var last Encoded
	for _, q := range s.cfg.Qualities {
		data, err := s.enc.Encode(img, q)
		if err != nil {
			return Encoded{}, err
		}
		last = Encoded{Data: data, Quality: q}
		if s.cfg.TargetBytes <= 0 || int64(len(data)) <= s.cfg.TargetBytes {
			return last, nil
		}
	}
	if s.cfg.HardBytes <= 0 || int64(len(last.Data)) <= s.cfg.HardBytes {
		return last, nil
	}

	for q := last.Quality; q > s.cfg.MinQuality; {
		q = max(s.cfg.MinQuality, q-s.cfg.QualityStep)
		data, err := s.enc.Encode(img, q)
		if err != nil {
			return Encoded{}, err
		}
		last = Encoded{Data: data, Quality: q}
		if int64(len(data)) <= s.cfg.HardBytes {
			return last, nil
		}
	}
	last.OverCap = true
	return last, nil
}
