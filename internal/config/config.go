package config

import (
	"fmt"
	"os"
	"time"

	"board-tiler/internal/board/miro"
	"board-tiler/internal/colorclass"
	"board-tiler/internal/geom"
	"board-tiler/internal/layout"
	"board-tiler/internal/logger"
	"board-tiler/internal/scheduler"
	"board-tiler/internal/slicer"
	"board-tiler/internal/util"
	"board-tiler/internal/workflow"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"
)

type Config struct {
	Board  BoardConfig  `yaml:"board"`
	Layout LayoutConfig `yaml:"layout"`
	Color  ColorConfig  `yaml:"color"`
	Slice  SliceConfig  `yaml:"slice"`
	Upload UploadConfig `yaml:"upload"`
	Import ImportConfig `yaml:"import"`
	Notify NotifyConfig `yaml:"notify"`
	Log    LogConfig    `yaml:"log"`
}

type BoardConfig struct {
	Provider string        `yaml:"provider"` // miro or memory
	BaseURL  string        `yaml:"base_url"`
	Token    string        `yaml:"token"`
	BoardID  string        `yaml:"board_id"`
	ItemIDs  []string      `yaml:"item_ids"`
	Viewport RectConfig    `yaml:"viewport"`
	Proxy    string        `yaml:"proxy"`
	Timeout  time.Duration `yaml:"timeout"`
}

type RectConfig struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type LayoutConfig struct {
	Columns          int     `yaml:"columns"`
	HorizontalGap    float64 `yaml:"horizontal_gap"`
	VerticalGap      float64 `yaml:"vertical_gap"`
	SizeMode         string  `yaml:"size_mode"`
	Anchor           string  `yaml:"anchor"`
	Packing          string  `yaml:"packing"`
	Sort             string  `yaml:"sort"`
	SkipMissingTiles bool    `yaml:"skip_missing_tiles"`
}

type ColorConfig struct {
	SampleSize      int     `yaml:"sample_size"`
	BlurSigma       float64 `yaml:"blur_sigma"`
	CropTop         float64 `yaml:"crop_top"`
	CropSide        float64 `yaml:"crop_side"`
	SaturationBoost float64 `yaml:"saturation_boost"`
	GrayThreshold   int     `yaml:"gray_threshold"`
}

type SliceConfig struct {
	WidthThreshold  int    `yaml:"width_threshold"`
	HeightThreshold int    `yaml:"height_threshold"`
	TileEdge        int    `yaml:"tile_edge"`
	MaxSourceEdge   int    `yaml:"max_source_edge"`
	TargetSize      string `yaml:"target_size"` // e.g. "6MB"
	TargetBytes     int64  `yaml:"-"`           // parsed from TargetSize
	HardSize        string `yaml:"hard_size"`   // e.g. "28MB"
	HardBytes       int64  `yaml:"-"`           // parsed from HardSize
	Qualities       []int  `yaml:"qualities"`
	QualityStep     int    `yaml:"quality_step"`
	MinQuality      int    `yaml:"min_quality"`
	Workers         int    `yaml:"workers"`

	Scale float64 `yaml:"scale"` // board units per source pixel
}

type UploadConfig struct {
	InitialConcurrency int           `yaml:"initial_concurrency"`
	MinConcurrency     int           `yaml:"min_concurrency"`
	MaxConcurrency     int           `yaml:"max_concurrency"`
	MaxRetries         int           `yaml:"max_retries"`
	BaseDelay          time.Duration `yaml:"base_delay"`
	MaxJitter          time.Duration `yaml:"max_jitter"`
	UnstableRetryRate  float64       `yaml:"unstable_retry_rate"`
	UnstableLatency    time.Duration `yaml:"unstable_latency"`
	StableRetryRate    float64       `yaml:"stable_retry_rate"`
	StableLatency      time.Duration `yaml:"stable_latency"`
	CooldownBatches    int           `yaml:"cooldown_batches"`
	ProbeBatches       int           `yaml:"probe_batches"`
	MinGain            float64       `yaml:"min_gain"`
	Alpha              float64       `yaml:"alpha"`
}

type ImportConfig struct {
	LocalDir          string `yaml:"local_dir"`
	DoneDir           string `yaml:"done_dir"`
	MetadataNamespace string `yaml:"metadata_namespace"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
	Proxy  string `yaml:"proxy"`
}

type LogConfig struct {
	Debug    bool   `yaml:"debug"`
	Progress string `yaml:"progress"` // bar or log
}

// Default returns the configuration used for every key the file leaves out.
func Default() *Config {
	cc := colorclass.DefaultConfig()
	sc := slicer.DefaultConfig()
	uc := scheduler.DefaultConfig()
	return &Config{
		Board: BoardConfig{
			Provider: "miro",
			Viewport: RectConfig{X: -960, Y: -540, Width: 1920, Height: 1080},
			Timeout:  60 * time.Second,
		},
		Layout: LayoutConfig{
			Columns:          4,
			HorizontalGap:    20,
			VerticalGap:      20,
			SizeMode:         string(layout.SizeNone),
			Anchor:           string(layout.TopLeft),
			Packing:          string(layout.PackUniform),
			Sort:             string(workflow.SortNumber),
			SkipMissingTiles: true,
		},
		Color: ColorConfig{
			SampleSize:      cc.SampleSize,
			BlurSigma:       cc.BlurSigma,
			CropTop:         cc.CropTop,
			CropSide:        cc.CropSide,
			SaturationBoost: cc.SaturationBoost,
			GrayThreshold:   cc.GrayThreshold,
		},
		Slice: SliceConfig{
			WidthThreshold:  sc.WidthThreshold,
			HeightThreshold: sc.HeightThreshold,
			TileEdge:        sc.TileEdge,
			MaxSourceEdge:   sc.MaxSourceEdge,
			TargetSize:      "6MB",
			HardSize:        "28MB",
			Qualities:       sc.Qualities,
			QualityStep:     sc.QualityStep,
			MinQuality:      sc.MinQuality,
			Workers:         sc.Workers,
			Scale:           1,
		},
		Upload: UploadConfig{
			InitialConcurrency: uc.Initial,
			MinConcurrency:     uc.Min,
			MaxConcurrency:     uc.Max,
			MaxRetries:         uc.MaxRetries,
			BaseDelay:          uc.BaseDelay,
			MaxJitter:          uc.MaxJitter,
			UnstableRetryRate:  uc.UnstableRetryRate,
			UnstableLatency:    uc.UnstableLatency,
			StableRetryRate:    uc.StableRetryRate,
			StableLatency:      uc.StableLatency,
			CooldownBatches:    uc.CooldownBatches,
			ProbeBatches:       uc.ProbeBatches,
			MinGain:            uc.MinGain,
			Alpha:              uc.Alpha,
		},
		Import: ImportConfig{
			MetadataNamespace: "board-tiler",
		},
		Log: LogConfig{Progress: "bar"},
	}
}

func LoadConfig(path string) (*Config, error) {
	// load environment variables from .env file
	if err := godotenv.Load(); err == nil {
		logger.Info.Println("loaded environment variables from .env file")
	}

	// 1. read file
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}

	return Parse(raw)
}

// Parse expands environment variables in raw, decodes it over the defaults
// and validates the result.
func Parse(raw []byte) (*Config, error) {
	// 2. expand environment variables
	expanded := os.ExpandEnv(string(raw))

	// 3. parse yaml
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse yaml failed: %w", err)
	}

	// 4. validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Board.Validate(); err != nil {
		return fmt.Errorf("board config invalid: %w", err)
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("layout config invalid: %w", err)
	}
	if err := c.Slice.Validate(); err != nil {
		return fmt.Errorf("slice config invalid: %w", err)
	}
	if err := c.Scheduler().Validate(); err != nil {
		return fmt.Errorf("upload config invalid: %w", err)
	}
	if c.Color.SampleSize < 1 {
		return fmt.Errorf("color config invalid: sample_size must be at least 1")
	}
	if t := c.Notify.Telegram; t.Token != "" && t.ChatID == 0 {
		return fmt.Errorf("notify config invalid: telegram.chat_id is required when a token is set")
	}
	switch c.Log.Progress {
	case "bar", "log", "":
	default:
		return fmt.Errorf("log config invalid: progress must be bar or log, got %q", c.Log.Progress)
	}
	return nil
}

func (b *BoardConfig) Validate() error {
	switch b.Provider {
	case "memory":
		return nil
	case "miro":
		if b.Token == "" {
			return fmt.Errorf("token is required (create one in the Miro developer settings)")
		}
		if b.BoardID == "" {
			return fmt.Errorf("board_id is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown provider %q (use miro or memory)", b.Provider)
	}
}

func (l *LayoutConfig) Validate() error {
	switch workflow.SortMode(l.Sort) {
	case workflow.SortNumber, workflow.SortColor:
	default:
		return fmt.Errorf("unknown sort %q (use number or color)", l.Sort)
	}
	return l.toLayout().Validate()
}

func (s *SliceConfig) Validate() error {
	// parse sizes
	var err error
	if s.TargetBytes, err = util.ParseSize(s.TargetSize); err != nil {
		return fmt.Errorf("invalid slice.target_size: %w", err)
	}
	if s.HardBytes, err = util.ParseSize(s.HardSize); err != nil {
		return fmt.Errorf("invalid slice.hard_size: %w", err)
	}
	if s.HardBytes < s.TargetBytes {
		return fmt.Errorf("hard_size %s is below target_size %s", s.HardSize, s.TargetSize)
	}

	if len(s.Qualities) == 0 {
		return fmt.Errorf("at least one quality is required")
	}
	for _, q := range append([]int{s.MinQuality}, s.Qualities...) {
		if q < 1 || q > 100 {
			return fmt.Errorf("quality %d is outside 1..100", q)
		}
	}
	if s.QualityStep < 1 {
		return fmt.Errorf("quality_step must be at least 1")
	}
	if s.TileEdge < 1 || s.WidthThreshold < 1 || s.HeightThreshold < 1 {
		return fmt.Errorf("tile_edge and thresholds must be positive")
	}
	if s.Scale <= 0 {
		return fmt.Errorf("scale must be positive, got %g", s.Scale)
	}
	return nil
}

func (l *LayoutConfig) toLayout() layout.Config {
	return layout.Config{
		Columns:       l.Columns,
		HorizontalGap: l.HorizontalGap,
		VerticalGap:   l.VerticalGap,
		SizeMode:      layout.SizeMode(l.SizeMode),
		Anchor:        layout.Anchor(l.Anchor),
		Packing:       layout.Packing(l.Packing),
	}
}

func (c *Config) Classifier() colorclass.Config {
	return colorclass.Config{
		SampleSize:      c.Color.SampleSize,
		BlurSigma:       c.Color.BlurSigma,
		CropTop:         c.Color.CropTop,
		CropSide:        c.Color.CropSide,
		SaturationBoost: c.Color.SaturationBoost,
		GrayThreshold:   c.Color.GrayThreshold,
	}
}

func (c *Config) Slicer() slicer.Config {
	return slicer.Config{
		WidthThreshold:  c.Slice.WidthThreshold,
		HeightThreshold: c.Slice.HeightThreshold,
		TileEdge:        c.Slice.TileEdge,
		MaxSourceEdge:   c.Slice.MaxSourceEdge,
		TargetBytes:     c.Slice.TargetBytes,
		HardBytes:       c.Slice.HardBytes,
		Qualities:       c.Slice.Qualities,
		QualityStep:     c.Slice.QualityStep,
		MinQuality:      c.Slice.MinQuality,
		Workers:         c.Slice.Workers,
	}
}

func (c *Config) Scheduler() scheduler.Config {
	u := c.Upload
	return scheduler.Config{
		Initial:           u.InitialConcurrency,
		Min:               u.MinConcurrency,
		Max:               u.MaxConcurrency,
		MaxRetries:        u.MaxRetries,
		BaseDelay:         u.BaseDelay,
		MaxJitter:         u.MaxJitter,
		UnstableRetryRate: u.UnstableRetryRate,
		UnstableLatency:   u.UnstableLatency,
		StableRetryRate:   u.StableRetryRate,
		StableLatency:     u.StableLatency,
		CooldownBatches:   u.CooldownBatches,
		ProbeBatches:      u.ProbeBatches,
		MinGain:           u.MinGain,
		Alpha:             u.Alpha,
	}
}

func (c *Config) Miro() miro.Config {
	return miro.Config{
		BaseURL:  c.Board.BaseURL,
		Token:    c.Board.Token,
		BoardID:  c.Board.BoardID,
		ItemIDs:  c.Board.ItemIDs,
		Viewport: c.Viewport(),
		ProxyURL: c.Board.Proxy,
		Timeout:  c.Board.Timeout,
	}
}

func (c *Config) Viewport() geom.Rect {
	v := c.Board.Viewport
	return geom.Rect{X: v.X, Y: v.Y, W: v.Width, H: v.Height}
}

func (c *Config) Workflow() workflow.Options {
	return workflow.Options{
		Layout:            c.Layout.toLayout(),
		Sort:              workflow.SortMode(c.Layout.Sort),
		SkipMissingTiles:  c.Layout.SkipMissingTiles,
		MetadataNamespace: c.Import.MetadataNamespace,
		Scale:             c.Slice.Scale,
	}
}
