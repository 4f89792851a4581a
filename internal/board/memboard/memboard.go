// Package memboard is an in-memory Board for tests and dry runs.
package memboard

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"slices"
	"sync"

	"board-tiler/internal/board"
	"board-tiler/internal/geom"
	"board-tiler/internal/logger"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

type Board struct {
	mu       sync.Mutex
	items    map[string]*board.Item
	order    []string
	selected []string
	data     map[string][]byte
	meta     map[string]map[string]map[string]any
	viewport geom.Rect
	zoomed   []string

	// CreateHook, when set, runs before every create and may fail it.
	CreateHook func(spec board.ImageSpec) error
	// Creates and Syncs count successful calls.
	Creates int
	Syncs   int
}

func New(viewport geom.Rect) *Board {
	return &Board{
		items:    make(map[string]*board.Item),
		data:     make(map[string][]byte),
		meta:     make(map[string]map[string]map[string]any),
		viewport: viewport,
	}
}

// Add puts an existing widget on the board and selects it.
func (b *Board) Add(it board.Item, data []byte) *board.Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	stored := it
	b.items[it.ID] = &stored
	b.order = append(b.order, it.ID)
	b.selected = append(b.selected, it.ID)
	if data != nil {
		b.data[it.ID] = data
	}
	out := stored
	return &out
}

// Select replaces the selection. No IDs selects nothing.
func (b *Board) Select(ids ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selected = slices.Clone(ids)
}

func (b *Board) Selection(ctx context.Context) ([]*board.Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*board.Item, 0, len(b.selected))
	for _, id := range b.selected {
		if it, ok := b.items[id]; ok {
			c := *it
			out = append(out, &c)
		}
	}
	return out, nil
}

func (b *Board) CreateImage(ctx context.Context, spec board.ImageSpec) (*board.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.CreateHook != nil {
		if err := b.CreateHook(spec); err != nil {
			return nil, err
		}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(spec.Data))
	if err != nil {
		return nil, &board.StatusError{Op: "create image", Status: 400, Body: err.Error()}
	}

	w, h := float64(cfg.Width), float64(cfg.Height)
	if spec.Width > 0 {
		h = h * spec.Width / w
		w = spec.Width
	}
	it := board.Item{
		ID:     uuid.NewString(),
		Title:  spec.Title,
		X:      spec.Center.X,
		Y:      spec.Center.Y,
		Width:  w,
		Height: h,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	stored := it
	b.items[it.ID] = &stored
	b.order = append(b.order, it.ID)
	b.data[it.ID] = spec.Data
	b.Creates++
	logger.Debug.Printf("memboard: created %s", &it)
	return &it, nil
}

func (b *Board) Sync(ctx context.Context, it *board.Item) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	stored, ok := b.items[it.ID]
	if !ok {
		return fmt.Errorf("sync %s: %w", it.ID, board.ErrNotFound)
	}
	*stored = *it
	b.Syncs++
	return nil
}

func (b *Board) SetMetadata(ctx context.Context, it *board.Item, namespace string, data map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[it.ID]; !ok {
		return fmt.Errorf("set metadata %s: %w", it.ID, board.ErrNotFound)
	}
	if b.meta[it.ID] == nil {
		b.meta[it.ID] = make(map[string]map[string]any)
	}
	b.meta[it.ID][namespace] = data
	return nil
}

func (b *Board) ImageData(ctx context.Context, it *board.Item) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.data[it.ID]
	if !ok {
		return nil, fmt.Errorf("image data %s: %w", it.ID, board.ErrNotFound)
	}
	return data, nil
}

func (b *Board) Viewport(ctx context.Context) (geom.Rect, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewport, nil
}

func (b *Board) ZoomTo(ctx context.Context, items []*board.Item) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.zoomed = b.zoomed[:0]
	for _, it := range items {
		b.zoomed = append(b.zoomed, it.ID)
	}
	return nil
}

// Items returns copies of all widgets in creation order.
func (b *Board) Items() []board.Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]board.Item, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.items[id])
	}
	return out
}

// Metadata returns what SetMetadata stored for id under namespace.
func (b *Board) Metadata(id, namespace string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.meta[id][namespace]
}

// Zoomed returns the IDs of the last ZoomTo call.
func (b *Board) Zoomed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.zoomed)
}

var _ board.Board = (*Board)(nil)
