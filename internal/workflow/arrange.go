package workflow

import (
	"context"
	"fmt"

	"board-tiler/internal/board"
	"board-tiler/internal/geom"
	"board-tiler/internal/layout"
	"board-tiler/internal/logger"
	"board-tiler/internal/order"
)

type ArrangeResult struct {
	Items   int
	Rows    int
	Renamed int  // unnamed items that got a sequential name
	Resized bool // sizes were normalized before placing
}

// Arrange orders the selected items and lays them out as a grid anchored at
// their original bounding box.
func (r *Runner) Arrange(ctx context.Context) (ArrangeResult, error) {
	res, err := r.arrange(ctx)
	if err != nil {
		return res, r.finish(ctx, "Arrange", err)
	}
	r.notifyInfo(ctx, fmt.Sprintf("Arranged %d items in %d rows", res.Items, res.Rows))
	return res, nil
}

func (r *Runner) arrange(ctx context.Context) (ArrangeResult, error) {
	var res ArrangeResult
	if err := r.validate(); err != nil {
		return res, err
	}

	items, err := r.board.Selection(ctx)
	if err != nil {
		return res, fmt.Errorf("read selection: %w", err)
	}
	if len(items) == 0 {
		return res, fmt.Errorf("%w: select at least one image", ErrNoItems)
	}

	// anchor on where the items were before anything moves
	bounds, _ := geom.Bounds(items)
	origin := layout.OriginFor(bounds)

	var ordered []*board.Item
	switch r.opts.Sort {
	case SortColor:
		ordered = order.ByColor(items, r.classifier.GrayThreshold())
	default:
		names := order.SequentialNames(items)
		if len(names) > 0 {
			renamed := make([]*board.Item, 0, len(names))
			for i, name := range names {
				items[i].Title = name
				renamed = append(renamed, items[i])
			}
			if err := r.syncAll(ctx, renamed); err != nil {
				return res, fmt.Errorf("name items: %w", err)
			}
			res.Renamed = len(renamed)
			logger.Info.Printf("Named %d unnamed items by position", res.Renamed)
		}
		ordered = order.ByNumber(items)
	}

	sizes := make([]geom.Size, len(ordered))
	for i, it := range ordered {
		sizes[i] = it.Size()
	}
	if mode := r.opts.Layout.SizeMode; mode == layout.SizeWidth || mode == layout.SizeHeight {
		sizes = layout.NormalizeSizes(sizes, mode)
		for i, it := range ordered {
			it.Resize(sizes[i])
		}
		if err := r.syncAll(ctx, ordered); err != nil {
			return res, fmt.Errorf("resize items: %w", err)
		}
		// the host may have adjusted heights to keep the aspect ratio
		for i, it := range ordered {
			sizes[i] = it.Size()
		}
		res.Resized = true
	}

	grid := layout.Compute(sizes, r.opts.Layout)
	for i, c := range grid.Place(origin) {
		ordered[i].MoveTo(c)
	}
	if err := r.syncAll(ctx, ordered); err != nil {
		return res, fmt.Errorf("move items: %w", err)
	}
	r.zoomTo(ctx, ordered)

	res.Items, res.Rows = len(ordered), grid.Rows
	return res, nil
}
