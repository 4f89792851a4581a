package workflow

import (
	"context"
	"fmt"
	"sync"

	"board-tiler/internal/board"
	"board-tiler/internal/colorclass"
	"board-tiler/internal/logger"
	"board-tiler/internal/order"
	"board-tiler/internal/ui"

	"golang.org/x/sync/errgroup"
)

type ClassifyResult struct {
	Items    int // items whose code was stored
	Fallback int // stored items whose pixels could not be read, coded neutral
	Failed   int // items whose title could not be updated
}

// Classify prefixes every selected item's title with its color code so that
// a later color sort can cluster them. An item that cannot be updated is
// counted in Failed and does not stop the others.
func (r *Runner) Classify(ctx context.Context) (ClassifyResult, error) {
	res, err := r.classify(ctx)
	if err != nil {
		return res, r.finish(ctx, "Classify", err)
	}
	text := fmt.Sprintf("Color-coded %d items", res.Items)
	if res.Fallback > 0 {
		text += fmt.Sprintf(" (%d unreadable, coded neutral)", res.Fallback)
	}
	if res.Failed > 0 {
		r.notifyError(ctx, fmt.Sprintf("%s, %d failed, check the console for details", text, res.Failed))
		return res, nil
	}
	r.notifyInfo(ctx, text)
	return res, nil
}

func (r *Runner) classify(ctx context.Context) (ClassifyResult, error) {
	var res ClassifyResult
	items, err := r.board.Selection(ctx)
	if err != nil {
		return res, fmt.Errorf("read selection: %w", err)
	}
	if len(items) == 0 {
		return res, fmt.Errorf("%w: select at least one image", ErrNoItems)
	}

	progress := r.openProgress("Classifying", len(items))
	defer progress.Done()

	var (
		mu   sync.Mutex
		done int
		g    errgroup.Group
	)
	g.SetLimit(max(1, r.sched.Max))
	for _, it := range items {
		g.Go(func() error {
			code, ok := r.codeFor(ctx, it)
			prev := it.Title
			it.Title = order.FormatColorTitle(code, prev)
			_, err := r.call(ctx, func(ctx context.Context) error { return r.board.Sync(ctx, it) })
			if err != nil {
				it.Title = prev
				logger.Error.Printf("Failed to color-code %s: %v", it, err)
			} else {
				r.setMetadata(ctx, it, map[string]any{"color": colorMetadata(code)})
			}

			mu.Lock()
			defer mu.Unlock()
			done++
			switch {
			case err != nil:
				res.Failed++
			case !ok:
				res.Items++
				res.Fallback++
			default:
				res.Items++
			}
			progress.Update(ui.Status{Text: it.Title, Completed: done, Total: len(items)})
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// codeFor classifies the pixels behind it, falling back to the neutral code.
func (r *Runner) codeFor(ctx context.Context, it *board.Item) (order.ColorCode, bool) {
	var data []byte
	_, err := r.call(ctx, func(ctx context.Context) error {
		var err error
		data, err = r.board.ImageData(ctx, it)
		return err
	})
	if err != nil {
		logger.Warn.Printf("Cannot read pixels of %s, using neutral color: %v", it, err)
		return colorclass.Neutral, false
	}
	code, err := r.classifier.ClassifyBytes(data)
	if err != nil {
		logger.Warn.Printf("Cannot analyze %s, using neutral color: %v", it, err)
		return colorclass.Neutral, false
	}
	return code, true
}

func colorMetadata(c order.ColorCode) map[string]any {
	return map[string]any{"group": c.Group, "brightness": c.Brightness, "saturation": c.Saturation}
}

// setMetadata attaches data to it. Failures are logged and otherwise ignored.
func (r *Runner) setMetadata(ctx context.Context, it *board.Item, data map[string]any) {
	if r.opts.MetadataNamespace == "" {
		return
	}
	if err := r.board.SetMetadata(ctx, it, r.opts.MetadataNamespace, data); err != nil {
		if board.IsRetryable(err) {
			logger.Warn.Printf("Failed to set metadata on %s: %v", it.ID, err)
		} else {
			logger.Debug.Printf("Metadata not stored on %s: %v", it.ID, err)
		}
	}
}
