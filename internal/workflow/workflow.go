// Package workflow runs the user-facing operations against a board:
// arranging the selection, color-coding it and importing local images.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"board-tiler/internal/board"
	"board-tiler/internal/colorclass"
	"board-tiler/internal/layout"
	"board-tiler/internal/logger"
	"board-tiler/internal/notify"
	"board-tiler/internal/scheduler"
	"board-tiler/internal/slicer"
	"board-tiler/internal/ui"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
)

type SortMode string

const (
	SortNumber SortMode = "number"
	SortColor  SortMode = "color"
)

var (
	ErrNoItems      = errors.New("nothing to process")
	ErrInvalidInput = errors.New("invalid input")
)

const progressInterval = 200 * time.Millisecond

type Options struct {
	Layout            layout.Config
	Sort              SortMode
	SkipMissingTiles  bool
	MetadataNamespace string
	Scale             float64 // board units per source pixel on import
}

// ProgressFunc opens a sink for an operation with total steps.
type ProgressFunc func(title string, total int) ui.Sink

type Runner struct {
	board      board.Board
	opts       Options
	notifier   notify.Notifier
	classifier *colorclass.Classifier
	slicer     *slicer.Slicer
	sched      scheduler.Config
	retrier    *scheduler.Retrier
	progress   ProgressFunc
}

type Option func(*Runner)

func WithNotifier(n notify.Notifier) Option { return func(r *Runner) { r.notifier = n } }

func WithClassifier(c *colorclass.Classifier) Option { return func(r *Runner) { r.classifier = c } }

func WithSlicer(s *slicer.Slicer) Option { return func(r *Runner) { r.slicer = s } }

func WithScheduler(cfg scheduler.Config) Option { return func(r *Runner) { r.sched = cfg } }

func WithProgress(fn ProgressFunc) Option { return func(r *Runner) { r.progress = fn } }

func New(b board.Board, opts Options, with ...Option) *Runner {
	if opts.Sort == "" {
		opts.Sort = SortNumber
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	r := &Runner{
		board:      b,
		opts:       opts,
		notifier:   notify.Console{},
		classifier: colorclass.New(colorclass.DefaultConfig()),
		slicer:     slicer.New(slicer.DefaultConfig()),
		sched:      scheduler.DefaultConfig(),
		progress:   func(string, int) ui.Sink { return ui.LogSink{} },
	}
	for _, o := range with {
		o(r)
	}
	r.retrier = scheduler.NewRetrier(r.sched)
	return r
}

func (r *Runner) validate() error {
	switch r.opts.Sort {
	case SortNumber, SortColor:
	default:
		return fmt.Errorf("%w: unknown sort %q", ErrInvalidInput, r.opts.Sort)
	}
	if err := r.opts.Layout.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// finish notifies the user about err. Input errors are shown as they are,
// anything else points to the log.
func (r *Runner) finish(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNoItems) || errors.Is(err, ErrInvalidInput) {
		logger.Warn.Printf("%s: %v", op, err)
		r.notifyError(ctx, err.Error())
		return err
	}
	logger.Error.Printf("%s failed: %v", op, err)
	r.notifyError(ctx, fmt.Sprintf("%s failed, check the console for details", op))
	return fmt.Errorf("%s: %w", op, err)
}

func (r *Runner) notifyInfo(ctx context.Context, text string) {
	if err := r.notifier.Info(ctx, text); err != nil {
		logger.Warn.Printf("Failed to send notification: %v", err)
	}
}

func (r *Runner) notifyError(ctx context.Context, text string) {
	if err := r.notifier.Error(ctx, text); err != nil {
		logger.Warn.Printf("Failed to send notification: %v", err)
	}
}

// call retries a board call while its errors are retryable.
func (r *Runner) call(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	return r.retrier.Do(ctx, func(ctx context.Context) error {
		err := op(ctx)
		if err != nil && !board.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	})
}

// syncAll persists items concurrently. A failed item does not stop the
// others; every failure is part of the returned error.
func (r *Runner) syncAll(ctx context.Context, items []*board.Item) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(max(1, r.sched.Max))
	for _, it := range items {
		g.Go(func() error {
			if _, err := r.call(ctx, func(ctx context.Context) error { return r.board.Sync(ctx, it) }); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("sync %s: %w", it.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d items: %w", len(errs), len(items), errors.Join(errs...))
	}
	return nil
}

func (r *Runner) zoomTo(ctx context.Context, items []*board.Item) {
	if len(items) == 0 {
		return
	}
	if err := r.board.ZoomTo(ctx, items); err != nil {
		logger.Debug.Printf("ZoomTo failed: %v", err)
	}
}

func (r *Runner) openProgress(title string, total int) *ui.Throttle {
	return ui.NewThrottle(r.progress(title, total), progressInterval)
}
