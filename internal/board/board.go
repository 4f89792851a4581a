// Package board abstracts the whiteboard host: reading the selected image
// widgets, creating new ones and persisting their geometry.
package board

import (
	"context"
	"errors"
	"fmt"

	"board-tiler/internal/geom"
)

var (
	ErrNotFound    = errors.New("item not found")
	ErrUnsupported = errors.New("operation not supported by this board")
)

// Item is an image widget. Changes to its fields stay local until Sync.
type Item struct {
	ID     string
	Title  string
	X, Y   float64 // center
	Width  float64
	Height float64
}

func (it *Item) Name() string { return it.Title }

func (it *Item) Center() geom.Point { return geom.Point{X: it.X, Y: it.Y} }

func (it *Item) Size() geom.Size { return geom.Size{W: it.Width, H: it.Height} }

func (it *Item) Aspect() float64 {
	if it.Height == 0 {
		return 1
	}
	return it.Width / it.Height
}

func (it *Item) MoveTo(p geom.Point) { it.X, it.Y = p.X, p.Y }

// Resize sets the displayed size. The host keeps the aspect ratio, so only
// the width is sent on sync.
func (it *Item) Resize(s geom.Size) { it.Width, it.Height = s.W, s.H }

func (it *Item) String() string {
	return fmt.Sprintf("%s %q at (%.0f,%.0f) %.0fx%.0f", it.ID, it.Title, it.X, it.Y, it.Width, it.Height)
}

// ImageSpec describes a widget to create.
type ImageSpec struct {
	Data     []byte
	Filename string
	Title    string
	Center   geom.Point
	Width    float64 // display width, 0 keeps the pixel width
}

type Board interface {
	Selection(ctx context.Context) ([]*Item, error)
	CreateImage(ctx context.Context, spec ImageSpec) (*Item, error)
	Sync(ctx context.Context, it *Item) error
	SetMetadata(ctx context.Context, it *Item, namespace string, data map[string]any) error
	ImageData(ctx context.Context, it *Item) ([]byte, error)
	Viewport(ctx context.Context) (geom.Rect, error)
	ZoomTo(ctx context.Context, items []*Item) error
}

// StatusError is a failed host call with its HTTP status.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

// Retryable reports whether the call may succeed when repeated: rate limits
// and server errors are, other client errors are not.
func (e *StatusError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// IsRetryable reports whether err is worth retrying. Errors that carry no
// status, such as network failures, are.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrUnsupported) || errors.Is(err, ErrNotFound) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
