package board

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"board-tiler/internal/geom"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &StatusError{Op: "create", Status: 429}, true},
		{"server error", fmt.Errorf("wrapped: %w", &StatusError{Op: "create", Status: 503}), true},
		{"bad request", &StatusError{Op: "create", Status: 400}, false},
		{"not found", fmt.Errorf("sync: %w", ErrNotFound), false},
		{"unsupported", ErrUnsupported, false},
		{"network", errors.New("connection reset by peer"), true},
		{"cancelled", fmt.Errorf("create: %w", context.Canceled), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestItem(t *testing.T) {
	it := &Item{ID: "1", Title: "img_3", X: 10, Y: 20, Width: 200, Height: 100}
	assert.Equal(t, "img_3", it.Name())
	assert.Equal(t, geom.Point{X: 10, Y: 20}, it.Center())
	assert.Equal(t, 2.0, it.Aspect())

	it.MoveTo(geom.Point{X: 1, Y: 2})
	it.Resize(geom.Size{W: 50, H: 25})
	assert.Equal(t, geom.Rect{X: -24, Y: -10.5, W: 50, H: 25}, geom.RectAround(it.Center(), it.Size()))

	assert.Equal(t, 1.0, (&Item{}).Aspect())
	assert.EqualError(t, &StatusError{Op: "sync", Status: 400, Body: "bad"}, "sync: status 400: bad")
}
