package memboard

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"board-tiler/internal/board"
	"board-tiler/internal/geom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestBoard_CreateAndSync(t *testing.T) {
	ctx := context.Background()
	b := New(geom.Rect{W: 800, H: 600})

	it, err := b.CreateImage(ctx, board.ImageSpec{
		Data:   pngBytes(t, 40, 20),
		Title:  "tile",
		Center: geom.Point{X: 5, Y: 6},
		Width:  80,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, it.ID)
	assert.Equal(t, 80.0, it.Width)
	assert.Equal(t, 40.0, it.Height)
	assert.Equal(t, 1, b.Creates)

	it.MoveTo(geom.Point{X: 100, Y: 200})
	assert.Equal(t, 5.0, b.Items()[0].X, "local change is not persisted before sync")
	require.NoError(t, b.Sync(ctx, it))
	assert.Equal(t, 100.0, b.Items()[0].X)

	data, err := b.ImageData(ctx, it)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	require.NoError(t, b.SetMetadata(ctx, it, "tiles", map[string]any{"col": 1}))
	assert.Equal(t, map[string]any{"col": 1}, b.Metadata(it.ID, "tiles"))

	require.NoError(t, b.ZoomTo(ctx, []*board.Item{it}))
	assert.Equal(t, []string{it.ID}, b.Zoomed())
}

func TestBoard_Selection(t *testing.T) {
	b := New(geom.Rect{})
	b.Add(board.Item{Title: "a"}, nil)
	c := b.Add(board.Item{Title: "c"}, nil)

	sel, err := b.Selection(context.Background())
	require.NoError(t, err)
	require.Len(t, sel, 2)

	// selection hands out copies
	sel[0].Title = "changed"
	assert.Equal(t, "a", b.Items()[0].Title)

	b.Select(c.ID)
	sel, _ = b.Selection(context.Background())
	require.Len(t, sel, 1)
	assert.Equal(t, "c", sel[0].Title)

	b.Select()
	sel, _ = b.Selection(context.Background())
	assert.Empty(t, sel)
}

func TestBoard_Errors(t *testing.T) {
	ctx := context.Background()
	b := New(geom.Rect{})

	assert.ErrorIs(t, b.Sync(ctx, &board.Item{ID: "missing"}), board.ErrNotFound)
	_, err := b.ImageData(ctx, &board.Item{ID: "missing"})
	assert.ErrorIs(t, err, board.ErrNotFound)

	_, err = b.CreateImage(ctx, board.ImageSpec{Data: []byte("not an image")})
	var se *board.StatusError
	require.ErrorAs(t, err, &se)
	assert.False(t, board.IsRetryable(err))

	errBusy := errors.New("busy")
	b.CreateHook = func(board.ImageSpec) error { return errBusy }
	_, err = b.CreateImage(ctx, board.ImageSpec{Data: pngBytes(t, 1, 1)})
	assert.ErrorIs(t, err, errBusy)
	assert.Zero(t, b.Creates)
}
