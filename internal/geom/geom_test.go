package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type box struct {
	c Point
	s Size
}

func (b box) Center() Point { return b.c }
func (b box) Size() Size    { return b.s }

func TestBounds(t *testing.T) {
	_, ok := Bounds([]box{})
	assert.False(t, ok)

	r, ok := Bounds([]box{
		{c: Point{X: 50, Y: 50}, s: Size{W: 100, H: 100}},
		{c: Point{X: 300, Y: 20}, s: Size{W: 40, H: 60}},
	})
	assert.True(t, ok)
	assert.Equal(t, Rect{X: 0, Y: -10, W: 320, H: 110}, r)
	assert.Equal(t, Point{X: 160, Y: 45}, r.Center())
}
