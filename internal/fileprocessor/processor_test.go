package fileprocessor

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestScanFiles(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 1, 1)
	writePNG(t, filepath.Join(dir, "a.PNG"), 1, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.png"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	files, err := NewProcessor(dir, "").ScanFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.PNG", "b.png"}, files)

	_, err = NewProcessor(filepath.Join(dir, "missing"), "").ScanFiles()
	assert.Error(t, err)
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	done := filepath.Join(dir, "done")
	writePNG(t, filepath.Join(dir, "img_1.png"), 1, 1)
	writePNG(t, filepath.Join(dir, "img_2.png"), 1, 1)

	p := NewProcessor(dir, done)
	require.NoError(t, p.MoveFile("img_1.png", "3tiles"))
	require.NoError(t, p.MoveFile("img_2.png", ""))

	assert.FileExists(t, filepath.Join(done, "img_1_3tiles.png"))
	assert.FileExists(t, filepath.Join(done, "img_2.png"))
	assert.NoFileExists(t, filepath.Join(dir, "img_1.png"))

	assert.Error(t, p.MoveFile("img_9.png", ""))
}

func TestDecode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.png")
	writePNG(t, path, 30, 20)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	w, h, err := Dimensions(data)
	require.NoError(t, err)
	assert.Equal(t, 30, w)
	assert.Equal(t, 20, h)

	img, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(30, 20), img.Bounds().Size())

	_, err = Decode([]byte("garbage"))
	assert.Error(t, err)
	_, _, err = Dimensions([]byte("garbage"))
	assert.Error(t, err)
}

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.png", "b.JPG", "c.webp", "d.tiff"} {
		assert.True(t, IsImageFile(name), name)
	}
	for _, name := range []string{"a.mp4", "b", "c.txt"} {
		assert.False(t, IsImageFile(name), name)
	}
}
