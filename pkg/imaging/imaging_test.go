package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestDecodeFileRGB(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 0xff})
	path := filepath.Join(dir, "a.png")
	writePNG(t, path, img)

	fr, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, fr.Width)
	assert.Equal(t, 2, fr.Height)
	assert.Equal(t, 3, fr.Channels, "fully opaque alpha is dropped")
	assert.Equal(t, 8, fr.BitsPerPixel)
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 0xff}, fr.At(1, 0))
}

func TestDecodeFileKeepsRealAlpha(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 128})
	path := filepath.Join(dir, "alpha.png")
	writePNG(t, path, img)

	fr, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, fr.Channels)
}

func TestPaletteExpansion(t *testing.T) {
	pal := color.Palette{
		color.NRGBA{R: 0xff, A: 0xff},
		color.NRGBA{G: 0xff, A: 0xff},
	}
	img := image.NewPaletted(image.Rect(0, 0, 2, 1), pal)
	img.SetColorIndex(0, 0, 0)
	img.SetColorIndex(1, 0, 1)

	dir := t.TempDir()
	path := filepath.Join(dir, "pal.gif")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, gif.Encode(f, img, nil))
	f.Close()

	fr, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, fr.Channels)
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0xff}, fr.At(0, 0))
	assert.Equal(t, color.NRGBA{G: 0xff, A: 0xff}, fr.At(1, 0))
}

func TestDecodeNetpbmP6(t *testing.T) {
	raw := append([]byte("P6\n# comment\n2 1\n255\n"),
		0xff, 0x00, 0x00, 0x00, 0xff, 0x00)
	img, _, err := image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	fr := FromImage(img)
	assert.Equal(t, 2, fr.Width)
	assert.Equal(t, 1, fr.Height)
	assert.Equal(t, 3, fr.Channels)
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0xff}, fr.At(0, 0))
	assert.Equal(t, color.NRGBA{G: 0xff, A: 0xff}, fr.At(1, 0))
}

func TestDecodeNetpbmP5(t *testing.T) {
	raw := append([]byte("P5\n3 1\n255\n"), 0, 128, 255)
	img, _, err := image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	fr := FromImage(img)
	assert.Equal(t, 1, fr.Channels)
	assert.Equal(t, []byte{0, 128, 255}, fr.Pix)
}

func TestFrameRoundTrip(t *testing.T) {
	fr := &Frame{
		Pix:          []byte{1, 2, 3, 4, 5, 6},
		Width:        2,
		Height:       1,
		Channels:     3,
		BitsPerPixel: 8,
	}
	img, err := fr.ToImage()
	require.NoError(t, err)

	back := FromImage(img)
	assert.Equal(t, fr.Pix, back.Pix)
	assert.Equal(t, fr.Width, back.Width)
	assert.Equal(t, fr.Channels, back.Channels)
}

func TestCloneIsIndependent(t *testing.T) {
	fr := &Frame{Pix: []byte{9}, Width: 1, Height: 1, Channels: 1, BitsPerPixel: 8}
	cp := fr.Clone()
	cp.Pix[0] = 0
	assert.Equal(t, byte(9), fr.Pix[0])
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.JPG", "c.txt", "d.tiff"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	names, err := ListImages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.JPG", "d.tiff"}, names)
}
