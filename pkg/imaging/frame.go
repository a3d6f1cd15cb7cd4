// Package imaging holds the Frame pixel-buffer value type and the thin
// collaborators around on-disk images: single-file decode with palette,
// alpha and CMYK normalization, binary netpbm support, and image-only
// directory listing.
package imaging

import (
	"fmt"
	"image"
	"image/color"
)

// Frame is an owned, cheaply-movable pixel buffer. Pix is interleaved and
// row-major; Channels is 1 (gray), 3 (RGB) or 4 (RGBA); BitsPerPixel is the
// per-channel depth (8 or 16, 16-bit samples big-endian).
type Frame struct {
	Pix          []byte
	Width        int
	Height       int
	Channels     int
	BitsPerPixel int
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := *f
	out.Pix = make([]byte, len(f.Pix))
	copy(out.Pix, f.Pix)
	return &out
}

// Bytes returns the raw interleaved pixel data.
func (f *Frame) Bytes() []byte { return f.Pix }

// Stride returns the number of bytes per row.
func (f *Frame) Stride() int {
	return f.Width * f.Channels * f.BitsPerPixel / 8
}

// ToImage converts the frame back to a stdlib image for re-encoding.
func (f *Frame) ToImage() (image.Image, error) {
	rect := image.Rect(0, 0, f.Width, f.Height)
	switch {
	case f.Channels == 1 && f.BitsPerPixel == 8:
		img := image.NewGray(rect)
		copy(img.Pix, f.Pix)
		return img, nil
	case f.Channels == 1 && f.BitsPerPixel == 16:
		img := image.NewGray16(rect)
		copy(img.Pix, f.Pix)
		return img, nil
	case f.Channels == 3 && f.BitsPerPixel == 8:
		img := image.NewNRGBA(rect)
		for i, o := 0, 0; i < len(f.Pix); i, o = i+3, o+4 {
			img.Pix[o] = f.Pix[i]
			img.Pix[o+1] = f.Pix[i+1]
			img.Pix[o+2] = f.Pix[i+2]
			img.Pix[o+3] = 0xff
		}
		return img, nil
	case f.Channels == 4 && f.BitsPerPixel == 8:
		img := image.NewNRGBA(rect)
		copy(img.Pix, f.Pix)
		return img, nil
	case f.Channels == 3 && f.BitsPerPixel == 16:
		img := image.NewNRGBA64(rect)
		for i, o := 0, 0; i < len(f.Pix); i, o = i+6, o+8 {
			copy(img.Pix[o:o+6], f.Pix[i:i+6])
			img.Pix[o+6] = 0xff
			img.Pix[o+7] = 0xff
		}
		return img, nil
	default:
		return nil, fmt.Errorf("imaging: unsupported frame layout %dch/%dbit", f.Channels, f.BitsPerPixel)
	}
}

// At returns the pixel at (x, y) as a color, for spot checks in tests and
// callers that do not want to index Pix directly. 8-bit frames only.
func (f *Frame) At(x, y int) color.Color {
	if f.BitsPerPixel != 8 {
		return color.Gray{}
	}
	i := (y*f.Width + x) * f.Channels
	switch f.Channels {
	case 1:
		return color.Gray{Y: f.Pix[i]}
	case 3:
		return color.NRGBA{R: f.Pix[i], G: f.Pix[i+1], B: f.Pix[i+2], A: 0xff}
	case 4:
		return color.NRGBA{R: f.Pix[i], G: f.Pix[i+1], B: f.Pix[i+2], A: f.Pix[i+3]}
	}
	return color.Gray{}
}
