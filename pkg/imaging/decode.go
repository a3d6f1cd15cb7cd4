package imaging

import (
	"fmt"
	"image"
	"image/color"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DecodeFile reads and decodes a single image file into a Frame.
//
// Normalization rules: palette-indexed sources are expanded through their
// palette (0-based lookup); CMYK sources are converted to RGB; an alpha
// channel is kept only when at least one pixel is not fully opaque;
// 16-bit grayscale keeps its depth.
func DecodeFile(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imaging: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("imaging: decode %s: %w", path, err)
	}
	return FromImage(img), nil
}

// FromImage converts a decoded stdlib image into a normalized Frame.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		fr := &Frame{Pix: make([]byte, w*h), Width: w, Height: h, Channels: 1, BitsPerPixel: 8}
		for y := 0; y < h; y++ {
			copy(fr.Pix[y*w:(y+1)*w], src.Pix[y*src.Stride:y*src.Stride+w])
		}
		return fr
	case *image.Gray16:
		fr := &Frame{Pix: make([]byte, w*h*2), Width: w, Height: h, Channels: 1, BitsPerPixel: 16}
		for y := 0; y < h; y++ {
			copy(fr.Pix[y*w*2:(y+1)*w*2], src.Pix[y*src.Stride:y*src.Stride+w*2])
		}
		return fr
	case *image.Paletted:
		return expandPalette(src)
	case *image.CMYK:
		fr := &Frame{Pix: make([]byte, w*h*3), Width: w, Height: h, Channels: 3, BitsPerPixel: 8}
		o := 0
		for y := 0; y < h; y++ {
			i := y * src.Stride
			for x := 0; x < w; x++ {
				r, g, bl := color.CMYKToRGB(src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3])
				fr.Pix[o], fr.Pix[o+1], fr.Pix[o+2] = r, g, bl
				i += 4
				o += 3
			}
		}
		return fr
	}

	// Generic path: read out as NRGBA, then drop the alpha plane when it
	// carries no information.
	pix := make([]byte, w*h*4)
	opaque := true
	o := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			pix[o], pix[o+1], pix[o+2], pix[o+3] = c.R, c.G, c.B, c.A
			if c.A != 0xff {
				opaque = false
			}
			o += 4
		}
	}
	if !opaque {
		return &Frame{Pix: pix, Width: w, Height: h, Channels: 4, BitsPerPixel: 8}
	}
	rgb := make([]byte, w*h*3)
	for i, j := 0, 0; i < len(pix); i, j = i+4, j+3 {
		rgb[j], rgb[j+1], rgb[j+2] = pix[i], pix[i+1], pix[i+2]
	}
	return &Frame{Pix: rgb, Width: w, Height: h, Channels: 3, BitsPerPixel: 8}
}

// expandPalette resolves every index through the palette. Entries with
// transparency promote the result to 4 channels.
func expandPalette(src *image.Paletted) *Frame {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	pal := make([]color.NRGBA, len(src.Palette))
	opaque := true
	for i, entry := range src.Palette {
		c := color.NRGBAModel.Convert(entry).(color.NRGBA)
		pal[i] = c
		if c.A != 0xff {
			opaque = false
		}
	}

	ch := 3
	if !opaque {
		ch = 4
	}
	fr := &Frame{Pix: make([]byte, w*h*ch), Width: w, Height: h, Channels: ch, BitsPerPixel: 8}
	o := 0
	for y := 0; y < h; y++ {
		i := y * src.Stride
		for x := 0; x < w; x++ {
			c := pal[src.Pix[i+x]]
			fr.Pix[o], fr.Pix[o+1], fr.Pix[o+2] = c.R, c.G, c.B
			if ch == 4 {
				fr.Pix[o+3] = c.A
			}
			o += ch
		}
	}
	return fr
}
