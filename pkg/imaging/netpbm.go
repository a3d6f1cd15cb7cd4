package imaging

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"io"
)

// Binary netpbm (P4 bitmap, P5 graymap, P6 pixmap) decode. Neither the
// stdlib nor x/image ships a netpbm codec, and the sequence formats this
// package supports include ppm/pgm/pbm, so a minimal decoder is registered
// here. ASCII variants (P1-P3) are not supported.

func init() {
	image.RegisterFormat("pbm", "P4", decodeNetpbm, netpbmConfig)
	image.RegisterFormat("pgm", "P5", decodeNetpbm, netpbmConfig)
	image.RegisterFormat("ppm", "P6", decodeNetpbm, netpbmConfig)
}

type netpbmHeader struct {
	magic  string
	width  int
	height int
	maxval int
}

// readNetpbmHeader parses the magic, dimensions and (for P5/P6) maxval,
// skipping '#' comments.
func readNetpbmHeader(r *bufio.Reader) (netpbmHeader, error) {
	var h netpbmHeader
	magic := make([]byte, 2)
	if _, err := io.ReadFull(r, magic); err != nil {
		return h, fmt.Errorf("netpbm: read magic: %w", err)
	}
	h.magic = string(magic)
	if h.magic != "P4" && h.magic != "P5" && h.magic != "P6" {
		return h, fmt.Errorf("netpbm: unsupported magic %q", h.magic)
	}

	fields := 2
	if h.magic != "P4" {
		fields = 3
	}
	vals := make([]int, 0, fields)
	for len(vals) < fields {
		v, err := readNetpbmInt(r)
		if err != nil {
			return h, err
		}
		vals = append(vals, v)
	}
	h.width, h.height = vals[0], vals[1]
	if fields == 3 {
		h.maxval = vals[2]
	}
	if h.width <= 0 || h.height <= 0 {
		return h, fmt.Errorf("netpbm: bad dimensions %dx%d", h.width, h.height)
	}
	if h.magic != "P4" && (h.maxval <= 0 || h.maxval > 65535) {
		return h, fmt.Errorf("netpbm: bad maxval %d", h.maxval)
	}
	return h, nil
}

func readNetpbmInt(r *bufio.Reader) (int, error) {
	n := -1
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("netpbm: header: %w", err)
		}
		switch {
		case b == '#':
			if _, err := r.ReadString('\n'); err != nil {
				return 0, fmt.Errorf("netpbm: comment: %w", err)
			}
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
			if n >= 0 {
				return n, nil
			}
		case b >= '0' && b <= '9':
			if n < 0 {
				n = 0
			}
			n = n*10 + int(b-'0')
		default:
			return 0, fmt.Errorf("netpbm: unexpected byte %q in header", b)
		}
	}
}

func netpbmConfig(r io.Reader) (image.Config, error) {
	h, err := readNetpbmHeader(bufio.NewReader(r))
	if err != nil {
		return image.Config{}, err
	}
	var model color.Model
	switch {
	case h.magic == "P6" && h.maxval > 255:
		model = color.NRGBA64Model
	case h.magic == "P6":
		model = color.NRGBAModel
	case h.maxval > 255:
		model = color.Gray16Model
	default:
		model = color.GrayModel
	}
	return image.Config{ColorModel: model, Width: h.width, Height: h.height}, nil
}

func decodeNetpbm(r io.Reader) (image.Image, error) {
	br := bufio.NewReader(r)
	h, err := readNetpbmHeader(br)
	if err != nil {
		return nil, err
	}

	switch h.magic {
	case "P4":
		img := image.NewGray(image.Rect(0, 0, h.width, h.height))
		rowBytes := (h.width + 7) / 8
		row := make([]byte, rowBytes)
		for y := 0; y < h.height; y++ {
			if _, err := io.ReadFull(br, row); err != nil {
				return nil, fmt.Errorf("netpbm: pixel data: %w", err)
			}
			for x := 0; x < h.width; x++ {
				// 1 bit is black in pbm.
				if row[x/8]&(0x80>>(x%8)) == 0 {
					img.Pix[y*img.Stride+x] = 0xff
				}
			}
		}
		return img, nil
	case "P5":
		if h.maxval > 255 {
			img := image.NewGray16(image.Rect(0, 0, h.width, h.height))
			if _, err := io.ReadFull(br, img.Pix); err != nil {
				return nil, fmt.Errorf("netpbm: pixel data: %w", err)
			}
			return img, nil
		}
		img := image.NewGray(image.Rect(0, 0, h.width, h.height))
		if _, err := io.ReadFull(br, img.Pix); err != nil {
			return nil, fmt.Errorf("netpbm: pixel data: %w", err)
		}
		return img, nil
	default: // P6
		n := h.width * h.height
		if h.maxval > 255 {
			raw := make([]byte, n*6)
			if _, err := io.ReadFull(br, raw); err != nil {
				return nil, fmt.Errorf("netpbm: pixel data: %w", err)
			}
			img := image.NewNRGBA64(image.Rect(0, 0, h.width, h.height))
			for i, o := 0, 0; i < len(raw); i, o = i+6, o+8 {
				copy(img.Pix[o:o+6], raw[i:i+6])
				img.Pix[o+6], img.Pix[o+7] = 0xff, 0xff
			}
			return img, nil
		}
		raw := make([]byte, n*3)
		if _, err := io.ReadFull(br, raw); err != nil {
			return nil, fmt.Errorf("netpbm: pixel data: %w", err)
		}
		img := image.NewNRGBA(image.Rect(0, 0, h.width, h.height))
		for i, o := 0, 0; i < len(raw); i, o = i+3, o+4 {
			img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = raw[i], raw[i+1], raw[i+2], 0xff
		}
		return img, nil
	}
}
