// Package imageseq exposes a directory of numbered image files as a virtual
// video: frame indices map to filenames generated from the name of the first
// file, with sequence length discovered by probing the filesystem once.
package imageseq

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ojwoodford/imstream/pkg/imaging"
)

var (
	// ErrNoSequenceNumber is returned by Open when the filename carries no
	// run of decimal digits to derive a sequence from.
	ErrNoSequenceNumber = errors.New("imageseq: filename contains no sequence number")

	// ErrFrameOutOfRange is returned by Read for indices outside [1, FrameCount].
	ErrFrameOutOfRange = errors.New("imageseq: frame index out of range")
)

// syntheticFrameRate satisfies the time-based parts of the stream contract.
// An image sequence has no real temporal rate.
const syntheticFrameRate = 30.0

// Source is an image-sequence frame source. Frame 1 is the file named in
// Open; sequences are contiguous, ending at the first missing file.
type Source struct {
	dir    string
	prefix string
	suffix string
	pad    int
	first  int // on-disk index of frame 1

	count  int
	cursor int // next frame for ReadNext, 1-based

	width        int
	height       int
	channels     int
	bitsPerPixel int
}

// Open builds a Source from the path of any frame of the sequence. The LAST
// maximal run of decimal digits in the base name is the sequence number; its
// zero-padding width is preserved when generating probe filenames.
func Open(path string) (*Source, error) {
	dir, base := filepath.Split(path)
	start, end := lastDigitRun(base)
	if start < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSequenceNumber, base)
	}

	first, err := strconv.Atoi(base[start:end])
	if err != nil {
		return nil, fmt.Errorf("imageseq: parse sequence number in %s: %w", base, err)
	}

	s := &Source{
		dir:    dir,
		prefix: base[:start],
		suffix: base[end:],
		pad:    end - start,
		first:  first,
		cursor: 1,
	}

	s.count = s.probe()
	if s.count == 0 {
		return nil, fmt.Errorf("imageseq: open first frame %s: no readable file", path)
	}

	fr, err := imaging.DecodeFile(s.pathFor(1))
	if err != nil {
		return nil, fmt.Errorf("imageseq: decode first frame: %w", err)
	}
	s.width = fr.Width
	s.height = fr.Height
	s.channels = fr.Channels
	s.bitsPerPixel = fr.BitsPerPixel
	return s, nil
}

// lastDigitRun returns the [start, end) bounds of the last maximal run of
// ASCII digits in s, or (-1, -1) when there is none.
func lastDigitRun(s string) (int, int) {
	end := -1
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] >= '0' && s[i] <= '9' {
			if end < 0 {
				end = i + 1
			}
		} else if end >= 0 {
			return i + 1, end
		}
	}
	if end < 0 {
		return -1, -1
	}
	return 0, end
}

// probe counts contiguous on-disk frames starting from the named file,
// stopping at the first index that cannot be opened.
func (s *Source) probe() int {
	n := 0
	for {
		f, err := os.Open(s.pathFor(n + 1))
		if err != nil {
			return n
		}
		f.Close()
		n++
	}
}

func (s *Source) pathFor(frame int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%0*d%s", s.prefix, s.pad, s.first+frame-1, s.suffix))
}

// Read decodes the frame at the given 1-based index.
func (s *Source) Read(frame int) (*imaging.Frame, error) {
	if frame < 1 || frame > s.count {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrFrameOutOfRange, frame, s.count)
	}
	fr, err := imaging.DecodeFile(s.pathFor(frame))
	if err != nil {
		return nil, fmt.Errorf("imageseq: read frame %d: %w", frame, err)
	}
	return fr, nil
}

// ReadNext decodes the frame at the internal cursor and advances it.
func (s *Source) ReadNext() (*imaging.Frame, error) {
	fr, err := s.Read(s.cursor)
	if err != nil {
		return nil, err
	}
	s.cursor++
	return fr, nil
}

// SeekTime positions the cursor at the frame covering time t. Index-addressed
// storage makes this exact, unlike a real video decoder.
func (s *Source) SeekTime(t float64) error {
	s.cursor = int(math.Round(t*syntheticFrameRate)) + 1
	return nil
}

// FrameRate returns the synthetic rate used to satisfy time-based contracts.
func (s *Source) FrameRate() float64 { return syntheticFrameRate }

// Duration returns the synthetic duration in seconds.
func (s *Source) Duration() float64 { return float64(s.count) / syntheticFrameRate }

// FrameCount returns the probed sequence length.
func (s *Source) FrameCount() int { return s.count }

// Width returns the pixel width of the first frame.
func (s *Source) Width() int { return s.width }

// Height returns the pixel height of the first frame.
func (s *Source) Height() int { return s.height }

// Channels returns the channel count of the first frame.
func (s *Source) Channels() int { return s.channels }

// BitsPerPixel returns the per-channel depth of the first frame.
func (s *Source) BitsPerPixel() int { return s.bitsPerPixel }

// Close releases the source. Image sequences hold no OS resources between
// reads, so this is a no-op kept for the stream contract.
func (s *Source) Close() error { return nil }
