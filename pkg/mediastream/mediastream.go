// Package mediastream presents encoded video files and numbered image-file
// sequences through one random-access, frame-indexed interface. Reads go
// through a bounded LRU frame cache; on a miss the underlying source decodes,
// repositioning only when the requested frame is not the immediate successor
// of the last physically decoded one.
package mediastream

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ojwoodford/imstream/pkg/imageseq"
	"github.com/ojwoodford/imstream/pkg/imaging"
	"github.com/ojwoodford/imstream/pkg/lru"
	"github.com/ojwoodford/imstream/pkg/videofile"
)

var (
	// ErrUnsupportedFormat is returned by Open for extensions that are
	// neither a known image nor a known video format.
	ErrUnsupportedFormat = errors.New("mediastream: unsupported format")

	// ErrEndOfStream is returned by ReadNextFrame once the stream is
	// exhausted.
	ErrEndOfStream = errors.New("mediastream: end of stream")

	// ErrClosed is returned by reads after Close.
	ErrClosed = errors.New("mediastream: stream closed")

	// ErrFrameOutOfRange is returned by Read for indices outside
	// [1, NumFrames].
	ErrFrameOutOfRange = errors.New("mediastream: frame index out of range")
)

// Last is a sentinel frame index addressing the final frame of a stream.
const Last = math.MaxInt

// Source is the capability set a frame backend must satisfy. Both the
// image-sequence prober and the ffmpeg decoder implement it.
type Source interface {
	ReadNext() (*imaging.Frame, error)
	SeekTime(t float64) error
	FrameRate() float64
	Duration() float64
	FrameCount() int
	Width() int
	Height() int
	Close() error
}

// videoExts is the recognized encoded-video extension set.
var videoExts = map[string]struct{}{
	"mpg": {}, "avi": {}, "mp4": {}, "m4v": {}, "mpeg": {}, "mxf": {},
	"mj2": {}, "wmv": {}, "asf": {}, "asx": {}, "mov": {}, "ogg": {},
}

// Stats are cumulative counters for one stream.
type Stats struct {
	CacheHits   uint64
	CacheMisses uint64
	Seeks       uint64 // explicit repositioning calls on the backend
}

// Stream is the unifying frame-indexed façade over one Source. Frame indices
// are 1-based; index 0 means "before the first frame". All operations are
// safe for concurrent use; one mutex covers the full read path so the cache
// and the backend cursor stay consistent.
type Stream struct {
	mu          sync.Mutex
	src         Source
	cache       *lru.Cache[*imaging.Frame]
	current     int
	lastDecoded int
	seeks       uint64
	closed      bool
}

// Option configures a Stream at construction.
type Option func(*config)

type config struct {
	cacheSize int
}

// WithCacheSize sets the frame-cache capacity. The default of 1 keeps only
// the frame just read, a valid no-cache mode.
func WithCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// Open dispatches on the filename extension: image extensions open an image
// sequence rooted at the named file, video extensions open an ffmpeg-backed
// decoder. Anything else fails with ErrUnsupportedFormat.
func Open(name string, opts ...Option) (*Stream, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))

	var (
		src Source
		err error
	)
	switch {
	case imaging.IsImageFile(name):
		src, err = imageseq.Open(name)
	default:
		if _, ok := videoExts[ext]; !ok {
			return nil, fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
		}
		src, err = videofile.Open(name)
	}
	if err != nil {
		return nil, err
	}

	s, err := New(src, opts...)
	if err != nil {
		src.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already-open Source. The Stream takes ownership and closes
// the source with Close.
func New(src Source, opts ...Option) (*Stream, error) {
	cfg := config{cacheSize: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Stream{src: src}
	cache, err := lru.New(cfg.cacheSize, s.readRaw)
	if err != nil {
		return nil, err
	}
	s.cache = cache
	return s, nil
}

// readRaw is the low-level read behind the cache: reposition unless the
// request continues where the last physical decode left off, then decode.
func (s *Stream) readRaw(frame int) (*imaging.Frame, error) {
	if frame != s.lastDecoded+1 {
		s.seeks++
		t := float64(frame-1) / s.src.FrameRate()
		if err := s.src.SeekTime(t); err != nil {
			return nil, fmt.Errorf("seek to frame %d: %w", frame, err)
		}
	}
	fr, err := s.src.ReadNext()
	if err != nil {
		// The backend cursor is now unknown; force a reposition on the
		// next miss instead of trusting the fast path.
		s.lastDecoded = -1
		return nil, fmt.Errorf("decode frame %d: %w", frame, err)
	}
	s.lastDecoded = frame
	return fr, nil
}

// Read returns the frame at the given 1-based index, from cache when
// resident. The Last sentinel addresses the final frame.
func (s *Stream) Read(frame int) (*imaging.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(frame)
}

func (s *Stream) read(frame int) (*imaging.Frame, error) {
	if s.closed {
		return nil, ErrClosed
	}
	count := s.src.FrameCount()
	if frame == Last {
		frame = count
	}
	if frame < 1 || frame > count {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrFrameOutOfRange, frame, count)
	}

	fr, err := s.cache.Get(frame)
	if err != nil {
		return nil, err
	}
	s.current = frame
	return fr, nil
}

// HasFrameRemaining reports whether a sequential read can still succeed.
func (s *Stream) HasFrameRemaining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.current < s.src.FrameCount()
}

// ReadNextFrame reads the frame after the current one, failing with
// ErrEndOfStream once the stream is exhausted.
func (s *Stream) ReadNextFrame() (*imaging.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.current >= s.src.FrameCount() {
		return nil, ErrEndOfStream
	}
	return s.read(s.current + 1)
}

// Seek positions the stream at the given frame, reporting success. It is the
// boolean-returning legacy adapter over Read.
func (s *Stream) Seek(frame int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	fr, err := s.read(frame)
	return err == nil && fr != nil
}

// Step moves the stream by delta frames relative to the current position.
func (s *Stream) Step(delta int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	fr, err := s.read(s.current + delta)
	return err == nil && fr != nil
}

// CurrentIndex returns the 1-based index of the last frame read, or 0 before
// the first read.
func (s *Stream) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// NumFrames returns the backend's precomputed frame count.
func (s *Stream) NumFrames() int { return s.src.FrameCount() }

// FrameRate returns the backend frame rate (synthetic for image sequences).
func (s *Stream) FrameRate() float64 { return s.src.FrameRate() }

// Duration returns the backend duration in seconds.
func (s *Stream) Duration() float64 { return s.src.Duration() }

// Width returns the frame width in pixels.
func (s *Stream) Width() int { return s.src.Width() }

// Height returns the frame height in pixels.
func (s *Stream) Height() int { return s.src.Height() }

// Stats returns cumulative cache and seek counters.
func (s *Stream) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	hits, misses := s.cache.Stats()
	return Stats{CacheHits: hits, CacheMisses: misses, Seeks: s.seeks}
}

// Close releases the backend and the cached frames. Closing twice is safe;
// reading after Close fails with ErrClosed.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cache.Purge()
	return s.src.Close()
}
