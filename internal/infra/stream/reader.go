// Package stream adapts the mediastream library to the worker's FrameReader
// port: it walks every frame of a media file and writes each one out as an
// image, reporting stream metadata and feeding cache counters into metrics.
package stream

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ojwoodford/imstream/internal/domain/port"
	"github.com/ojwoodford/imstream/internal/infra/metrics"
	"github.com/ojwoodford/imstream/pkg/mediastream"
)

type Reader struct {
	cacheSize int
	logger    *zap.Logger
}

func NewReader(cacheSize int, logger *zap.Logger) *Reader {
	return &Reader{cacheSize: cacheSize, logger: logger}
}

// ReadFrames opens mediaPath as a frame stream (video file or image
// sequence, dispatched by extension) and writes every frame to outputDir as
// frame_NNNNN.png.
func (r *Reader) ReadFrames(ctx context.Context, mediaPath string, outputDir string) (*port.FrameReadResult, error) {
	s, err := mediastream.Open(mediaPath, mediastream.WithCacheSize(r.cacheSize))
	if err != nil {
		return nil, fmt.Errorf("open media stream: %w", err)
	}
	defer s.Close()

	result := &port.FrameReadResult{
		MediaDuration: s.Duration(),
		FrameRate:     s.FrameRate(),
		Width:         s.Width(),
		Height:        s.Height(),
	}

	for s.HasFrameRemaining() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		fr, err := s.ReadNextFrame()
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", s.CurrentIndex()+1, err)
		}

		img, err := fr.ToImage()
		if err != nil {
			return nil, fmt.Errorf("convert frame %d: %w", s.CurrentIndex(), err)
		}

		framePath := filepath.Join(outputDir, fmt.Sprintf("frame_%05d.png", s.CurrentIndex()))
		if err := writePNG(framePath, img); err != nil {
			return nil, err
		}
		result.FramePaths = append(result.FramePaths, framePath)
		result.FrameCount++
	}

	st := s.Stats()
	metrics.StreamCacheHits.Add(float64(st.CacheHits))
	metrics.StreamCacheMisses.Add(float64(st.CacheMisses))
	metrics.StreamSeeks.Add(float64(st.Seeks))

	r.logger.Info("media stream drained",
		zap.String("path", filepath.Base(mediaPath)),
		zap.Int("frames", result.FrameCount),
		zap.Float64("frame_rate", result.FrameRate),
		zap.Uint64("cache_hits", st.CacheHits),
		zap.Uint64("seeks", st.Seeks),
	)

	return result, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
