package port

import "context"

// FrameReadResult summarizes one pass over a media source.
type FrameReadResult struct {
	FramePaths    []string
	FrameCount    int
	MediaDuration float64
	FrameRate     float64
	Width         int
	Height        int
}

// FrameReader reads every frame of a media file (encoded video or the first
// file of an image sequence) and writes them to outputDir as images.
type FrameReader interface {
	ReadFrames(ctx context.Context, mediaPath string, outputDir string) (*FrameReadResult, error)
}
