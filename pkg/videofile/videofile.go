// Package videofile decodes encoded video files through an external ffmpeg
// process. Frames arrive as raw rgb24 over a pipe; repositioning tears the
// pipe down and respawns ffmpeg with an input seek, which is expensive
// relative to reading the next frame, and only as accurate as the container's
// time-based seeking allows.
package videofile

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ojwoodford/imstream/pkg/imaging"
)

// ErrNoVideoStream is returned by Open when ffprobe finds no video stream.
var ErrNoVideoStream = errors.New("videofile: no video stream")

// Source decodes one video file. It keeps at most one ffmpeg process alive;
// the process is spawned lazily on the first read after Open or SeekTime.
type Source struct {
	path      string
	width     int
	height    int
	frameRate float64
	duration  float64
	count     int

	cmd     *exec.Cmd
	pipe    io.ReadCloser
	pending float64 // start time for the next spawn
}

// Open probes the file's stream metadata. No decode process is started yet.
func Open(path string) (*Source, error) {
	meta, err := probe(path)
	if err != nil {
		return nil, err
	}

	s := &Source{
		path:      path,
		width:     meta.width,
		height:    meta.height,
		frameRate: meta.frameRate,
		duration:  meta.duration,
		count:     meta.frames,
	}
	if s.count == 0 {
		s.count = int(math.Round(s.duration * s.frameRate))
	}
	return s, nil
}

type probeResult struct {
	width     int
	height    int
	frameRate float64
	duration  float64
	frames    int
}

// probe runs ffprobe on the first video stream, returning key=value output
// parsed into stream metadata.
func probe(path string) (probeResult, error) {
	var res probeResult

	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return res, fmt.Errorf("videofile: ffprobe %s: %w", path, err)
	}

	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || value == "N/A" {
			continue
		}
		switch key {
		case "width":
			res.width, _ = strconv.Atoi(value)
		case "height":
			res.height, _ = strconv.Atoi(value)
		case "nb_frames":
			res.frames, _ = strconv.Atoi(value)
		case "duration":
			res.duration, _ = strconv.ParseFloat(value, 64)
		case "r_frame_rate":
			res.frameRate = parseRate(value)
		}
	}

	if res.width == 0 || res.height == 0 {
		return res, fmt.Errorf("%w: %s", ErrNoVideoStream, path)
	}
	if res.frameRate == 0 {
		return res, fmt.Errorf("videofile: %s: no frame rate reported", path)
	}
	return res, nil
}

// parseRate handles ffprobe's fractional rates, e.g. "30000/1001".
func parseRate(s string) float64 {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0
		}
		return n / d
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// SeekTime repositions the decode cursor. The running pipe, if any, is torn
// down; the next ReadNext spawns ffmpeg with an input seek to t.
func (s *Source) SeekTime(t float64) error {
	s.stop()
	if t < 0 {
		t = 0
	}
	s.pending = t
	return nil
}

// ReadNext decodes the frame at the current cursor and advances it. io.EOF
// signals that the stream ran out.
func (s *Source) ReadNext() (*imaging.Frame, error) {
	if s.pipe == nil {
		if err := s.spawn(); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, s.width*s.height*3)
	if _, err := io.ReadFull(s.pipe, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("videofile: read frame: %w", err)
	}

	return &imaging.Frame{
		Pix:          buf,
		Width:        s.width,
		Height:       s.height,
		Channels:     3,
		BitsPerPixel: 8,
	}, nil
}

func (s *Source) spawn() error {
	args := []string{"-v", "error"}
	if s.pending > 0 {
		args = append(args, "-ss", strconv.FormatFloat(s.pending, 'f', 6, 64))
	}
	args = append(args,
		"-i", s.path,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-an",
		"pipe:1",
	)

	cmd := exec.Command("ffmpeg", args...)
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("videofile: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("videofile: start ffmpeg: %w", err)
	}

	s.cmd = cmd
	s.pipe = pipe
	return nil
}

func (s *Source) stop() {
	if s.cmd == nil {
		return
	}
	s.pipe.Close()
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	s.cmd = nil
	s.pipe = nil
}

// FrameRate returns the probed stream frame rate.
func (s *Source) FrameRate() float64 { return s.frameRate }

// Duration returns the container duration in seconds.
func (s *Source) Duration() float64 { return s.duration }

// FrameCount returns nb_frames when the container reports it, otherwise
// round(duration * frame rate).
func (s *Source) FrameCount() int { return s.count }

// Width returns the pixel width of the video stream.
func (s *Source) Width() int { return s.width }

// Height returns the pixel height of the video stream.
func (s *Source) Height() int { return s.height }

// Close kills the decode process, if one is running.
func (s *Source) Close() error {
	s.stop()
	return nil
}
