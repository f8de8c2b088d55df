package source

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// ImageSequenceSource replays a directory of PNG/JPEG frames in name order
type ImageSequenceSource struct {
	dir    string
	files  []string
	fps    float64
	width  int
	height int

	mu     sync.Mutex
	next   int
	closed atomic.Bool
}

// OpenImages lists the frames in dir. fps <= 0 uses DefaultFPS.
func OpenImages(dir string, fps float64) (*ImageSequenceSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no png or jpeg frames in %s", dir)
	}
	sort.Strings(files)

	f, err := os.Open(files[0])
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", files[0], err)
	}

	if fps <= 0 {
		fps = DefaultFPS
	}

	logger.WithComponent("source").Info().
		Str("dir", dir).
		Int("frames", len(files)).
		Int("width", cfg.Width).
		Int("height", cfg.Height).
		Msg("Image sequence opened")

	return &ImageSequenceSource{dir: dir, files: files, fps: fps, width: cfg.Width, height: cfg.Height}, nil
}

// Next decodes the next image. A file that fails to decode is a per-frame
// error; the sequence continues with the following file.
func (s *ImageSequenceSource) Next(ctx context.Context) (*frame.Frame, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.next >= len(s.files) {
		s.mu.Unlock()
		return nil, ErrEndOfStream
	}
	path := s.files[s.next]
	s.next++
	seq := uint64(s.next)
	s.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("frame read failed: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	f := frame.FromImage(img)
	f.Seq = seq
	return f, nil
}

// SeekToStart rewinds to the first file
func (s *ImageSequenceSource) SeekToStart() error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.Lock()
	s.next = 0
	s.mu.Unlock()
	return nil
}

// FPS returns the configured rate
func (s *ImageSequenceSource) FPS() float64 { return s.fps }

// Size returns the size of the first frame
func (s *ImageSequenceSource) Size() (int, int) { return s.width, s.height }

// Kind returns KindImages
func (s *ImageSequenceSource) Kind() Kind { return KindImages }

// Close invalidates the source
func (s *ImageSequenceSource) Close() error {
	s.closed.Store(true)
	return nil
}
