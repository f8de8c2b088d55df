// Package source provides the frame sources the pipeline reads from.
// Sources deliver frames as fast as they are asked for; pacing is the
// pipeline driver's job.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
)

var (
	// ErrEndOfStream is returned by Next after the last frame
	ErrEndOfStream = errors.New("end of stream")
	// ErrClosed is returned once the source handle is invalid
	ErrClosed = errors.New("source closed")
)

// Kind describes where frames come from
type Kind string

const (
	KindCamera Kind = "camera"
	KindFile   Kind = "file"
	KindImages Kind = "images"
	KindMemory Kind = "memory"
)

// DefaultFPS is used when a source cannot report its own rate
const DefaultFPS = 30.0

// PatternPath selects the synthetic test pattern instead of a real input
const PatternPath = "pattern"

// Source yields successive frames
type Source interface {
	// Next returns the next frame, ErrEndOfStream at the end, ErrClosed
	// when the handle was invalidated, or a per-frame read error
	Next(ctx context.Context) (*frame.Frame, error)
	SeekToStart() error
	// FPS is the nominal rate; 0 when unknown
	FPS() float64
	Size() (width, height int)
	Kind() Kind
	Close() error
}

// Selection picks a source. Camera >= 0 selects a capture device and
// wins over Path; otherwise Path names a video file, a directory of
// images, or PatternPath.
type Selection struct {
	Camera int
	Path   string
	// FPS applies to image sequences and the test pattern
	FPS float64
	// Width and Height request a capture size from cameras and size the
	// test pattern
	Width  int
	Height int
}

// String describes the selection for logs
func (s Selection) String() string {
	if s.Camera >= 0 {
		return fmt.Sprintf("camera %d", s.Camera)
	}
	return s.Path
}

// Open resolves a selection. An invalid path or an unavailable camera is
// an error here rather than on the first Next.
func Open(ctx context.Context, sel Selection) (Source, error) {
	if sel.Camera >= 0 {
		return OpenCamera(ctx, sel.Camera, FFmpegOptions{Width: sel.Width, Height: sel.Height})
	}

	switch sel.Path {
	case "":
		return nil, fmt.Errorf("no camera or path selected")
	case PatternPath:
		w, h := sel.Width, sel.Height
		if w <= 0 || h <= 0 {
			w, h = 640, 480
		}
		return NewMemory(sel.FPS, Pattern(w, h, 90)...), nil
	}

	info, err := os.Stat(sel.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid source path: %w", err)
	}
	if info.IsDir() {
		return OpenImages(sel.Path, sel.FPS)
	}
	return OpenFile(ctx, sel.Path, FFmpegOptions{})
}
