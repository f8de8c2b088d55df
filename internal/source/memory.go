package source

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
)

// MemorySource serves frames held in memory
type MemorySource struct {
	mu       sync.Mutex
	frames   []*frame.Frame
	fps      float64
	next     int
	closed   bool
	failures map[int]error
	seeks    int
}

// NewMemory creates a source over frames. fps <= 0 reports DefaultFPS.
func NewMemory(fps float64, frames ...*frame.Frame) *MemorySource {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &MemorySource{frames: frames, fps: fps, failures: map[int]error{}}
}

// FailAt makes the read of frame index i return err instead, once each
// time playback reaches it
func (m *MemorySource) FailAt(i int, err error) {
	m.mu.Lock()
	m.failures[i] = err
	m.mu.Unlock()
}

// Next returns a clone of the next frame so callers may draw on it
func (m *MemorySource) Next(ctx context.Context) (*frame.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.next >= len(m.frames) {
		return nil, ErrEndOfStream
	}
	i := m.next
	m.next++
	if err, ok := m.failures[i]; ok {
		return nil, err
	}
	f := m.frames[i].Clone()
	f.Seq = uint64(i + 1)
	return f, nil
}

// SeekToStart rewinds to the first frame
func (m *MemorySource) SeekToStart() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.next = 0
	m.seeks++
	return nil
}

// Seeks reports how many times playback was rewound
func (m *MemorySource) Seeks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seeks
}

// FPS returns the configured rate
func (m *MemorySource) FPS() float64 { return m.fps }

// Size returns the size of the first frame
func (m *MemorySource) Size() (int, int) {
	if len(m.frames) == 0 {
		return 0, 0
	}
	return m.frames[0].Width(), m.frames[0].Height()
}

// Kind returns KindMemory
func (m *MemorySource) Kind() Kind { return KindMemory }

// Close invalidates the source
func (m *MemorySource) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Pattern renders n frames of a gradient with a bar sweeping across it
func Pattern(width, height, n int) []*frame.Frame {
	frames := make([]*frame.Frame, n)
	for i := range frames {
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		bar := 0
		if n > 0 {
			bar = i * width / n
		}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				c := color.RGBA{R: uint8(x * 255 / max(width, 1)), G: uint8(y * 255 / max(height, 1)), B: 96, A: 255}
				if x >= bar && x < bar+width/16+1 {
					c = color.RGBA{255, 255, 255, 255}
				}
				img.SetRGBA(x, y, c)
			}
		}
		frames[i] = frame.New(img, frame.RGBA)
	}
	return frames
}
