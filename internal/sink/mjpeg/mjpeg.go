// Package mjpeg serves processed frames as a Motion JPEG stream over HTTP.
package mjpeg

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink"
)

// Name of the sink in the fan-out
const Name = "mjpeg"

// HeaderPixelFormat tags the channel order of the frames handed to the sink
const HeaderPixelFormat = "X-Pixel-Format"

// Config tunes the stream
type Config struct {
	// Quality is the JPEG quality, 1-100
	Quality int
	// Raw is the channel order served by the raw snapshot handler
	Raw frame.PixelFormat
}

type snapshot struct {
	jpeg   []byte
	raw    []byte
	format frame.PixelFormat
	width  int
	height int
}

// Sink encodes each frame once and broadcasts it to all connected clients.
// Slow clients drop frames instead of stalling the pipeline.
type Sink struct {
	cfg Config

	mu      sync.RWMutex
	running bool

	frameMu    sync.RWMutex
	current    *snapshot
	lastUpdate time.Time

	clientsMu sync.RWMutex
	clients   map[chan *snapshot]struct{}

	frameCount uint64
	startTime  time.Time
}

// New creates a stopped sink
func New(cfg Config) *Sink {
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 75
	}
	if cfg.Raw == "" {
		cfg.Raw = frame.BGRA
	}
	return &Sink{
		cfg:     cfg,
		clients: make(map[chan *snapshot]struct{}),
	}
}

func (m *Sink) Name() string { return Name }

// Open starts accepting frames
func (m *Sink) Open(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	m.running = true
	m.startTime = time.Now()
	m.frameCount = 0

	logger.WithComponent("mjpeg").Info().
		Int("quality", m.cfg.Quality).
		Str("raw_format", string(m.cfg.Raw)).
		Msg("MJPEG output started")
	return nil
}

// Close disconnects every client
func (m *Sink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	m.clientsMu.Lock()
	for ch := range m.clients {
		close(ch)
	}
	m.clients = make(map[chan *snapshot]struct{})
	m.clientsMu.Unlock()

	logger.WithComponent("mjpeg").Info().Uint64("frames", m.frameCount).Msg("MJPEG output stopped")
	return nil
}

// IsRunning reports whether the sink accepts frames
func (m *Sink) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Consume normalizes f from its declared channel order and broadcasts it
func (m *Sink) Consume(_ context.Context, f *frame.Frame, _ *pose.FrameResult) error {
	if !m.IsRunning() {
		return sink.ErrNotOpen
	}
	if f == nil || f.Image == nil {
		return fmt.Errorf("mjpeg: empty frame")
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, f.RGBA(), &jpeg.Options{Quality: m.cfg.Quality}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}

	raw := f.To(m.cfg.Raw)
	if f.Format == m.cfg.Raw {
		raw = bytes.Clone(raw)
	}

	snap := &snapshot{
		jpeg:   buf.Bytes(),
		raw:    raw,
		format: f.Format,
		width:  f.Width(),
		height: f.Height(),
	}

	m.frameMu.Lock()
	m.current = snap
	m.lastUpdate = time.Now()
	m.frameMu.Unlock()

	m.mu.Lock()
	m.frameCount++
	m.mu.Unlock()

	m.clientsMu.RLock()
	for ch := range m.clients {
		select {
		case ch <- snap:
		default:
			// Client is slow, skip this frame
		}
	}
	m.clientsMu.RUnlock()
	return nil
}

// Handler streams multipart/x-mixed-replace JPEG parts. Every part
// carries the pixel format the pipeline declared for it.
func (m *Sink) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.IsRunning() {
			http.Error(w, "MJPEG output not running", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		w.Header().Set("Connection", "close")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		frames := make(chan *snapshot, 2)

		m.clientsMu.Lock()
		m.clients[frames] = struct{}{}
		clientCount := len(m.clients)
		m.clientsMu.Unlock()

		log := logger.WithComponent("mjpeg")
		log.Info().Int("clients", clientCount).Msg("Client connected")

		defer func() {
			m.clientsMu.Lock()
			if _, ok := m.clients[frames]; ok {
				delete(m.clients, frames)
			}
			clientCount := len(m.clients)
			m.clientsMu.Unlock()
			log.Info().Int("clients", clientCount).Msg("Client disconnected")
		}()

		for {
			select {
			case <-r.Context().Done():
				return
			case snap, ok := <-frames:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\n%s: %s\r\nContent-Length: %d\r\n\r\n",
					HeaderPixelFormat, snap.format, len(snap.jpeg)); err != nil {
					return
				}
				if _, err := w.Write(snap.jpeg); err != nil {
					return
				}
				if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
					return
				}
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			}
		}
	}
}

// RawHandler serves the latest frame as raw 4-channel pixels in the
// configured channel order, tagged with its format and size
func (m *Sink) RawHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.frameMu.RLock()
		snap := m.current
		m.frameMu.RUnlock()

		if snap == nil {
			http.Error(w, "no frame yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set(HeaderPixelFormat, string(m.cfg.Raw))
		w.Header().Set("X-Frame-Width", strconv.Itoa(snap.width))
		w.Header().Set("X-Frame-Height", strconv.Itoa(snap.height))
		w.Write(snap.raw)
	}
}

// SnapshotHandler serves the latest frame as a single JPEG
func (m *Sink) SnapshotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.frameMu.RLock()
		snap := m.current
		m.frameMu.RUnlock()

		if snap == nil {
			http.Error(w, "no frame yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set(HeaderPixelFormat, string(snap.format))
		w.Write(snap.jpeg)
	}
}

// Stats describes the stream
type Stats struct {
	Running    bool    `json:"running"`
	Frames     uint64  `json:"frames"`
	Clients    int     `json:"clients"`
	FPS        float64 `json:"fps"`
	LastUpdate string  `json:"last_update,omitempty"`
}

// Stats snapshots the stream counters
func (m *Sink) Stats() Stats {
	m.mu.RLock()
	running, frames, start := m.running, m.frameCount, m.startTime
	m.mu.RUnlock()

	m.frameMu.RLock()
	last := m.lastUpdate
	m.frameMu.RUnlock()

	m.clientsMu.RLock()
	clients := len(m.clients)
	m.clientsMu.RUnlock()

	s := Stats{Running: running, Frames: frames, Clients: clients}
	if running && !start.IsZero() {
		if elapsed := time.Since(start).Seconds(); elapsed > 0 {
			s.FPS = float64(frames) / elapsed
		}
	}
	if !last.IsZero() {
		s.LastUpdate = last.Format(time.RFC3339Nano)
	}
	return s
}
