// Package wsfeed pushes landmark results to websocket clients as JSON.
package wsfeed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/landmark"
	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink"
)

// Name of the sink in the fan-out
const Name = "websocket"

const writeWait = 2 * time.Second

// Namer translates landmark indices. Detectors implement it.
type Namer interface {
	LandmarkName(i int) landmark.Name
}

// Point is one named landmark
type Point struct {
	Name landmark.Name `json:"name"`
	X    float64       `json:"x"`
	Y    float64       `json:"y"`
	Z    float64       `json:"z"`
}

// Person is one detected person on the wire
type Person struct {
	Landmarks  []Point    `json:"landmarks"`
	Confidence *float64   `json:"confidence,omitempty"`
	BBox       *pose.BBox `json:"bbox,omitempty"`
}

// Message is pushed once per frame
type Message struct {
	Seq     uint64   `json:"seq"`
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Persons []Person `json:"persons"`
}

// Encode names every landmark of res
func Encode(f *frame.Frame, res *pose.FrameResult, names Namer) Message {
	msg := Message{Width: res.Width, Height: res.Height, Persons: make([]Person, 0, len(res.Persons))}
	if f != nil {
		msg.Seq = f.Seq
	}
	for _, p := range res.Persons {
		out := Person{Landmarks: make([]Point, len(p.Landmarks)), Confidence: p.Confidence, BBox: p.BBox}
		for i, lm := range p.Landmarks {
			out.Landmarks[i] = Point{Name: names.LandmarkName(i), X: lm.X, Y: lm.Y, Z: lm.Z}
		}
		msg.Persons = append(msg.Persons, out)
	}
	return msg
}

// Sink fans each frame's message out to the connected clients. Clients
// that fall behind miss messages.
type Sink struct {
	names    Namer
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	open    bool
	clients map[chan Message]struct{}
}

// New creates a closed feed
func New(names Namer) *Sink {
	return &Sink{
		names: names,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[chan Message]struct{}),
	}
}

func (s *Sink) Name() string { return Name }

// Open accepts clients
func (s *Sink) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return nil
}

// Close disconnects every client
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = false
	for ch := range s.clients {
		close(ch)
	}
	s.clients = make(map[chan Message]struct{})
	return nil
}

// Clients counts connected clients
func (s *Sink) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Consume broadcasts res
func (s *Sink) Consume(_ context.Context, f *frame.Frame, res *pose.FrameResult) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.open {
		return sink.ErrNotOpen
	}
	if len(s.clients) == 0 || res == nil {
		return nil
	}

	msg := Encode(f, res, s.names)
	for ch := range s.clients {
		select {
		case ch <- msg:
		default:
			// Skip if channel is full
		}
	}
	return nil
}

// Handler upgrades the request and streams messages until the client goes
// away or the sink closes
func (s *Sink) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.WithComponent("wsfeed")

		s.mu.Lock()
		if !s.open {
			s.mu.Unlock()
			http.Error(w, "landmark feed disabled", http.StatusServiceUnavailable)
			return
		}
		s.mu.Unlock()

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		defer conn.Close()

		updates := make(chan Message, 10)
		s.mu.Lock()
		if !s.open {
			s.mu.Unlock()
			return
		}
		s.clients[updates] = struct{}{}
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			if _, ok := s.clients[updates]; ok {
				delete(s.clients, updates)
			}
			s.mu.Unlock()
		}()

		// Reader only drains control frames and notices the close
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-gone:
				return
			case msg, ok := <-updates:
				if !ok {
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
						time.Now().Add(writeWait))
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					log.Debug().Err(err).Msg("WebSocket write failed")
					return
				}
			}
		}
	}
}
