// Package oscsink broadcasts landmarks as OSC messages over UDP.
package oscsink

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/hypebeast/go-osc/osc"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
	"github.com/bryanchriswhite/PoseStreamer/internal/oscproto"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink"
)

// Name of the sink in the fan-out
const Name = "osc"

// Emitter shapes a result into broadcast messages. Detectors implement it.
type Emitter interface {
	Emit(res *pose.FrameResult, w oscproto.Writer) error
}

// Config addresses the receiving host
type Config struct {
	Host string
	Port int
}

// Addr is host:port
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Sink sends one datagram per message on a connected UDP socket
type Sink struct {
	cfg     Config
	emitter Emitter

	mu   sync.Mutex
	conn *net.UDPConn
	sent uint64
}

// New creates a closed sink
func New(cfg Config, emitter Emitter) *Sink {
	return &Sink{cfg: cfg, emitter: emitter}
}

func (s *Sink) Name() string { return Name }

// Open resolves and connects the target
func (s *Sink) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}
	if s.cfg.Port <= 0 || s.cfg.Port > 65535 {
		return fmt.Errorf("invalid OSC port %d", s.cfg.Port)
	}
	var d net.Dialer
	c, err := d.DialContext(ctx, "udp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to connect OSC target %s: %w", s.cfg.Addr(), err)
	}
	s.conn = c.(*net.UDPConn)

	logger.WithComponent("osc").Info().Str("addr", s.cfg.Addr()).Msg("OSC broadcast open")
	return nil
}

// Close releases the socket
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	logger.WithComponent("osc").Info().Uint64("sent", s.sent).Msg("OSC broadcast closed")
	return err
}

// Consume emits res through the configured emitter
func (s *Sink) Consume(_ context.Context, _ *frame.Frame, res *pose.FrameResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return sink.ErrNotOpen
	}
	if s.emitter == nil {
		return nil
	}
	return s.emitter.Emit(res, oscproto.WriterFunc(s.write))
}

// Sent counts delivered messages
func (s *Sink) Sent() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func (s *Sink) write(m oscproto.Message) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("send %s: %w", m.Address, err)
	}
	s.sent++
	return nil
}

// Encode serializes one message in OSC 1.0 binary form
func Encode(m oscproto.Message) ([]byte, error) {
	msg := osc.NewMessage(m.Address, m.Args...)
	data, err := msg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Address, err)
	}
	return data, nil
}
