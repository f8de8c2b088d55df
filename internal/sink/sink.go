// Package sink holds the frame consumers the pipeline fans out to. Every
// sink owns its own transport; a Switch acquires it on enable and
// releases it on disable.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
)

var (
	// ErrNotOpen is returned by Consume on a sink whose transport is closed
	ErrNotOpen = errors.New("sink not open")
	// ErrUnknownSink is returned for a name no switch is registered under
	ErrUnknownSink = errors.New("unknown sink")
)

// Sink consumes processed frames. Consume must not retain f or res.
type Sink interface {
	Name() string
	Open(ctx context.Context) error
	Close() error
	Consume(ctx context.Context, f *frame.Frame, res *pose.FrameResult) error
}

// State is a switch snapshot
type State struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Open    bool   `json:"open"`
	Error   string `json:"error,omitempty"`
}

// Switch gates a sink. Open and Close run under the same lock as Consume
// so a toggle never tears the transport down mid-call.
type Switch struct {
	sink    Sink
	enabled atomic.Bool

	mu      sync.Mutex
	open    bool
	initErr error
}

// NewSwitch wraps s, initially disabled
func NewSwitch(s Sink) *Switch {
	return &Switch{sink: s}
}

// Name of the wrapped sink
func (s *Switch) Name() string {
	return s.sink.Name()
}

// Sink returns the wrapped sink
func (s *Switch) Sink() Sink {
	return s.sink
}

// SetEnabled opens or closes the sink. An Open failure is logged and
// returned once; the switch stays enabled but consumes nothing until it is
// enabled again, which retries Open.
func (s *Switch) SetEnabled(ctx context.Context, on bool) error {
	log := logger.WithComponent("sink")

	s.mu.Lock()
	defer s.mu.Unlock()

	if !on {
		s.enabled.Store(false)
		s.initErr = nil
		if !s.open {
			return nil
		}
		s.open = false
		if err := s.sink.Close(); err != nil {
			log.Warn().Err(err).Str("sink", s.sink.Name()).Msg("Sink close failed")
			return fmt.Errorf("%s close: %w", s.sink.Name(), err)
		}
		log.Info().Str("sink", s.sink.Name()).Msg("Sink disabled")
		return nil
	}

	s.enabled.Store(true)
	if s.open {
		return nil
	}
	if err := s.sink.Open(ctx); err != nil {
		s.initErr = err
		log.Error().Err(err).Str("sink", s.sink.Name()).Msg("Sink init failed")
		return fmt.Errorf("%s open: %w", s.sink.Name(), err)
	}
	s.open = true
	s.initErr = nil
	log.Info().Str("sink", s.sink.Name()).Msg("Sink enabled")
	return nil
}

// Enabled reports the enable flag
func (s *Switch) Enabled() bool {
	return s.enabled.Load()
}

// State returns a snapshot
func (s *Switch) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{Name: s.sink.Name(), Enabled: s.enabled.Load(), Open: s.open}
	if s.initErr != nil {
		st.Error = s.initErr.Error()
	}
	return st
}

// Consume forwards to the sink when it is enabled and open
func (s *Switch) Consume(ctx context.Context, f *frame.Frame, res *pose.FrameResult) error {
	if !s.enabled.Load() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	return s.sink.Consume(ctx, f, res)
}

// Fanout delivers each frame to every switch in registration order
type Fanout struct {
	mu       sync.RWMutex
	switches []*Switch
}

// NewFanout registers switches
func NewFanout(switches ...*Switch) *Fanout {
	return &Fanout{switches: switches}
}

// Add registers another switch
func (f *Fanout) Add(s *Switch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switches = append(f.switches, s)
}

// Get finds a switch by sink name
func (f *Fanout) Get(name string) (*Switch, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.switches {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSink, name)
}

// States snapshots every switch, sorted by name
func (f *Fanout) States() []State {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]State, 0, len(f.switches))
	for _, s := range f.switches {
		out = append(out, s.State())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Consume hands the frame to every switch. Each one is attempted even when
// an earlier one fails; the failures are joined.
func (f *Fanout) Consume(ctx context.Context, fr *frame.Frame, res *pose.FrameResult) error {
	f.mu.RLock()
	switches := append([]*Switch(nil), f.switches...)
	f.mu.RUnlock()

	var errs []error
	for _, s := range switches {
		if err := s.Consume(ctx, fr, res); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close disables every switch, releasing the transports
func (f *Fanout) Close() error {
	f.mu.RLock()
	switches := append([]*Switch(nil), f.switches...)
	f.mu.RUnlock()

	var errs []error
	for _, s := range switches {
		if err := s.SetEnabled(context.Background(), false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
