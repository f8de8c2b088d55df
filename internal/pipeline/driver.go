// Package pipeline runs the frame loop: read a frame, detect poses, hand
// both to the sinks, then wait out the rest of the frame interval.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/PoseStreamer/internal/detector"
	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
	"github.com/bryanchriswhite/PoseStreamer/internal/source"
)

// State of the driver
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

var (
	// ErrRunning is returned by Start while a session is active
	ErrRunning = errors.New("pipeline already running")
	// ErrNoSource is returned by Start without a source
	ErrNoSource = errors.New("no frame source")
)

// Consumer receives every processed frame. sink.Fanout implements it.
type Consumer interface {
	Consume(ctx context.Context, f *frame.Frame, res *pose.FrameResult) error
}

// Options configures the driver
type Options struct {
	// FPS overrides the source rate; 0 uses the source's own
	FPS float64
	// Loop restarts the source at end of stream
	Loop bool
	// Overlay draws the detector overlay on each frame before the sinks
	Overlay bool
	Clock   Clock
	// SizeLogEvery logs the frame size every n frames; 0 disables
	SizeLogEvery uint64
}

// Counters are the driver-owned playback counters. Frames restarts at 0
// on every loop; Position counts every frame of the session.
type Counters struct {
	Position uint64 `json:"position"`
	Frames   uint64 `json:"frames"`
	Loops    uint64 `json:"loops"`
	Loop     bool   `json:"loop"`
}

// Status is a snapshot of the driver
type Status struct {
	State    State     `json:"state"`
	Session  string    `json:"session,omitempty"`
	Source   string    `json:"source,omitempty"`
	Detector string    `json:"detector,omitempty"`
	Counters Counters  `json:"counters"`
	Stats    Stats     `json:"stats"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started,omitempty"`
}

// Driver owns one frame loop at a time
type Driver struct {
	sinks Consumer
	opts  Options
	clock Clock

	mu        sync.RWMutex
	state     State
	session   string
	srcName   string
	detName   string
	started   time.Time
	lastErr   string
	timings   *timings
	stopCh    chan struct{}
	done      chan struct{}
	listeners []chan Status

	stop     atomic.Bool
	loop     atomic.Bool
	position atomic.Uint64
	frames   atomic.Uint64
	loops    atomic.Uint64
}

// NewDriver creates an idle driver feeding sinks
func NewDriver(sinks Consumer, opts Options) *Driver {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	d := &Driver{
		sinks: sinks,
		opts:  opts,
		clock: opts.Clock,
		state: StateIdle,
		done:  closedChan(),
	}
	d.loop.Store(opts.Loop)
	return d
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Start begins a session in the background. A nil detector runs disabled.
func (d *Driver) Start(ctx context.Context, src source.Source, det detector.Detector) error {
	if err := d.begin(src, det); err != nil {
		return err
	}
	if det == nil {
		det = detector.Disabled(nil)
	}
	go d.loopFrames(ctx, src, det)
	return nil
}

// Run is Start followed by waiting for the session to end. It returns the
// error that ended the session, if any.
func (d *Driver) Run(ctx context.Context, src source.Source, det detector.Detector) error {
	if err := d.begin(src, det); err != nil {
		return err
	}
	if det == nil {
		det = detector.Disabled(nil)
	}
	return d.loopFrames(ctx, src, det)
}

func (d *Driver) begin(src source.Source, det detector.Detector) error {
	if src == nil {
		return ErrNoSource
	}

	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return ErrRunning
	}
	d.state = StateRunning
	d.session = uuid.NewString()
	d.srcName = string(src.Kind())
	d.detName = string(detector.KindDisabled)
	if det != nil {
		d.detName = string(det.Name())
	}
	d.started = d.clock.Now()
	d.lastErr = ""
	d.timings = newTimings(d.started)
	d.stopCh = make(chan struct{})
	d.done = make(chan struct{})
	d.mu.Unlock()

	d.stop.Store(false)
	d.position.Store(0)
	d.frames.Store(0)
	d.loops.Store(1)

	d.notify()
	return nil
}

// Stop asks the loop to end. It returns immediately; use Done to wait.
func (d *Driver) Stop() {
	d.mu.Lock()
	if d.state != StateRunning {
		d.mu.Unlock()
		return
	}
	d.state = StateStopping
	d.stop.Store(true)
	close(d.stopCh)
	d.mu.Unlock()
	d.notify()
}

// Done is closed when the current session has ended
func (d *Driver) Done() <-chan struct{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.done
}

// SetLoop toggles looping for the running and future sessions
func (d *Driver) SetLoop(on bool) {
	d.loop.Store(on)
	d.notify()
}

// Loop reports the loop flag
func (d *Driver) Loop() bool {
	return d.loop.Load()
}

// Counters returns the current counters
func (d *Driver) Counters() Counters {
	return Counters{
		Position: d.position.Load(),
		Frames:   d.frames.Load(),
		Loops:    d.loops.Load(),
		Loop:     d.loop.Load(),
	}
}

// Status returns a snapshot
func (d *Driver) Status() Status {
	d.mu.RLock()
	st := Status{
		State:    d.state,
		Session:  d.session,
		Source:   d.srcName,
		Detector: d.detName,
		Error:    d.lastErr,
		Started:  d.started,
	}
	t := d.timings
	d.mu.RUnlock()

	st.Counters = d.Counters()
	if t != nil {
		st.Stats = t.snapshot()
	}
	return st
}

// Subscribe returns a channel receiving status changes
func (d *Driver) Subscribe() chan Status {
	ch := make(chan Status, 10)
	d.mu.Lock()
	d.listeners = append(d.listeners, ch)
	d.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel
func (d *Driver) Unsubscribe(ch chan Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, listener := range d.listeners {
		if listener == ch {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

func (d *Driver) notify() {
	st := d.Status()

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, listener := range d.listeners {
		select {
		case listener <- st:
		default:
			// Skip if channel is full
		}
	}
}

func (d *Driver) finish(err error) {
	d.mu.Lock()
	d.state = StateIdle
	if err != nil {
		d.lastErr = err.Error()
	}
	done := d.done
	d.mu.Unlock()

	d.notify()
	close(done)
}

// loopFrames is the session body; it always leaves the driver idle
func (d *Driver) loopFrames(ctx context.Context, src source.Source, det detector.Detector) (err error) {
	d.mu.RLock()
	session, stopCh := d.session, d.stopCh
	d.mu.RUnlock()

	l := logger.WithComponent("pipeline").With().Str("session", session).Logger()
	log := &l
	readErrs := logger.NewThrottle(5*time.Second, 1)
	detectErrs := logger.NewThrottle(5*time.Second, 1)
	sinkErrs := logger.NewThrottle(5*time.Second, 1)

	fps := d.opts.FPS
	if fps <= 0 {
		fps = src.FPS()
	}
	interval := Interval(fps)

	log.Info().
		Str("source", string(src.Kind())).
		Str("detector", string(det.Name())).
		Dur("interval", interval).
		Bool("loop", d.loop.Load()).
		Msg("Pipeline started")

	defer func() {
		c := d.Counters()
		log.Info().
			Uint64("position", c.Position).
			Uint64("loops", c.Loops).
			AnErr("reason", err).
			Msg("Pipeline stopped")
		d.finish(err)
	}()

	for {
		if d.stop.Load() || ctx.Err() != nil {
			return nil
		}

		start := d.clock.Now()

		f, rerr := src.Next(ctx)
		if rerr != nil {
			f, rerr = d.recover(ctx, src, rerr, log, readErrs)
			if rerr != nil {
				if errors.Is(rerr, source.ErrClosed) {
					return rerr
				}
				return nil
			}
		}

		res, perr := det.Process(ctx, f)
		if perr != nil {
			detectErrs.Event(log.Warn()).Err(perr).Msg("Detection failed")
		}
		if d.opts.Overlay {
			det.RenderOverlay(f, res)
		}

		if d.sinks != nil {
			if serr := d.sinks.Consume(ctx, f, res); serr != nil {
				sinkErrs.Event(log.Warn()).Err(serr).Msg("Sink failed")
			}
		}

		now := d.clock.Now()
		elapsed := now.Sub(start)
		d.timings.observe(now, elapsed)

		d.logFrameSize(log, f, res)

		select {
		case <-d.clock.After(Delay(interval, elapsed)):
		case <-stopCh:
		case <-ctx.Done():
		}

		d.frames.Add(1)
		d.position.Add(1)
	}
}

// recover handles a failed read: with looping on, rewind and read once
// more. The returned error ends the session.
func (d *Driver) recover(ctx context.Context, src source.Source, cause error, log *zerolog.Logger, th *logger.Throttle) (*frame.Frame, error) {
	switch {
	case errors.Is(cause, source.ErrClosed):
		log.Error().Err(cause).Msg("Source invalidated")
		return nil, cause
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case !errors.Is(cause, source.ErrEndOfStream):
		th.Event(log.Warn()).Err(cause).Msg("Frame read failed")
	}

	if !d.loop.Load() {
		log.Info().Uint64("frames", d.frames.Load()).Msg("End of stream")
		return nil, cause
	}

	if err := src.SeekToStart(); err != nil {
		return nil, fmt.Errorf("rewind failed: %w", err)
	}
	d.frames.Store(0)
	loops := d.loops.Add(1)
	log.Info().Uint64("loop", loops).Msg("Looping source")
	d.notify()

	f, err := src.Next(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("No frame after rewind")
		return nil, err
	}
	return f, nil
}

func (d *Driver) logFrameSize(log *zerolog.Logger, f *frame.Frame, res *pose.FrameResult) {
	every := d.opts.SizeLogEvery
	if every == 0 || d.position.Load()%every != 0 {
		return
	}
	log.Debug().
		Int("width", f.Width()).
		Int("height", f.Height()).
		Int("persons", len(res.Persons)).
		Int("landmarks", res.NumLandmarks()).
		Uint64("loop", d.loops.Load()).
		Uint64("frame", d.frames.Load()).
		Msg("Frame")
}
