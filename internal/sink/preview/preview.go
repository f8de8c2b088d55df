// Package preview shows processed frames in a local X11 window.
package preview

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink"
)

// Name of the sink in the fan-out
const Name = "preview"

// Config sizes and labels the window
type Config struct {
	Title  string
	Width  int
	Height int
}

// Sink renders into one X11 window. The connection, window and graphics
// context are acquired by Open and released by Close.
type Sink struct {
	cfg Config

	mu     sync.Mutex
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	window xproto.Window
	gc     xproto.Gcontext
	format pixmapFormat
	canvas *image.RGBA
}

// New creates a closed preview
func New(cfg Config) *Sink {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 640, 480
	}
	if cfg.Title == "" {
		cfg.Title = "PoseStreamer"
	}
	return &Sink{cfg: cfg}
}

func (p *Sink) Name() string { return Name }

// Open connects to the X server and maps the window
func (p *Sink) Open(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		return nil
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}
	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	format, err := findFormat(setup.PixmapFormats, screen.RootDepth)
	if err != nil {
		conn.Close()
		return err
	}

	p.conn, p.screen, p.format = conn, screen, format
	if err := p.createWindow(); err != nil {
		p.release()
		return err
	}
	p.canvas = image.NewRGBA(image.Rect(0, 0, p.cfg.Width, p.cfg.Height))

	logger.WithComponent("preview").Info().
		Int("width", p.cfg.Width).
		Int("height", p.cfg.Height).
		Uint32("window_id", uint32(p.window)).
		Msg("Preview window created")
	return nil
}

func (p *Sink) createWindow() error {
	wid, err := xproto.NewWindowId(p.conn)
	if err != nil {
		return fmt.Errorf("failed to create window ID: %w", err)
	}
	p.window = wid

	mask := uint32(xproto.CwBackPixel | xproto.CwEventMask)
	values := []uint32{
		0x000000,
		xproto.EventMaskExposure | xproto.EventMaskStructureNotify,
	}
	err = xproto.CreateWindowChecked(
		p.conn,
		p.screen.RootDepth,
		p.window,
		p.screen.Root,
		0, 0,
		uint16(p.cfg.Width), uint16(p.cfg.Height),
		0,
		xproto.WindowClassInputOutput,
		p.screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		p.window = 0
		return fmt.Errorf("failed to create window: %w", err)
	}

	log := logger.WithComponent("preview")
	if err := p.setTitle(p.cfg.Title); err != nil {
		log.Warn().Err(err).Msg("Failed to set window title")
	}
	if err := p.setClass("posestreamer", "PoseStreamer"); err != nil {
		log.Warn().Err(err).Msg("Failed to set window class")
	}

	if err := xproto.MapWindowChecked(p.conn, p.window).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}

	gc, err := xproto.NewGcontextId(p.conn)
	if err != nil {
		return fmt.Errorf("failed to create graphics context: %w", err)
	}
	err = xproto.CreateGCChecked(
		p.conn,
		gc,
		xproto.Drawable(p.window),
		xproto.GcForeground|xproto.GcBackground,
		[]uint32{0xffffffff, 0x00000000},
	).Check()
	if err != nil {
		return fmt.Errorf("failed to create GC: %w", err)
	}
	p.gc = gc
	p.conn.Sync()
	return nil
}

// Close destroys the window and drops the connection
func (p *Sink) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	p.release()
	logger.WithComponent("preview").Info().Msg("Preview window closed")
	return nil
}

func (p *Sink) release() {
	if p.gc != 0 {
		xproto.FreeGC(p.conn, p.gc)
		p.gc = 0
	}
	if p.window != 0 {
		xproto.DestroyWindow(p.conn, p.window)
		p.conn.Sync()
		p.window = 0
	}
	p.conn.Close()
	p.conn = nil
	p.canvas = nil
}

// Consume letterboxes the frame into the window
func (p *Sink) Consume(_ context.Context, f *frame.Frame, _ *pose.FrameResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return sink.ErrNotOpen
	}
	if f == nil || f.Image == nil {
		return nil
	}

	draw.Draw(p.canvas, p.canvas.Bounds(), image.Black, image.Point{}, draw.Src)
	src := f.RGBA()
	scaleInto(p.canvas, fit(src.Bounds(), p.cfg.Width, p.cfg.Height), src)

	data, err := zpixmap(p.canvas, p.format, p.screen.RootDepth)
	if err != nil {
		return err
	}
	err = xproto.PutImageChecked(
		p.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(p.window),
		p.gc,
		uint16(p.cfg.Width),
		uint16(p.cfg.Height),
		0, 0,
		0,
		p.screen.RootDepth,
		data,
	).Check()
	if err != nil {
		return fmt.Errorf("failed to put image: %w", err)
	}
	return nil
}

func (p *Sink) setTitle(title string) error {
	titleAtom, err := p.atom("_NET_WM_NAME")
	if err != nil {
		return err
	}
	utf8Atom, err := p.atom("UTF8_STRING")
	if err != nil {
		return err
	}
	return xproto.ChangePropertyChecked(
		p.conn,
		xproto.PropModeReplace,
		p.window,
		titleAtom,
		utf8Atom,
		8,
		uint32(len(title)),
		[]byte(title),
	).Check()
}

func (p *Sink) setClass(instance, class string) error {
	classAtom, err := p.atom("WM_CLASS")
	if err != nil {
		return err
	}
	// WM_CLASS format: instance\0class\0
	v := instance + "\x00" + class + "\x00"
	return xproto.ChangePropertyChecked(
		p.conn,
		xproto.PropModeReplace,
		p.window,
		classAtom,
		xproto.AtomString,
		8,
		uint32(len(v)),
		[]byte(v),
	).Check()
}

func (p *Sink) atom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(p.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}
