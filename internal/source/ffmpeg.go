package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
)

// FFmpegOptions tunes the decoder subprocess
type FFmpegOptions struct {
	// Binaries; default to ffmpeg and ffprobe on PATH
	FFmpeg  string
	FFprobe string
	// Requested capture size (cameras only)
	Width  int
	Height int
}

func (o *FFmpegOptions) defaults() {
	if o.FFmpeg == "" {
		o.FFmpeg = "ffmpeg"
	}
	if o.FFprobe == "" {
		o.FFprobe = "ffprobe"
	}
}

// FFmpegSource decodes a video file or capture device with an ffmpeg
// subprocess writing raw BGRA frames to stdout
type FFmpegSource struct {
	opts   FFmpegOptions
	input  string
	kind   Kind
	width  int
	height int
	fps    float64

	mu     sync.Mutex
	cmd    *exec.Cmd
	reader *bufio.Reader
	buf    []byte
	seq    uint64
	proc   atomic.Pointer[os.Process]
	closed atomic.Bool
}

// OpenFile probes and starts decoding a video file
func OpenFile(ctx context.Context, path string, opts FFmpegOptions) (*FFmpegSource, error) {
	return openFFmpeg(ctx, path, KindFile, opts)
}

// OpenCamera probes and starts capturing from /dev/video<index>
func OpenCamera(ctx context.Context, index int, opts FFmpegOptions) (*FFmpegSource, error) {
	return openFFmpeg(ctx, devicePath(index), KindCamera, opts)
}

func openFFmpeg(ctx context.Context, input string, kind Kind, opts FFmpegOptions) (*FFmpegSource, error) {
	opts.defaults()
	s := &FFmpegSource{opts: opts, input: input, kind: kind}

	p, err := s.probe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s %s: %w", kind, input, err)
	}
	s.width, s.height, s.fps = p.width, p.height, p.fps
	if kind == KindCamera && opts.Width > 0 && opts.Height > 0 {
		s.width, s.height = opts.Width, opts.Height
	}
	s.buf = make([]byte, s.width*s.height*4)

	if err := s.start(); err != nil {
		return nil, err
	}

	logger.WithComponent("source").Info().
		Str("input", input).
		Str("kind", string(kind)).
		Int("width", s.width).
		Int("height", s.height).
		Float64("fps", s.fps).
		Msg("Source opened")
	return s, nil
}

type probeResult struct {
	width, height int
	fps           float64
}

type ffprobeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

func (s *FFmpegSource) inputArgs() []string {
	var args []string
	if s.kind == KindCamera {
		args = append(args, "-f", "v4l2")
		if s.opts.Width > 0 && s.opts.Height > 0 {
			args = append(args, "-video_size", fmt.Sprintf("%dx%d", s.opts.Width, s.opts.Height))
		}
	}
	return append(args, "-i", s.input)
}

func (s *FFmpegSource) probe(ctx context.Context) (probeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	args := []string{"-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=width,height,avg_frame_rate,r_frame_rate", "-of", "json"}
	if s.kind == KindCamera {
		args = append(args, "-f", "v4l2")
	}
	args = append(args, s.input)

	out, err := exec.CommandContext(ctx, s.opts.FFprobe, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return probeResult{}, fmt.Errorf("ffprobe: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return probeResult{}, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(out)
}

func parseProbe(data []byte) (probeResult, error) {
	var out ffprobeOutput
	if err := jsoniter.Unmarshal(data, &out); err != nil {
		return probeResult{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return probeResult{}, fmt.Errorf("no video stream")
	}
	st := out.Streams[0]
	if st.Width <= 0 || st.Height <= 0 {
		return probeResult{}, fmt.Errorf("invalid frame size %dx%d", st.Width, st.Height)
	}
	fps := parseRate(st.AvgFrameRate)
	if fps <= 0 {
		fps = parseRate(st.RFrameRate)
	}
	return probeResult{width: st.Width, height: st.Height, fps: fps}, nil
}

// parseRate parses ffprobe rates such as "30000/1001"; 0 when unknown
func parseRate(r string) float64 {
	num, den, found := strings.Cut(r, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// start launches the decoder
func (s *FFmpegSource) start() error {
	log := logger.WithComponent("source")

	args := append([]string{"-hide_banner", "-loglevel", "error", "-nostdin"}, s.inputArgs()...)
	args = append(args, "-f", "rawvideo", "-pix_fmt", "bgra",
		"-s", fmt.Sprintf("%dx%d", s.width, s.height), "-")

	cmd := exec.Command(s.opts.FFmpeg, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s.cmd = cmd
	s.proc.Store(cmd.Process)
	s.reader = bufio.NewReaderSize(stdout, len(s.buf)*2)
	go logStderr(stderr)

	log.Debug().Str("input", s.input).Int("pid", cmd.Process.Pid).Msg("ffmpeg started")
	return nil
}

// logStderr forwards ffmpeg's error output
func logStderr(r io.Reader) {
	log := logger.WithComponent("source")
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Warn().Str("ffmpeg", scanner.Text()).Msg("ffmpeg message")
	}
}

func (s *FFmpegSource) stop() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	s.cmd.Process.Kill()
	s.cmd.Wait()
	s.cmd = nil
	s.proc.Store(nil)
}

// Next reads exactly one frame
func (s *FFmpegSource) Next(ctx context.Context) (*frame.Frame, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reader == nil {
		return nil, ErrEndOfStream
	}
	if _, err := io.ReadFull(s.reader, s.buf); err != nil {
		if s.closed.Load() {
			return nil, ErrClosed
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// the decoder has exited; reap it now rather than at rewind
			s.stop()
			s.reader = nil
			return nil, ErrEndOfStream
		}
		return nil, fmt.Errorf("frame read failed: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	copy(img.Pix, s.buf)
	s.seq++
	f := frame.New(img, frame.BGRA)
	f.Seq = s.seq
	return f, nil
}

// SeekToStart restarts the decoder from the beginning of the input
func (s *FFmpegSource) SeekToStart() error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stop()
	s.reader = nil
	s.seq = 0
	return s.start()
}

// FPS returns the probed rate
func (s *FFmpegSource) FPS() float64 { return s.fps }

// Size returns the decoded frame size
func (s *FFmpegSource) Size() (int, int) { return s.width, s.height }

// Kind reports camera or file
func (s *FFmpegSource) Kind() Kind { return s.kind }

// Close kills the decoder. A Next blocked on a read returns ErrClosed.
func (s *FFmpegSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	// kill before taking the lock so a blocked read unblocks
	if p := s.proc.Load(); p != nil {
		p.Kill()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
	s.reader = nil
	return nil
}
