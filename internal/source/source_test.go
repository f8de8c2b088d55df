package source

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
)

func TestParseProbe(t *testing.T) {
	p, err := parseProbe([]byte(`{"programs":[],"streams":[{"width":1280,"height":720,"avg_frame_rate":"30000/1001","r_frame_rate":"30000/1001"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1280, p.width)
	assert.Equal(t, 720, p.height)
	assert.InDelta(t, 29.97, p.fps, 0.01)

	p, err = parseProbe([]byte(`{"streams":[{"width":640,"height":480,"avg_frame_rate":"0/0","r_frame_rate":"25/1"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 25.0, p.fps)

	_, err = parseProbe([]byte(`{"streams":[]}`))
	assert.Error(t, err)
	_, err = parseProbe([]byte(`{"streams":[{"width":0,"height":0}]}`))
	assert.Error(t, err)
	_, err = parseProbe([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseRate(t *testing.T) {
	assert.Equal(t, 30.0, parseRate("30/1"))
	assert.Equal(t, 24.0, parseRate("24"))
	assert.Equal(t, 0.0, parseRate("0/0"))
	assert.Equal(t, 0.0, parseRate(""))
}

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	src := NewMemory(0, Pattern(8, 4, 2)...)
	assert.Equal(t, DefaultFPS, src.FPS())
	w, h := src.Size()
	assert.Equal(t, 8, w)
	assert.Equal(t, 4, h)

	f, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Seq)
	_, err = src.Next(ctx)
	require.NoError(t, err)
	_, err = src.Next(ctx)
	assert.True(t, errors.Is(err, ErrEndOfStream))

	require.NoError(t, src.SeekToStart())
	assert.Equal(t, 1, src.Seeks())
	_, err = src.Next(ctx)
	assert.NoError(t, err)

	require.NoError(t, src.Close())
	_, err = src.Next(ctx)
	assert.True(t, errors.Is(err, ErrClosed))
	assert.True(t, errors.Is(src.SeekToStart(), ErrClosed))
}

func TestMemorySourceFramesAreCopies(t *testing.T) {
	frames := Pattern(2, 2, 1)
	src := NewMemory(10, frames...)
	f, err := src.Next(context.Background())
	require.NoError(t, err)
	f.Image.Pix[0] = 0xAB
	assert.NotEqual(t, uint8(0xAB), frames[0].Image.Pix[0])
}

func TestMemorySourceFailAt(t *testing.T) {
	src := NewMemory(10, Pattern(2, 2, 3)...)
	boom := errors.New("read failed")
	src.FailAt(1, boom)

	_, err := src.Next(context.Background())
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	assert.Equal(t, boom, err)
	_, err = src.Next(context.Background())
	assert.NoError(t, err)
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.SetRGBA(0, 0, color.RGBA{R: 200, A: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestImageSequence(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "0002.png"), 6, 3)
	writePNG(t, filepath.Join(dir, "0001.png"), 6, 3)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	src, err := Open(context.Background(), Selection{Camera: -1, Path: dir, FPS: 12})
	require.NoError(t, err)
	assert.Equal(t, KindImages, src.Kind())
	assert.Equal(t, 12.0, src.FPS())
	w, h := src.Size()
	assert.Equal(t, 6, w)
	assert.Equal(t, 3, h)

	f, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, frame.RGBA, f.Format)
	assert.Equal(t, color.RGBA{R: 200, A: 255}, f.Image.RGBAAt(0, 0))

	_, err = src.Next(context.Background())
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	assert.True(t, errors.Is(err, ErrEndOfStream))

	require.NoError(t, src.SeekToStart())
	_, err = src.Next(context.Background())
	assert.NoError(t, err)
}

func TestImageSequenceEmptyDir(t *testing.T) {
	_, err := OpenImages(t.TempDir(), 0)
	assert.Error(t, err)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(context.Background(), Selection{Camera: -1})
	assert.Error(t, err)
	_, err = Open(context.Background(), Selection{Camera: -1, Path: "/does/not/exist.mp4"})
	assert.Error(t, err)
}

func TestOpenPattern(t *testing.T) {
	src, err := Open(context.Background(), Selection{Camera: -1, Path: PatternPath, Width: 32, Height: 24})
	require.NoError(t, err)
	assert.Equal(t, KindMemory, src.Kind())
	w, h := src.Size()
	assert.Equal(t, 32, w)
	assert.Equal(t, 24, h)
}

func TestListCameras(t *testing.T) {
	dev, sys := t.TempDir(), t.TempDir()
	oldDev, oldSys := devRoot, sysfsRoot
	devRoot, sysfsRoot = dev, sys
	defer func() { devRoot, sysfsRoot = oldDev, oldSys }()

	for _, n := range []string{"video10", "video2", "videoX"} {
		require.NoError(t, os.WriteFile(filepath.Join(dev, n), nil, 0644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(sys, "video2"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sys, "video2", "name"), []byte("HD Webcam\n"), 0644))

	cams, err := ListCameras()
	require.NoError(t, err)
	require.Len(t, cams, 2)
	assert.Equal(t, Camera{Index: 2, Path: filepath.Join(dev, "video2"), Name: "HD Webcam"}, cams[0])
	assert.Equal(t, "video10", cams[1].Name)
}

// fakeFFmpeg writes shell stand-ins for ffprobe and ffmpeg. The decoder
// emits two 2x1 BGRA frames.
func fakeFFmpeg(t *testing.T) FFmpegOptions {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	probe := filepath.Join(dir, "ffprobe")
	decode := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(probe, []byte("#!/bin/sh\necho '{\"streams\":[{\"width\":2,\"height\":1,\"avg_frame_rate\":\"15/1\"}]}'\n"), 0755))
	require.NoError(t, os.WriteFile(decode, []byte("#!/bin/sh\nprintf '\\001\\002\\003\\377\\004\\005\\006\\377\\007\\010\\011\\377\\012\\013\\014\\377'\n"), 0755))
	return FFmpegOptions{FFmpeg: decode, FFprobe: probe}
}

func TestFFmpegSource(t *testing.T) {
	opts := fakeFFmpeg(t)
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	src, err := OpenFile(context.Background(), path, opts)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 15.0, src.FPS())
	assert.Equal(t, KindFile, src.Kind())

	f, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, frame.BGRA, f.Format)
	assert.Equal(t, []byte{1, 2, 3, 255, 4, 5, 6, 255}, f.Image.Pix)

	_, err = src.Next(context.Background())
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	assert.True(t, errors.Is(err, ErrEndOfStream))
	// decoder reaped at end of stream
	assert.Nil(t, src.proc.Load())
	assert.Nil(t, src.cmd)
	_, err = src.Next(context.Background())
	assert.True(t, errors.Is(err, ErrEndOfStream))

	require.NoError(t, src.SeekToStart())
	f, err = src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Seq)

	require.NoError(t, src.Close())
	_, err = src.Next(context.Background())
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestFFmpegProbeFailure(t *testing.T) {
	opts := fakeFFmpeg(t)
	opts.FFprobe = filepath.Join(t.TempDir(), "missing-ffprobe")
	_, err := OpenFile(context.Background(), "clip.mp4", opts)
	assert.Error(t, err)
}
