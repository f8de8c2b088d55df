package preview

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
	"github.com/bryanchriswhite/PoseStreamer/internal/sink"
)

func TestFit(t *testing.T) {
	tests := []struct {
		name string
		src  image.Rectangle
		want image.Rectangle
	}{
		{"same aspect", image.Rect(0, 0, 320, 240), image.Rect(0, 0, 640, 480)},
		{"wide", image.Rect(0, 0, 1280, 480), image.Rect(0, 120, 640, 360)},
		{"tall", image.Rect(0, 0, 240, 480), image.Rect(200, 0, 440, 480)},
		{"empty", image.Rect(0, 0, 0, 0), image.Rectangle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fit(tt.src, 640, 480))
		})
	}
}

func TestScaleInto(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	copy(src.Pix, []byte{1, 2, 3, 255, 5, 6, 7, 255})
	dst := image.NewRGBA(image.Rect(0, 0, 4, 2))
	scaleInto(dst, dst.Bounds(), src)

	assert.Equal(t, []byte{1, 2, 3, 255}, dst.Pix[0:4])
	assert.Equal(t, []byte{1, 2, 3, 255}, dst.Pix[4:8])
	assert.Equal(t, []byte{5, 6, 7, 255}, dst.Pix[8:12])
	assert.Equal(t, dst.Pix[0:16], dst.Pix[16:32])
}

func TestZPixmap(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 2))
	copy(img.Pix, []byte{10, 20, 30, 255, 40, 50, 60, 255})

	data, err := zpixmap(img, pixmapFormat{bitsPerPixel: 32, scanlinePad: 32}, 24)
	require.NoError(t, err)
	assert.Equal(t, []byte{30, 20, 10, 0, 60, 50, 40, 0}, data)

	data, err = zpixmap(img, pixmapFormat{bitsPerPixel: 24, scanlinePad: 32}, 24)
	require.NoError(t, err)
	// 3 bytes per row padded to 4
	assert.Equal(t, []byte{30, 20, 10, 0, 60, 50, 40, 0}, data)

	_, err = zpixmap(img, pixmapFormat{bitsPerPixel: 16, scanlinePad: 32}, 16)
	assert.Error(t, err)
}

func TestFindFormat(t *testing.T) {
	formats := []xproto.Format{{Depth: 1, BitsPerPixel: 1, ScanlinePad: 32}, {Depth: 24, BitsPerPixel: 32, ScanlinePad: 32}}
	f, err := findFormat(formats, 24)
	require.NoError(t, err)
	assert.Equal(t, uint8(32), f.bitsPerPixel)

	_, err = findFormat(formats, 30)
	assert.Error(t, err)
}

func TestConsumeWhenClosed(t *testing.T) {
	p := New(Config{})
	assert.Equal(t, Name, p.Name())
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	err := p.Consume(context.Background(), frame.New(img, frame.RGBA), pose.Empty(2, 2))
	assert.True(t, errors.Is(err, sink.ErrNotOpen))
	assert.NoError(t, p.Close())
}
