package frame

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestParsePixelFormat(t *testing.T) {
	for in, want := range map[string]PixelFormat{"rgba": RGBA, "RGBX": RGBA, "Rgba": RGBA, "bgra": BGRA, "BGRX": BGRA, "bGrX": BGRA} {
		got, err := ParsePixelFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePixelFormat("yuv")
	assert.Error(t, err)
}

func TestRGBAConvertsBGRA(t *testing.T) {
	// a red pixel stored in BGRA order
	f := New(solid(2, 2, color.RGBA{R: 0, G: 10, B: 255, A: 255}), BGRA)
	rgba := f.RGBA()
	assert.Equal(t, color.RGBA{R: 255, G: 10, B: 0, A: 255}, rgba.RGBAAt(1, 1))
	// source untouched
	assert.Equal(t, uint8(0), f.Image.Pix[0])
}

func TestRGBANoCopyForRGBA(t *testing.T) {
	f := New(solid(1, 1, color.RGBA{R: 1, A: 255}), RGBA)
	assert.Same(t, f.Image, f.RGBA())
}

func TestTo(t *testing.T) {
	f := New(solid(1, 1, color.RGBA{R: 1, G: 2, B: 3, A: 4}), RGBA)
	assert.Equal(t, []byte{1, 2, 3, 4}, f.To(RGBA))
	assert.Equal(t, []byte{3, 2, 1, 4}, f.To(BGRA))
	assert.Equal(t, []byte{1, 2, 3, 4}, f.Image.Pix)
}

func TestColor(t *testing.T) {
	c := color.RGBA{R: 200, G: 100, B: 50, A: 255}
	assert.Equal(t, c, New(solid(1, 1, c), RGBA).Color(c))
	assert.Equal(t, color.RGBA{R: 50, G: 100, B: 200, A: 255}, New(solid(1, 1, c), BGRA).Color(c))
}

func TestFromImageAndSize(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 8, 4))
	f := FromImage(gray)
	assert.Equal(t, 8, f.Width())
	assert.Equal(t, 4, f.Height())
	assert.Equal(t, RGBA, f.Format)

	var nilFrame *Frame
	assert.Equal(t, 0, nilFrame.Width())
}

func TestClone(t *testing.T) {
	f := New(solid(1, 1, color.RGBA{R: 9, A: 255}), BGRA)
	f.Seq = 7
	c := f.Clone()
	c.Image.Pix[0] = 0
	assert.Equal(t, uint8(9), f.Image.Pix[0])
	assert.Equal(t, uint64(7), c.Seq)
	assert.Equal(t, BGRA, c.Format)
}
