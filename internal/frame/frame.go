package frame

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"time"
)

// PixelFormat is the byte order of a 4-channel pixel buffer
type PixelFormat string

const (
	RGBA PixelFormat = "RGBA"
	BGRA PixelFormat = "BGRA"
)

// ParsePixelFormat parses "rgba"/"bgra" (case-insensitive)
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToUpper(s) {
	case "RGBA", "RGBX":
		return RGBA, nil
	case "BGRA", "BGRX":
		return BGRA, nil
	}
	return "", fmt.Errorf("unsupported pixel format %q", s)
}

// Frame is one raw video frame. Image.Pix is laid out in Format order; an
// image.RGBA with Format BGRA therefore holds blue in the R slot.
type Frame struct {
	Image     *image.RGBA
	Format    PixelFormat
	Seq       uint64
	Timestamp time.Time
}

// New wraps a pixel buffer
func New(img *image.RGBA, format PixelFormat) *Frame {
	return &Frame{Image: img, Format: format, Timestamp: time.Now()}
}

// FromImage converts any decoded image into an RGBA frame
func FromImage(img image.Image) *Frame {
	if rgba, ok := img.(*image.RGBA); ok {
		return New(rgba, RGBA)
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return New(rgba, RGBA)
}

// Width in pixels
func (f *Frame) Width() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

// Height in pixels
func (f *Frame) Height() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// RGBA returns the frame in RGBA byte order. The frame's own buffer is
// returned when it is already RGBA, otherwise a swizzled copy.
func (f *Frame) RGBA() *image.RGBA {
	if f.Format == RGBA {
		return f.Image
	}
	out := image.NewRGBA(f.Image.Bounds())
	copy(out.Pix, f.Image.Pix)
	SwapRB(out.Pix)
	return out
}

// To returns the pixel buffer in the requested byte order, copying only
// when a conversion is needed
func (f *Frame) To(format PixelFormat) []byte {
	if f.Format == format {
		return f.Image.Pix
	}
	buf := make([]byte, len(f.Image.Pix))
	copy(buf, f.Image.Pix)
	SwapRB(buf)
	return buf
}

// Color adapts an RGBA drawing color to the frame's byte order
func (f *Frame) Color(c color.RGBA) color.RGBA {
	if f.Format == BGRA {
		c.R, c.B = c.B, c.R
	}
	return c
}

// Clone deep-copies the frame
func (f *Frame) Clone() *Frame {
	img := image.NewRGBA(f.Image.Bounds())
	copy(img.Pix, f.Image.Pix)
	return &Frame{Image: img, Format: f.Format, Seq: f.Seq, Timestamp: f.Timestamp}
}

// SwapRB exchanges the first and third byte of every 4-byte pixel,
// converting between RGBA and BGRA in place
func SwapRB(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}
