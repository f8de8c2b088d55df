package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
)

// Widget represents a renderable overlay layer
type Widget interface {
	// ID returns the unique identifier for this widget instance
	ID() string

	// Type returns the widget type name
	Type() string

	// Render draws the widget onto the frame for the given detection result
	Render(dst *frame.Frame, res *pose.FrameResult)

	// IsEnabled returns whether the widget should be rendered
	IsEnabled() bool

	// SetEnabled sets whether the widget should be rendered
	SetEnabled(enabled bool)
}

// BaseWidget provides common functionality for all widgets
type BaseWidget struct {
	id      string
	enabled bool
	opacity float64 // 0.0 to 1.0
}

// NewBaseWidget creates a new base widget
func NewBaseWidget(id string, opacity float64) *BaseWidget {
	w := &BaseWidget{id: id, enabled: true}
	w.SetOpacity(opacity)
	return w
}

// ID returns the widget's unique identifier
func (w *BaseWidget) ID() string {
	return w.id
}

// IsEnabled returns whether the widget should be rendered
func (w *BaseWidget) IsEnabled() bool {
	return w.enabled
}

// SetEnabled sets whether the widget should be rendered
func (w *BaseWidget) SetEnabled(enabled bool) {
	w.enabled = enabled
}

// GetOpacity returns the widget's opacity
func (w *BaseWidget) GetOpacity() float64 {
	return w.opacity
}

// SetOpacity sets the widget's opacity (0.0 to 1.0)
func (w *BaseWidget) SetOpacity(opacity float64) {
	if opacity < 0.0 {
		opacity = 0.0
	}
	if opacity > 1.0 {
		opacity = 1.0
	}
	w.opacity = opacity
}

// toPixel maps a normalized coordinate onto the frame, staying inside it
func toPixel(dst *frame.Frame, lm pose.Landmark) image.Point {
	w, h := dst.Width(), dst.Height()
	x, y := int(lm.X*float64(w)), int(lm.Y*float64(h))
	if x >= w {
		x = w - 1
	}
	if y >= h {
		y = h - 1
	}
	return image.Pt(x, y)
}

// BlendImage blends a source image onto a destination image at the given position
// with the specified opacity
func BlendImage(dst *image.RGBA, src image.Image, x, y int, opacity float64) {
	srcBounds := src.Bounds()
	dstBounds := dst.Bounds()

	// Calculate intersection to handle clipping
	for sy := srcBounds.Min.Y; sy < srcBounds.Max.Y; sy++ {
		dy := y + (sy - srcBounds.Min.Y)
		if dy < dstBounds.Min.Y || dy >= dstBounds.Max.Y {
			continue
		}

		for sx := srcBounds.Min.X; sx < srcBounds.Max.X; sx++ {
			dx := x + (sx - srcBounds.Min.X)
			if dx < dstBounds.Min.X || dx >= dstBounds.Max.X {
				continue
			}

			sr, sg, sb, sa := src.At(sx, sy).RGBA()
			alpha := float64(sa) * opacity / 65535.0
			if alpha <= 0 {
				continue
			}

			dr, dg, db, da := dst.At(dx, dy).RGBA()
			outAlpha := alpha + float64(da)/65535.0*(1-alpha)
			if outAlpha > 0 {
				outR := uint8((float64(sr)*alpha + float64(dr)*float64(da)/65535.0*(1-alpha)) / outAlpha / 256)
				outG := uint8((float64(sg)*alpha + float64(dg)*float64(da)/65535.0*(1-alpha)) / outAlpha / 256)
				outB := uint8((float64(sb)*alpha + float64(db)*float64(da)/65535.0*(1-alpha)) / outAlpha / 256)
				dst.SetRGBA(dx, dy, color.RGBA{R: outR, G: outG, B: outB, A: uint8(outAlpha * 255)})
			}
		}
	}
}

// DrawRectangle draws a filled rectangle with the specified color and opacity
func DrawRectangle(dst *image.RGBA, x, y, width, height int, c color.RGBA, opacity float64) {
	if width <= 0 || height <= 0 {
		return
	}
	rect := image.Rect(x, y, x+width, y+height)
	tmp := image.NewRGBA(rect)
	draw.Draw(tmp, rect, image.NewUniform(c), image.Point{}, draw.Src)
	BlendImage(dst, tmp, x, y, opacity)
}

// DrawOutline draws an unfilled rectangle of the given stroke width
func DrawOutline(dst *image.RGBA, r image.Rectangle, c color.RGBA, stroke int) {
	r = r.Canon()
	for i := 0; i < stroke; i++ {
		DrawLine(dst, image.Pt(r.Min.X, r.Min.Y+i), image.Pt(r.Max.X, r.Min.Y+i), c)
		DrawLine(dst, image.Pt(r.Min.X, r.Max.Y-i), image.Pt(r.Max.X, r.Max.Y-i), c)
		DrawLine(dst, image.Pt(r.Min.X+i, r.Min.Y), image.Pt(r.Min.X+i, r.Max.Y), c)
		DrawLine(dst, image.Pt(r.Max.X-i, r.Min.Y), image.Pt(r.Max.X-i, r.Max.Y), c)
	}
}

// DrawLine draws a 1px line with Bresenham's algorithm. Pixels outside
// dst are skipped.
func DrawLine(dst *image.RGBA, a, b image.Point, c color.RGBA) {
	dx, dy := abs(b.X-a.X), -abs(b.Y-a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	e := dx + dy
	x, y := a.X, a.Y
	for {
		dst.SetRGBA(x, y, c)
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

// DrawThickLine draws a line of the given width by offsetting 1px lines
func DrawThickLine(dst *image.RGBA, a, b image.Point, c color.RGBA, width int) {
	if width <= 1 {
		DrawLine(dst, a, b, c)
		return
	}
	half := width / 2
	horizontal := abs(b.X-a.X) >= abs(b.Y-a.Y)
	for off := -half; off < width-half; off++ {
		if horizontal {
			DrawLine(dst, image.Pt(a.X, a.Y+off), image.Pt(b.X, b.Y+off), c)
		} else {
			DrawLine(dst, image.Pt(a.X+off, a.Y), image.Pt(b.X+off, b.Y), c)
		}
	}
}

// DrawDot draws a filled circle
func DrawDot(dst *image.RGBA, center image.Point, radius int, c color.RGBA) {
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y <= radius*radius {
				dst.SetRGBA(center.X+x, center.Y+y, c)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
