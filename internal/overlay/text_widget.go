package overlay

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
)

// TextWidget displays a line of text at a fixed position
type TextWidget struct {
	*BaseWidget
	x, y      int
	text      string
	fontSize  int
	textColor color.RGBA
	bgColor   *color.RGBA // Optional background color
	padding   int
}

// NewTextWidget creates a new text widget
func NewTextWidget(id string) *TextWidget {
	return &TextWidget{
		BaseWidget: NewBaseWidget(id, 1.0),
		fontSize:   13, // basicfont size
		textColor:  color.RGBA{255, 255, 255, 255},
		padding:    3,
	}
}

// Type returns the widget type
func (w *TextWidget) Type() string {
	return "text"
}

// Height returns the rendered height including padding
func (w *TextWidget) Height() int {
	return w.fontSize + w.padding*2
}

// Render draws the text widget
func (w *TextWidget) Render(dst *frame.Frame, _ *pose.FrameResult) {
	if !w.IsEnabled() || w.text == "" {
		return
	}

	face := basicfont.Face7x13

	d := &font.Drawer{Face: face}
	textWidthPx := d.MeasureString(w.text).Ceil()

	widgetWidth := textWidthPx + w.padding*2
	if w.bgColor != nil {
		DrawRectangle(dst.Image, w.x, w.y, widgetWidth, w.Height(), dst.Color(*w.bgColor), w.opacity)
	}

	// Render into a transparent scratch image so the glyphs blend with opacity
	textImg := image.NewRGBA(image.Rect(0, 0, textWidthPx, w.fontSize))
	textDrawer := &font.Drawer{
		Dst:  textImg,
		Src:  image.NewUniform(dst.Color(w.textColor)),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: fixed.I(w.fontSize - face.Descent)},
	}
	textDrawer.DrawString(w.text)

	BlendImage(dst.Image, textImg, w.x+w.padding, w.y+w.padding, w.opacity)
}

// SetPosition moves the widget's top-left corner
func (w *TextWidget) SetPosition(x, y int) {
	w.x, w.y = x, y
}

// SetText sets the text to display
func (w *TextWidget) SetText(text string) {
	w.text = text
}

// GetText returns the current text
func (w *TextWidget) GetText() string {
	return w.text
}

// SetColor sets the text color
func (w *TextWidget) SetColor(c color.RGBA) {
	w.textColor = c
}

// SetBackground sets the optional background color
func (w *TextWidget) SetBackground(c *color.RGBA) {
	w.bgColor = c
}
