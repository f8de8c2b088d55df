package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/landmark"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
)

// SkeletonWidget draws landmark points and the schema's connections
type SkeletonWidget struct {
	*BaseWidget
	schema     *landmark.Schema
	lineColor  color.RGBA
	pointColor color.RGBA
	radius     int
	lineWidth  int
	// minScore hides points whose Z is at or below it; only meaningful when
	// Z carries a confidence
	minScore  float64
	useScores bool
}

// NewSkeletonWidget creates a skeleton layer for a schema
func NewSkeletonWidget(id string, schema *landmark.Schema, z pose.ZMeaning, minScore float64) *SkeletonWidget {
	return &SkeletonWidget{
		BaseWidget: NewBaseWidget(id, 1.0),
		schema:     schema,
		lineColor:  color.RGBA{255, 255, 255, 255},
		pointColor: color.RGBA{0, 0, 255, 255},
		radius:     5,
		lineWidth:  2,
		minScore:   minScore,
		useScores:  z == pose.ZConfidence,
	}
}

// Type returns the widget type
func (w *SkeletonWidget) Type() string {
	return "skeleton"
}

// SetColors overrides the line and point colors
func (w *SkeletonWidget) SetColors(line, point color.RGBA) {
	w.lineColor = line
	w.pointColor = point
}

func (w *SkeletonWidget) visible(lm pose.Landmark) bool {
	return !w.useScores || lm.Z > w.minScore
}

// Render draws every person's skeleton
func (w *SkeletonWidget) Render(dst *frame.Frame, res *pose.FrameResult) {
	if !res.HasPersons() || w.schema == nil {
		return
	}
	line, point := dst.Color(w.lineColor), dst.Color(w.pointColor)

	for _, p := range res.Persons {
		n := len(p.Landmarks)
		for _, e := range w.schema.Edges() {
			if e[0] >= n || e[1] >= n {
				continue
			}
			a, b := p.Landmarks[e[0]], p.Landmarks[e[1]]
			if !w.visible(a) || !w.visible(b) {
				continue
			}
			DrawThickLine(dst.Image, toPixel(dst, a), toPixel(dst, b), line, w.lineWidth)
		}
		for _, lm := range p.Landmarks {
			if w.visible(lm) {
				DrawDot(dst.Image, toPixel(dst, lm), w.radius, point)
			}
		}
	}
}

// BBoxWidget outlines each person's bounding box
type BBoxWidget struct {
	*BaseWidget
	color  color.RGBA
	stroke int
}

// NewBBoxWidget creates a bounding box layer
func NewBBoxWidget(id string) *BBoxWidget {
	return &BBoxWidget{
		BaseWidget: NewBaseWidget(id, 1.0),
		color:      color.RGBA{0, 255, 0, 255},
		stroke:     2,
	}
}

// Type returns the widget type
func (w *BBoxWidget) Type() string {
	return "bbox"
}

// Render draws the boxes that are present
func (w *BBoxWidget) Render(dst *frame.Frame, res *pose.FrameResult) {
	if !res.HasPersons() {
		return
	}
	c := dst.Color(w.color)
	for _, p := range res.Persons {
		if p.BBox == nil {
			continue
		}
		DrawOutline(dst.Image, boxRect(dst, p.BBox), c, w.stroke)
	}
}

func boxRect(dst *frame.Frame, b *pose.BBox) image.Rectangle {
	min := toPixel(dst, pose.Landmark{X: b.X, Y: b.Y})
	max := toPixel(dst, pose.Landmark{X: b.X + b.Width, Y: b.Y + b.Height})
	return image.Rectangle{Min: min, Max: max}
}

// LabelWidget tags each person with "P<n>" above its box, or next to its
// first landmark when there is no box
type LabelWidget struct {
	*BaseWidget
	text *TextWidget
}

// NewLabelWidget creates a person label layer
func NewLabelWidget(id string) *LabelWidget {
	t := NewTextWidget(id + "-text")
	t.SetBackground(&color.RGBA{0, 0, 0, 255})
	t.SetOpacity(0.8)
	return &LabelWidget{BaseWidget: NewBaseWidget(id, 1.0), text: t}
}

// Type returns the widget type
func (w *LabelWidget) Type() string {
	return "label"
}

// Render draws the labels
func (w *LabelWidget) Render(dst *frame.Frame, res *pose.FrameResult) {
	if !res.HasPersons() {
		return
	}
	for i, p := range res.Persons {
		var at image.Point
		switch {
		case p.BBox != nil:
			at = boxRect(dst, p.BBox).Min
			at.Y -= w.text.Height()
		case len(p.Landmarks) > 0:
			at = toPixel(dst, p.Landmarks[0]).Add(image.Pt(8, -8))
		default:
			continue
		}
		if at.Y < 0 {
			at.Y = 0
		}
		w.text.SetText(fmt.Sprintf("P%d", i))
		w.text.SetPosition(at.X, at.Y)
		w.text.Render(dst, res)
	}
}
