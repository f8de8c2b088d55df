package pose

import "math"

// ZMeaning describes what a backend stores in Landmark.Z
type ZMeaning string

const (
	ZDepth      ZMeaning = "depth"      // relative depth estimate
	ZConfidence ZMeaning = "confidence" // per-point detection score
)

// Landmark is one skeletal point. X and Y are normalized to the frame
// width and height; pixel conversion happens only when rendering.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// BBox is a normalized bounding box
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Person is one detected individual, landmarks aligned 1:1 with the
// detector's schema by index. Created once per frame and never mutated.
type Person struct {
	Landmarks  []Landmark `json:"landmarks"`
	Confidence *float64   `json:"confidence,omitempty"`
	BBox       *BBox      `json:"bbox,omitempty"`
}

// FrameResult is the detection output for one processed frame.
// Persons carry no identity across frames.
type FrameResult struct {
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Persons []Person `json:"persons"`
	// Clamped counts coordinates the adapter pulled back into [0,1]
	Clamped int `json:"clamped,omitempty"`
}

// Empty returns a result with no persons for a frame of the given size
func Empty(width, height int) *FrameResult {
	return &FrameResult{Width: width, Height: height, Persons: []Person{}}
}

// NumLandmarks returns the landmark count of the first person, or 0
func (r *FrameResult) NumLandmarks() int {
	if r == nil || len(r.Persons) == 0 {
		return 0
	}
	return len(r.Persons[0].Landmarks)
}

// HasPersons reports whether anything was detected
func (r *FrameResult) HasPersons() bool {
	return r != nil && len(r.Persons) > 0
}

// Clamp01 pulls v into [0,1]. NaN maps to 0. The second return value is
// true when v had to be changed.
func Clamp01(v float64) (float64, bool) {
	switch {
	case math.IsNaN(v):
		return 0, true
	case v < 0:
		return 0, true
	case v > 1:
		return 1, true
	}
	return v, false
}

// Builder assembles a FrameResult, enforcing the normalized-coordinate
// contract as landmarks are added.
type Builder struct {
	res *FrameResult
}

// NewBuilder starts a result for a frame of the given pixel size
func NewBuilder(width, height int) *Builder {
	return &Builder{res: Empty(width, height)}
}

// Point clamps x and y and returns the landmark
func (b *Builder) Point(x, y, z float64) Landmark {
	cx, cxChanged := Clamp01(x)
	cy, cyChanged := Clamp01(y)
	if cxChanged {
		b.res.Clamped++
	}
	if cyChanged {
		b.res.Clamped++
	}
	if math.IsNaN(z) {
		z = 0
	}
	return Landmark{X: cx, Y: cy, Z: z}
}

// PixelPoint normalizes a pixel-space point against the frame size
func (b *Builder) PixelPoint(px, py, z float64) Landmark {
	w, h := float64(b.res.Width), float64(b.res.Height)
	if w <= 0 || h <= 0 {
		return b.Point(math.NaN(), math.NaN(), z)
	}
	return b.Point(px/w, py/h, z)
}

// Add appends a person
func (b *Builder) Add(p Person) {
	b.res.Persons = append(b.res.Persons, p)
}

// Result returns the assembled result
func (b *Builder) Result() *FrameResult {
	return b.res
}

// BBoxFromLandmarks derives a box from the landmarks whose Z is above
// minZ. Returns nil when none qualify.
func BBoxFromLandmarks(lms []Landmark, minZ float64) *BBox {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, lm := range lms {
		if lm.Z <= minZ {
			continue
		}
		minX = math.Min(minX, lm.X)
		minY = math.Min(minY, lm.Y)
		maxX = math.Max(maxX, lm.X)
		maxY = math.Max(maxY, lm.Y)
	}
	if math.IsInf(minX, 1) {
		return nil
	}
	return &BBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Float returns a pointer to v, for optional fields
func Float(v float64) *float64 {
	return &v
}
