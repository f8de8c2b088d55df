// Package inference is the model-execution capability behind pose
// detectors. Runtimes take a decoded frame and return named float tensors;
// interpreting them is the detector's job.
package inference

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	// ErrModelNotReady is returned when the model server reports the model
	// as unloaded or unavailable
	ErrModelNotReady = errors.New("model not ready")
)

// Tensor is a dense row-major float tensor
type Tensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// Len returns the element count implied by Shape, 0 for a shape with a
// negative dim or an element count that does not fit an int
func (t *Tensor) Len() int {
	n, ok := t.elems()
	if !ok {
		return 0
	}
	return n
}

func (t *Tensor) elems() (int, bool) {
	if len(t.Shape) == 0 {
		return 0, true
	}
	n := 1
	for _, d := range t.Shape {
		if d < 0 {
			return 0, false
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}

// At returns the element at the given indices, or 0 when the indices do not
// address an element of the tensor
func (t *Tensor) At(idx ...int) float32 {
	if len(idx) != len(t.Shape) {
		return 0
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.Shape[i] {
			return 0
		}
		off = off*t.Shape[i] + v
	}
	if off >= len(t.Data) {
		return 0
	}
	return t.Data[off]
}

// Output holds the tensors of one inference call by name
type Output map[string]*Tensor

// Tensor returns the named tensor after checking its rank and that its data
// covers its shape
func (o Output) Tensor(name string, rank int) (*Tensor, error) {
	t, ok := o[name]
	if !ok || t == nil {
		return nil, fmt.Errorf("output %q missing", name)
	}
	if len(t.Shape) != rank {
		return nil, fmt.Errorf("output %q: want rank %d, got shape %v", name, rank, t.Shape)
	}
	n, ok := t.elems()
	if !ok {
		return nil, fmt.Errorf("output %q: invalid shape %v", name, t.Shape)
	}
	if len(t.Data) < n {
		return nil, fmt.Errorf("output %q: %d values for shape %v", name, len(t.Data), t.Shape)
	}
	return t, nil
}

// Runtime executes one model
type Runtime interface {
	// Ready reports ErrModelNotReady (wrapped) until the model can serve
	Ready(ctx context.Context) error
	Infer(ctx context.Context, img image.Image) (Output, error)
	Close() error
}
