package detector

import (
	"context"
	"fmt"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/landmark"
	"github.com/bryanchriswhite/PoseStreamer/internal/oscproto"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
)

type disabled struct {
	err error
}

// Disabled returns a detector that never finds anyone. A non-nil cause is
// reported by Err only; Process never fails, so the cause surfaces once at
// startup instead of every frame.
func Disabled(cause error) Detector {
	return &disabled{err: cause}
}

func (d *disabled) Process(ctx context.Context, f *frame.Frame) (*pose.FrameResult, error) {
	return pose.Empty(f.Width(), f.Height()), nil
}

func (d *disabled) LandmarkName(i int) landmark.Name {
	return landmark.Name(fmt.Sprintf("unknown_%d", i))
}

func (d *disabled) RenderOverlay(*frame.Frame, *pose.FrameResult) {}

// Emit sends nothing
func (d *disabled) Emit(*pose.FrameResult, oscproto.Writer) error { return nil }

func (d *disabled) Name() Kind { return KindDisabled }

func (d *disabled) Schema() *landmark.Schema { return nil }

func (d *disabled) MaxPersons() int { return 0 }

func (d *disabled) ZMeaning() pose.ZMeaning { return "" }

func (d *disabled) Err() error { return d.err }

func (d *disabled) Close() error { return nil }
