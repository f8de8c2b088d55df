package sink

import (
	"context"

	"github.com/bryanchriswhite/PoseStreamer/internal/frame"
	"github.com/bryanchriswhite/PoseStreamer/internal/pose"
)

// Func adapts a function into a Sink with no transport
type Func struct {
	N string
	F func(ctx context.Context, f *frame.Frame, res *pose.FrameResult) error
}

func (s *Func) Name() string { return s.N }

func (s *Func) Open(context.Context) error { return nil }

func (s *Func) Close() error { return nil }

func (s *Func) Consume(ctx context.Context, f *frame.Frame, res *pose.FrameResult) error {
	return s.F(ctx, f, res)
}
