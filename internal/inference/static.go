package inference

import (
	"context"
	"image"
	"sync"
)

// Static replays fixed outputs, cycling through them one per call. Used by
// tests and by the offline demo mode.
type Static struct {
	mu      sync.Mutex
	outputs []Output
	next    int
	calls   int
	err     error
	closed  bool
}

// NewStatic creates a runtime that returns outputs in order, wrapping around
func NewStatic(outputs ...Output) *Static {
	return &Static{outputs: outputs}
}

// Fail makes every subsequent Infer call return err (nil clears it)
func (s *Static) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Ready always succeeds
func (s *Static) Ready(ctx context.Context) error {
	return nil
}

// Infer returns the next configured output
func (s *Static) Infer(ctx context.Context, img image.Image) (Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.outputs) == 0 {
		return Output{}, nil
	}
	out := s.outputs[s.next%len(s.outputs)]
	s.next++
	return out, nil
}

// Calls reports how many times Infer ran
func (s *Static) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Close marks the runtime closed
func (s *Static) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close was called
func (s *Static) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
