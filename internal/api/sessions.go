package api

import (
	"context"
	"fmt"

	"github.com/bryanchriswhite/PoseStreamer/internal/detector"
	"github.com/bryanchriswhite/PoseStreamer/internal/logger"
	"github.com/bryanchriswhite/PoseStreamer/internal/pipeline"
	"github.com/bryanchriswhite/PoseStreamer/internal/source"
)

// Sessions opens a source per pipeline session and closes it when the
// session ends
type Sessions struct {
	ctx    context.Context
	driver *pipeline.Driver
	det    detector.Detector
	open   func(ctx context.Context, sel source.Selection) (source.Source, error)
}

// NewSessions binds sessions to ctx
func NewSessions(ctx context.Context, driver *pipeline.Driver, det detector.Detector, open func(context.Context, source.Selection) (source.Source, error)) *Sessions {
	return &Sessions{ctx: ctx, driver: driver, det: det, open: open}
}

// Start opens sel and runs the driver on it. A bad path or missing camera
// fails here, before the driver leaves Idle.
func (s *Sessions) Start(sel source.Selection) error {
	if s.driver.Status().State != pipeline.StateIdle {
		return pipeline.ErrRunning
	}

	src, err := s.open(s.ctx, sel)
	if err != nil {
		return fmt.Errorf("open %s: %w", sel, err)
	}
	if err := s.driver.Start(s.ctx, src, s.det); err != nil {
		src.Close()
		return err
	}

	done := s.driver.Done()
	go func() {
		<-done
		if err := src.Close(); err != nil {
			logger.WithComponent("api").Warn().Err(err).Msg("Source close failed")
		}
	}()

	logger.WithComponent("api").Info().Str("source", sel.String()).Msg("Session started")
	return nil
}
