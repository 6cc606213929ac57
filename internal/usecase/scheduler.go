package usecase

import (
	"context"
	"log/slog"
	"time"

	"DSEReports/internal/logging"
	"DSEReports/internal/ports"
)

// Scheduler wires the daily driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewScheduler returns a helper that runs the pipeline on every fire.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger}
}

// Run blocks until ctx is cancelled. Pipeline errors are logged and the loop
// waits for the next fire.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(ctx context.Context, firedAt time.Time) {
		if err := s.pipeline.Run(ctx, firedAt); err != nil {
			s.logger.Error("scheduled run failed", "fired_at", firedAt.Format(time.RFC3339), "error", err)
		}
	}

	return s.driver.Run(ctx, job)
}
