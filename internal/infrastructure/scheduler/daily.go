package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"DSEReports/internal/logging"
	"DSEReports/internal/ports"
)

// Clock abstracts wall time so the loop can be driven by tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the real wall clock.
var SystemClock Clock = systemClock{}

// Options configures a Daily scheduler.
type Options struct {
	CronExpression string
	Location       *time.Location
	PollInterval   time.Duration
	RunOnStart     bool
	Clock          Clock
}

// Daily fires a job at the times of a cron schedule, polling the clock at a
// coarse interval. Jobs run synchronously on the polling goroutine, so two
// runs never overlap; a run that overruns the next fire time delays that fire
// until the following poll.
type Daily struct {
	schedule   cron.Schedule
	loc        *time.Location
	poll       time.Duration
	runOnStart bool
	clock      Clock
	logger     *slog.Logger
}

var _ ports.Scheduler = (*Daily)(nil)

// NewDaily parses the cron expression (standard five fields).
func NewDaily(opts Options, logger *slog.Logger) (*Daily, error) {
	schedule, err := cron.ParseStandard(opts.CronExpression)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", opts.CronExpression, err)
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Daily{
		schedule:   schedule,
		loc:        opts.Location,
		poll:       opts.PollInterval,
		runOnStart: opts.RunOnStart,
		clock:      opts.Clock,
		logger:     logger,
	}, nil
}

// NextFire returns the first scheduled time strictly after t.
func (d *Daily) NextFire(t time.Time) time.Time {
	return d.schedule.Next(t.In(d.loc))
}

// Run blocks, firing job at every scheduled time, until ctx is cancelled.
func (d *Daily) Run(ctx context.Context, job func(ctx context.Context, firedAt time.Time)) error {
	if job == nil {
		return nil
	}

	if d.runOnStart {
		d.fire(ctx, job, d.clock.Now().In(d.loc))
	}

	next := d.NextFire(d.clock.Now())
	d.logger.Info("scheduler waiting", "next_fire", next.Format(time.RFC3339))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-d.clock.After(d.poll):
		}

		now := d.clock.Now()
		if now.Before(next) {
			continue
		}

		d.fire(ctx, job, next)
		next = d.following(next, d.clock.Now())
		d.logger.Info("scheduler waiting", "next_fire", next.Format(time.RFC3339))
	}
}

// following returns the slot after fired. When several slots were missed while
// the job ran, only the latest of them is kept.
func (d *Daily) following(fired, now time.Time) time.Time {
	next := d.NextFire(fired)
	for {
		after := d.NextFire(next)
		if after.After(now) {
			return next
		}
		next = after
	}
}

func (d *Daily) fire(ctx context.Context, job func(context.Context, time.Time), firedAt time.Time) {
	start := d.clock.Now()
	d.logger.Info("job fired", "scheduled_for", firedAt.Format(time.RFC3339))
	job(ctx, firedAt)
	d.logger.Info("job finished", "duration", d.clock.Now().Sub(start).String())
}
