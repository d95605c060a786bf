package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one run of an auto-refresh timer.
type Job func(ctx context.Context) error

// AutoRefresher runs a job on a fixed schedule until its context is cancelled.
// A failing or panicking job is logged and the timer keeps going.
type AutoRefresher struct {
	schedule cron.Schedule
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
	logger   *slog.Logger
}

// NewAutoRefresher returns a refresher firing every interval (RefreshInterval when zero).
func NewAutoRefresher(interval time.Duration) *AutoRefresher {
	if interval <= 0 {
		interval = RefreshInterval
	}
	return newAutoRefresher(cron.Every(interval))
}

// ParseAutoRefresher builds a refresher from a cron expression such as "@every 2m" or "*/2 * * * *".
func ParseAutoRefresher(spec string) (*AutoRefresher, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse refresh schedule %q: %w", spec, err)
	}
	return newAutoRefresher(schedule), nil
}

func newAutoRefresher(schedule cron.Schedule) *AutoRefresher {
	return &AutoRefresher{
		schedule: schedule,
		now:      time.Now,
		after:    time.After,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger of failed runs. nil keeps the default.
func (a *AutoRefresher) WithLogger(l *slog.Logger) *AutoRefresher {
	if l != nil {
		a.logger = l
	}
	return a
}

// Run blocks until ctx is done, running job at every tick. With immediate set,
// job also runs once before the first tick.
func (a *AutoRefresher) Run(ctx context.Context, immediate bool, name string, job Job) {
	if immediate {
		a.runOnce(ctx, name, job)
	}
	for {
		now := a.now()
		wait := a.schedule.Next(now).Sub(now)
		select {
		case <-ctx.Done():
			return
		case <-a.after(wait):
			if ctx.Err() != nil {
				return
			}
			a.runOnce(ctx, name, job)
		}
	}
}

// Start runs the refresher in the background. The returned stop func cancels
// it and waits for the current run to finish.
func (a *AutoRefresher) Start(ctx context.Context, immediate bool, name string, job Job) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Run(ctx, immediate, name, job)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (a *AutoRefresher) runOnce(ctx context.Context, name string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("auto refresh panicked", "job", name, "panic", r)
		}
	}()
	if err := job(ctx); err != nil {
		a.logger.Error("auto refresh failed", "job", name, "error", err)
	}
}

// ListingJob refreshes a listing without feedback.
func ListingJob(l interface{ Refresh(withFeedback bool) }) Job {
	return func(context.Context) error {
		l.Refresh(false)
		return nil
	}
}

// DetailJob updates the detail of one coin.
func DetailJob(c interface{ UpdateDetail(symbol string) }, symbol string) Job {
	return func(context.Context) error {
		c.UpdateDetail(symbol)
		return nil
	}
}
