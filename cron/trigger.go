// Package cron runs a job on a cron schedule, used by watch mode to pick up new
// videos.
//
//	trigger, err := cron.NewTrigger("*/30 * * * *", batch, logger)
//	if err != nil {
//	    return err
//	}
//	trigger.Start(ctx)
//	<-trigger.Done()
package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCronSpec is returned when the cron specification cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

// Job is run by a Trigger. The context is cancelled when the trigger stops.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Trigger executes a Job according to a cron schedule. Runs never overlap: a
// run that outlasts its interval delays the next one.
type Trigger struct {
	spec     string
	schedule cron.Schedule
	job      Job
	logger   *slog.Logger

	runOnStart bool
	now        func() time.Time
	after      func(time.Duration) <-chan time.Time

	done chan struct{}
}

// Option configures a Trigger.
type Option func(*Trigger)

// WithRunOnStart runs the job once as soon as the trigger starts.
func WithRunOnStart() Option {
	return func(t *Trigger) {
		t.runOnStart = true
	}
}

// NewTrigger creates a Trigger for a five field cron spec (minute, hour, day
// of month, month, day of week). Returns an error matching ErrInvalidCronSpec
// if spec cannot be parsed.
func NewTrigger(spec string, job Job, logger *slog.Logger, opts ...Option) (*Trigger, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}

	t := &Trigger{
		spec:     spec,
		schedule: schedule,
		job:      job,
		logger:   logger.With("component", "cron", "schedule", spec),
		now:      time.Now,
		after:    time.After,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Start runs the scheduling loop in a goroutine until ctx is cancelled.
func (t *Trigger) Start(ctx context.Context) {
	go func() {
		defer close(t.done)
		t.loop(ctx)
	}()
}

// Done is closed once the loop has exited and any in-flight run has returned.
func (t *Trigger) Done() <-chan struct{} {
	return t.done
}

// NextRun returns the next scheduled run time from now.
func (t *Trigger) NextRun() time.Time {
	return t.schedule.Next(t.now())
}

func (t *Trigger) loop(ctx context.Context) {
	if t.runOnStart {
		t.execute(ctx)
	}
	for {
		next := t.schedule.Next(t.now())
		wait := next.Sub(t.now())
		t.logger.Debug("waiting for next scheduled run", "next_run", next, "wait_duration", wait)

		select {
		case <-ctx.Done():
			t.logger.Info("cron trigger shutting down")
			return
		case <-t.after(wait):
			t.execute(ctx)
		}
	}
}

func (t *Trigger) execute(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	t.logger.Info("starting scheduled run")
	start := t.now()
	if err := t.job.Run(ctx); err != nil {
		t.logger.Warn("scheduled run completed with error", "error", err, "duration", t.now().Sub(start))
		return
	}
	t.logger.Info("scheduled run completed", "duration", t.now().Sub(start))
}
