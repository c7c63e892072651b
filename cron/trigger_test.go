package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitDone(t *testing.T, trigger *Trigger) {
	t.Helper()
	select {
	case <-trigger.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("trigger did not stop")
	}
}

func TestNewTrigger(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{name: "daily at 2am", spec: "0 2 * * *"},
		{name: "every half hour", spec: "*/30 * * * *"},
		{name: "every minute", spec: "* * * * *"},
		{name: "empty", spec: "", wantErr: true},
		{name: "wrong format", spec: "not a cron spec", wantErr: true},
		{name: "too few fields", spec: "0 2 *", wantErr: true},
		{name: "seconds field not accepted", spec: "0 0 2 * * *", wantErr: true},
		{name: "invalid value", spec: "60 2 * * *", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, err := NewTrigger(tt.spec, &countingJob{}, discardLogger())
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidCronSpec)
				assert.Nil(t, trigger)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.spec, trigger.spec)
		})
	}
}

func TestTrigger_NextRun(t *testing.T) {
	trigger, err := NewTrigger("0 2 * * *", &countingJob{}, discardLogger())
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 13, 45, 0, 0, time.Local)
	trigger.now = func() time.Time { return now }

	assert.Equal(t, time.Date(2024, 3, 2, 2, 0, 0, 0, time.Local), trigger.NextRun())
}

func TestTrigger_RunsOnSchedule(t *testing.T) {
	job := &countingJob{err: errors.New("one video failed")}
	trigger, err := NewTrigger("* * * * *", job, discardLogger())
	require.NoError(t, err)

	ticks := make(chan time.Time)
	waits := make(chan time.Duration, 4)
	trigger.after = func(d time.Duration) <-chan time.Time {
		waits <- d
		return ticks
	}

	ctx, cancel := context.WithCancel(context.Background())
	trigger.Start(ctx)

	// Failed runs do not stop the schedule.
	ticks <- time.Now()
	ticks <- time.Now()
	<-waits
	<-waits
	<-waits

	cancel()
	waitDone(t, trigger)
	assert.Equal(t, int32(2), job.runs.Load())
}

func TestTrigger_RunOnStart(t *testing.T) {
	job := &countingJob{}
	trigger, err := NewTrigger("0 2 * * *", job, discardLogger(), WithRunOnStart())
	require.NoError(t, err)

	waited := make(chan struct{})
	trigger.after = func(time.Duration) <-chan time.Time {
		close(waited)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	trigger.Start(ctx)
	<-waited
	cancel()
	waitDone(t, trigger)

	assert.Equal(t, int32(1), job.runs.Load())
}

func TestTrigger_CancellationStopsLoop(t *testing.T) {
	job := &countingJob{}
	trigger, err := NewTrigger("* * * * *", job, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	trigger.Start(ctx)
	cancel()
	waitDone(t, trigger)

	assert.Equal(t, int32(0), job.runs.Load())
}

func TestJobFunc(t *testing.T) {
	var called bool
	job := JobFunc(func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, job.Run(context.Background()))
	assert.True(t, called)
}
