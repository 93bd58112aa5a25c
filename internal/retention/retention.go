// Package retention deletes clipboard history that has not been read within
// the configured number of days.
package retention

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Mopip77/pasteV/internal/service"
	"github.com/Mopip77/pasteV/internal/settings"
)

// RunHour is the local hour of the daily sweep.
const RunHour = 1

// Sweeper deletes entries last read before a horizon.
type Sweeper interface {
	DeleteOlderThan(ctx context.Context, t time.Time) (*service.SweepResult, error)
}

// Recorder observes sweeps.
type Recorder interface {
	RecordRetention(deleted int64, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordRetention(int64, error) {}

// Job runs a sweep at startup and then daily at RunHour local time.
type Job struct {
	sweeper  Sweeper
	settings settings.Provider
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a retention job. recorder may be nil.
func New(sweeper Sweeper, sp settings.Provider, recorder Recorder, logger *slog.Logger) *Job {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Job{
		sweeper:  sweeper,
		settings: sp,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Horizon returns the cutoff for a sweep at now, and false when retention
// is disabled.
func Horizon(now time.Time, s settings.Settings) (time.Time, bool) {
	if !s.RetentionEnabled() {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -s.HistoryClearDays), true
}

// NextRun returns the first RunHour:00 local time strictly after now.
func NextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), RunHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Sweep runs one pass with the current settings. It returns nil when
// retention is disabled.
func (j *Job) Sweep(ctx context.Context) (*service.SweepResult, error) {
	horizon, ok := Horizon(j.now(), j.settings.Load())
	if !ok {
		j.logger.Debug("retention disabled")
		return nil, nil
	}

	res, err := j.sweeper.DeleteOlderThan(ctx, horizon)
	if err != nil {
		j.recorder.RecordRetention(0, err)
		return nil, err
	}
	j.recorder.RecordRetention(res.Deleted, nil)
	return res, nil
}

// Start runs an initial sweep in the background and schedules the daily one.
// Calling Start on a running job does nothing.
func (j *Job) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	j.done = make(chan struct{})

	go j.loop(ctx, j.done)
	j.logger.Info("retention job started", "next_run", NextRun(j.now()).Format(time.RFC3339))
}

// Stop cancels the schedule and waits for a running sweep to return.
func (j *Job) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (j *Job) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	j.run(ctx, "initial")

	for {
		timer := time.NewTimer(time.Until(NextRun(j.now())))
		select {
		case <-timer.C:
			j.run(ctx, "daily")
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (j *Job) run(ctx context.Context, trigger string) {
	res, err := j.Sweep(ctx)
	switch {
	case err != nil:
		if ctx.Err() == nil {
			j.logger.Warn("retention sweep failed", "trigger", trigger, "error", err)
		}
	case res != nil && res.Deleted > 0:
		j.logger.Info("retention sweep completed", "trigger", trigger, "deleted", res.Deleted)
	}
}
