package schedule

import (
	"context"
	"log/slog"
	"time"
)

// Clock abstracts wall-clock reads so next-run computation is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// Trigger runs a job once per day at a fixed local time. The loop alternates
// between waiting and running; the next target is always recomputed from
// "now" after a run finishes, so run duration shifts the schedule rather
// than piling up missed periods.
type Trigger struct {
	hour, minute int
	loc          *time.Location
	clock        Clock
	run          func(ctx context.Context) error
	log          *slog.Logger
}

func NewTrigger(hour, minute int, loc *time.Location, clock Clock, run func(ctx context.Context) error, log *slog.Logger) *Trigger {
	if clock == nil {
		clock = systemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Trigger{hour: hour, minute: minute, loc: loc, clock: clock, run: run, log: log}
}

// NextRun returns the next occurrence of the target time strictly after now:
// today's target if it is still ahead, otherwise tomorrow's.
func (t *Trigger) NextRun(now time.Time) time.Time {
	now = now.In(t.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), t.hour, t.minute, 0, 0, t.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start blocks, waking at each daily target to run the job, until ctx is
// cancelled. Job failures are logged and the loop keeps going; the next
// scheduled run is the retry.
func (t *Trigger) Start(ctx context.Context) error {
	for {
		now := t.clock.Now()
		next := t.NextRun(now)
		wait := next.Sub(now)
		t.log.Info("waiting for next run", "next", next.Format(time.RFC3339), "wait", wait.String())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		t.log.Info("starting scheduled run")
		if err := t.run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.log.Error("scheduled run failed", "err", err)
		}
	}
}
