package nav

import (
	"context"
	"errors"
	"time"
)

// Run drives the scheduled runs until ctx is done: RunFull every
// RunInterval (disabled when zero) and RunSnapshot at midnight in
// SnapshotZone when snapshot ranges are configured. Runs themselves are
// detached from ctx so shutdown never leaves a half-written run.
func (e *Engine) Run(ctx context.Context) {
	var tick <-chan time.Time
	if e.settings.RunInterval > 0 {
		e.scheduled(ctx, RunKindFull)
		t := time.NewTicker(e.settings.RunInterval)
		defer t.Stop()
		tick = t.C
	}

	var snapTimer *time.Timer
	var snap <-chan time.Time
	if len(e.settings.Snapshot) > 0 {
		snapTimer = e.nextSnapshotTimer()
		snap = snapTimer.C
	}
	defer func() {
		if snapTimer != nil {
			snapTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			e.scheduled(ctx, RunKindFull)
		case <-snap:
			e.scheduled(ctx, RunKindSnapshot)
			snapTimer = e.nextSnapshotTimer()
			snap = snapTimer.C
		}
	}
}

func (e *Engine) scheduled(ctx context.Context, kind RunKind) {
	runCtx := context.WithoutCancel(ctx)
	var err error
	switch kind {
	case RunKindFull:
		_, err = e.RunFull(runCtx)
	case RunKindSnapshot:
		_, err = e.RunSnapshot(runCtx)
	}
	switch {
	case errors.Is(err, ErrRunInProgress):
		e.logger.Info("scheduled run skipped, previous run still in progress", "kind", kind)
	case err != nil:
		e.logger.Error("scheduled run failed", "kind", kind, "error", err)
	}
}

func (e *Engine) nextSnapshotTimer() *time.Timer {
	next := nextMidnight(e.now(), e.settings.SnapshotZone)
	d := next.Sub(e.now())
	e.logger.Info("next ledger snapshot", "at", next.Format(time.RFC3339), "in", d.Round(time.Minute))
	return time.NewTimer(d)
}

// nextMidnight returns the first midnight in loc strictly after now.
func nextMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}
