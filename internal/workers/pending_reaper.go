package workers

import (
	"context"
	"fmt"
	"time"

	"autopilot/internal/domain/action"
	"autopilot/pkg/errors"
)

// PendingReaper fails pending ledger rows whose agent run never called
// back. Disabled by default: a zero interval keeps it off, since pending
// placeholders are legitimate long-lived state in offline mode.
type PendingReaper struct {
	*BaseWorker
	actions action.Repository
	maxAge  time.Duration
}

// NewPendingReaper creates the reaper worker
func NewPendingReaper(actions action.Repository, interval, maxAge time.Duration) *PendingReaper {
	return &PendingReaper{
		BaseWorker: NewBaseWorker("pending_reaper", interval),
		actions:    actions,
		maxAge:     maxAge,
	}
}

// Run fails every pending action older than the configured max age
func (w *PendingReaper) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-w.maxAge)

	stale, err := w.actions.FindPendingOlderThan(ctx, cutoff)
	if err != nil {
		return errors.Wrap(err, "find stale pending actions")
	}
	if len(stale) == 0 {
		return nil
	}

	reaped := 0
	for _, a := range stale {
		reason := fmt.Sprintf("No agent callback within %s", w.maxAge)
		if err := a.MarkFailed(reason); err != nil {
			w.Log().Warnw("Skipping action that is no longer pending",
				"action_id", a.ID,
				"error", err,
			)
			continue
		}
		if err := w.actions.Update(ctx, a); err != nil {
			w.Log().Errorw("Failed to reap pending action",
				"action_id", a.ID,
				"error", err,
			)
			continue
		}
		reaped++
	}

	w.Log().Infow("Reaped stale pending actions",
		"found", len(stale),
		"reaped", reaped,
	)
	return nil
}
