package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"foreman/internal/logging"
	"foreman/internal/queue"
)

// Tracker advances a parent's phase chain in response to terminal outcomes.
// It supports linear chains only: each phase has at most one dependent, the
// sibling whose depends_on_phase names it.
type Tracker struct {
	store  *queue.Store
	logger *slog.Logger
}

// New constructs a Tracker over the given store.
func New(store *queue.Store, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logging.NewComponentLogger(logger, "tracker"),
	}
}

// OnCompleted marks a phase completed and readies its dependent sibling, if
// any. It returns the queue id of the newly-ready phase, or 0 when the chain
// has no further work. Calling it again for an already-completed phase is a
// no-op.
func (t *Tracker) OnCompleted(ctx context.Context, id int64) (int64, error) {
	phase, err := t.store.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if phase == nil {
		return 0, fmt.Errorf("%w: id %d", queue.ErrNotFound, id)
	}
	if phase.Status == queue.StatusCompleted {
		return 0, nil
	}

	if err := t.store.UpdateStatus(ctx, id, queue.StatusCompleted, ""); err != nil {
		return 0, err
	}
	t.logger.Info("phase completed",
		logging.Int64(logging.FieldQueueID, id),
		logging.String(logging.FieldParentID, phase.ParentID),
		logging.Int(logging.FieldPhaseNumber, phase.PhaseNumber),
	)

	next, err := t.dependentOf(ctx, phase)
	if err != nil {
		return 0, err
	}
	if next == nil || next.Status != queue.StatusQueued {
		return 0, nil
	}

	if err := t.store.UpdateStatus(ctx, next.ID, queue.StatusReady, ""); err != nil {
		return 0, err
	}
	t.logger.Info("dependent phase ready",
		logging.Int64(logging.FieldQueueID, next.ID),
		logging.String(logging.FieldParentID, next.ParentID),
		logging.Int(logging.FieldPhaseNumber, next.PhaseNumber),
	)
	return next.ID, nil
}

// OnFailed marks a phase failed and blocks every later sibling still in a
// non-terminal state, attributing the originating failure in each blocked
// phase's error message. It returns the blocked queue ids. Calling it on an
// already-terminal phase is a no-op.
func (t *Tracker) OnFailed(ctx context.Context, id int64, errorMessage string) ([]int64, error) {
	phase, err := t.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if phase == nil {
		return nil, fmt.Errorf("%w: id %d", queue.ErrNotFound, id)
	}
	if phase.IsTerminal() {
		return nil, nil
	}

	if err := t.store.UpdateStatus(ctx, id, queue.StatusFailed, errorMessage); err != nil {
		return nil, err
	}
	t.logger.Warn("phase failed",
		logging.Int64(logging.FieldQueueID, id),
		logging.String(logging.FieldParentID, phase.ParentID),
		logging.Int(logging.FieldPhaseNumber, phase.PhaseNumber),
		logging.String("error_message", errorMessage),
	)

	siblings, err := t.store.ByParent(ctx, phase.ParentID)
	if err != nil {
		return nil, err
	}

	blockedMessage := queue.BlockedMessage(phase.PhaseNumber, errorMessage)
	var blocked []int64
	for _, sibling := range siblings {
		if sibling.PhaseNumber <= phase.PhaseNumber || sibling.IsTerminal() {
			continue
		}
		if err := t.store.UpdateStatus(ctx, sibling.ID, queue.StatusBlocked, blockedMessage); err != nil {
			return blocked, err
		}
		blocked = append(blocked, sibling.ID)
	}

	if len(blocked) > 0 {
		t.logger.Info("blocked downstream phases",
			logging.String(logging.FieldParentID, phase.ParentID),
			logging.Int(logging.FieldPhaseNumber, phase.PhaseNumber),
			logging.Int("blocked_count", len(blocked)),
		)
	}
	return blocked, nil
}

func (t *Tracker) dependentOf(ctx context.Context, phase *queue.Phase) (*queue.Phase, error) {
	siblings, err := t.store.ByParent(ctx, phase.ParentID)
	if err != nil {
		return nil, err
	}
	for _, sibling := range siblings {
		if sibling.DependsOnPhase != nil && *sibling.DependsOnPhase == phase.PhaseNumber {
			return sibling, nil
		}
	}
	return nil, nil
}
