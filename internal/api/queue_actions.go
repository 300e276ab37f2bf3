package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"foreman/internal/queue"
)

// QueueWriter abstracts queue mutations needed for API actions.
type QueueWriter interface {
	Enqueue(ctx context.Context, np queue.NewPhase) (*queue.Phase, error)
	Remove(ctx context.Context, id int64) (bool, error)
	Clear(ctx context.Context) (int64, error)
	ClearCompleted(ctx context.Context) (int64, error)
}

// QueueActions exposes queue mutations returning API views.
type QueueActions struct {
	store QueueWriter
}

// NewQueueActions constructs a QueueActions around the provided writer.
func NewQueueActions(store QueueWriter) *QueueActions {
	if store == nil {
		return nil
	}
	return &QueueActions{store: store}
}

// Enqueue validates and inserts a phase from an API request.
func (a *QueueActions) Enqueue(ctx context.Context, req EnqueueRequest) (PhaseView, error) {
	if a == nil || a.store == nil {
		return PhaseView{}, errors.New("queue actions unavailable")
	}
	if strings.TrimSpace(req.ParentID) == "" {
		return PhaseView{}, errors.New("parentId is required")
	}
	if len(req.Payload) > 0 && !json.Valid(req.Payload) {
		return PhaseView{}, errors.New("payload must be valid JSON")
	}

	phase, err := a.store.Enqueue(ctx, queue.NewPhase{
		ParentID:       strings.TrimSpace(req.ParentID),
		PhaseNumber:    req.PhaseNumber,
		DependsOnPhase: req.DependsOnPhase,
		Payload:        req.Payload,
		Priority:       req.Priority,
	})
	if err != nil {
		return PhaseView{}, err
	}
	return FromPhase(phase), nil
}

// Remove deletes a phase, reporting whether anything was deleted.
func (a *QueueActions) Remove(ctx context.Context, id int64) (bool, error) {
	if a == nil || a.store == nil {
		return false, errors.New("queue actions unavailable")
	}
	return a.store.Remove(ctx, id)
}

// Clear removes every phase and returns the number removed.
func (a *QueueActions) Clear(ctx context.Context) (int64, error) {
	if a == nil || a.store == nil {
		return 0, errors.New("queue actions unavailable")
	}
	return a.store.Clear(ctx)
}

// ClearCompleted removes completed phases and returns the number removed.
func (a *QueueActions) ClearCompleted(ctx context.Context) (int64, error) {
	if a == nil || a.store == nil {
		return 0, errors.New("queue actions unavailable")
	}
	return a.store.ClearCompleted(ctx)
}
