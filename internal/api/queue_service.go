package api

import (
	"context"
	"encoding/json"
	"fmt"

	"foreman/internal/queue"
)

// QueueReader abstracts queue persistence interactions needed for API queries.
type QueueReader interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Phase, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	GetByID(ctx context.Context, id int64) (*queue.Phase, error)
}

// QueueService exposes read-only queue operations returning API views. Its
// Snapshot is what the broadcast hub delivers on connect and after every
// state change.
type QueueService struct {
	store QueueReader
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(store QueueReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns phases filtered by status.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]PhaseView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	phases, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromPhases(phases), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single phase. Missing phases return nil.
func (s *QueueService) Describe(ctx context.Context, id int64) (*PhaseView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	phase, err := s.store.GetByID(ctx, id)
	if err != nil || phase == nil {
		return nil, err
	}
	view := FromPhase(phase)
	return &view, nil
}

// State assembles the aggregate queue state: counts plus every phase.
func (s *QueueService) State(ctx context.Context) (QueueState, error) {
	if s == nil || s.store == nil {
		return QueueState{Counts: map[string]int{}}, nil
	}
	phases, err := s.store.List(ctx)
	if err != nil {
		return QueueState{}, err
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return QueueState{}, err
	}
	return QueueState{
		Counts: MergeQueueStats(stats),
		Phases: FromPhases(phases),
	}, nil
}

// Snapshot serializes the aggregate queue state for broadcast delivery.
func (s *QueueService) Snapshot(ctx context.Context) (json.RawMessage, error) {
	state, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal queue state: %w", err)
	}
	return payload, nil
}
