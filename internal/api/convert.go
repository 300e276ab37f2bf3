package api

import (
	"encoding/json"
	"time"

	"foreman/internal/queue"
)

// FromPhase converts a queue record to its API representation.
func FromPhase(phase *queue.Phase) PhaseView {
	if phase == nil {
		return PhaseView{}
	}

	view := PhaseView{
		ID:           phase.ID,
		ParentID:     phase.ParentID,
		PhaseNumber:  phase.PhaseNumber,
		ExternalRef:  phase.ExternalRef,
		Status:       string(phase.Status),
		Priority:     phase.Priority,
		ErrorMessage: phase.ErrorMessage,
	}
	if phase.DependsOnPhase != nil {
		dep := *phase.DependsOnPhase
		view.DependsOnPhase = &dep
	}
	if phase.PayloadJSON != "" {
		view.Payload = json.RawMessage(phase.PayloadJSON)
	}
	if !phase.CreatedAt.IsZero() {
		view.CreatedAt = phase.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !phase.UpdatedAt.IsZero() {
		view.UpdatedAt = phase.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return view
}

// FromPhases converts a slice of queue records into API views.
func FromPhases(phases []*queue.Phase) []PhaseView {
	if len(phases) == 0 {
		return nil
	}
	out := make([]PhaseView, 0, len(phases))
	for _, phase := range phases {
		out = append(out, FromPhase(phase))
	}
	return out
}

// MergeQueueStats produces a string-keyed representation of queue stats.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
