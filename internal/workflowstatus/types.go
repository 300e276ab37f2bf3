package workflowstatus

import (
	"context"
	"errors"
	"strings"
)

// State classifies what the external source knows about a work item.
type State string

const (
	StateUnknown   State = "unknown"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Outcome is the answer to one status check. ErrorMessage is populated only
// for failed outcomes.
type Outcome struct {
	State        State
	ErrorMessage string
}

// Source answers whether an external work item has reached a terminal
// outcome. Implementations must be safe to call repeatedly and cheap enough
// for one call per running phase per poll tick.
type Source interface {
	Status(ctx context.Context, externalRef string) (Outcome, error)
}

// ErrUnavailable indicates the source could not be reached or timed out. The
// caller treats it as "no outcome yet" and retries on the next tick.
var ErrUnavailable = errors.New("workflow status source unavailable")

// ParseState normalizes status strings reported by external workflow systems.
func ParseState(value string) State {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "completed", "complete", "success", "succeeded":
		return StateCompleted
	case "failed", "failure", "error", "cancelled", "canceled":
		return StateFailed
	case "running", "in_progress", "queued", "pending", "started":
		return StateRunning
	default:
		return StateUnknown
	}
}
