package queue

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a phase.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusReady     Status = "ready"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusBlocked   Status = "blocked"
)

// DefaultPriority is the mid-range priority assigned when intake does not
// specify one.
const DefaultPriority = 5

var allStatuses = []Status{
	StatusQueued,
	StatusReady,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusBlocked,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusBlocked:   {},
}

// validTransitions is the forward-only state machine. Terminal states have no
// outgoing edges; blocked is reachable from any non-terminal state.
var validTransitions = map[Status][]Status{
	StatusQueued:  {StatusReady, StatusBlocked},
	StatusReady:   {StatusRunning, StatusBlocked},
	StatusRunning: {StatusCompleted, StatusFailed, StatusBlocked},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Phase is one ordered unit of work within a parent request's chain,
// persisted in SQLite.
type Phase struct {
	ID             int64
	ParentID       string
	PhaseNumber    int
	ExternalRef    string
	Status         Status
	DependsOnPhase *int
	PayloadJSON    string
	Priority       int
	QueuePosition  int64
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewPhase carries the intake parameters for enqueueing one phase.
type NewPhase struct {
	ParentID       string
	PhaseNumber    int
	Payload        []byte
	DependsOnPhase *int
	Priority       int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// IsTerminal reports whether the phase has reached a terminal status.
func (p Phase) IsTerminal() bool {
	return p.Status.IsTerminal()
}

// BlockedMessage formats the error recorded on phases blocked by an
// ancestor's failure, attributing the originating phase.
func BlockedMessage(failedPhase int, errorMessage string) string {
	return fmt.Sprintf("Phase %d failed: %s", failedPhase, errorMessage)
}
