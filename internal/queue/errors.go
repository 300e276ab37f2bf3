package queue

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates an operation referenced a queue id that does not exist.
var ErrNotFound = errors.New("phase not found")

// ErrInvalidTransition indicates an attempted status change that the state
// machine does not permit.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrDuplicatePhase indicates a second phase was enqueued for an occupied
// (parent_id, phase_number) slot.
var ErrDuplicatePhase = errors.New("phase already enqueued for parent")

func notFound(id int64) error {
	return fmt.Errorf("%w: id %d", ErrNotFound, id)
}

func invalidTransition(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
