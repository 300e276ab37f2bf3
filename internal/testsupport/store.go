package testsupport

import (
	"context"
	"testing"

	"foreman/internal/config"
	"foreman/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// EnqueuePhase inserts one phase for tests using the provided store.
func EnqueuePhase(t testing.TB, store *queue.Store, np queue.NewPhase) *queue.Phase {
	t.Helper()

	phase, err := store.Enqueue(context.Background(), np)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return phase
}

// EnqueueChain inserts a linear chain of count phases for parentID, each
// depending on the previous, and returns them in phase order.
func EnqueueChain(t testing.TB, store *queue.Store, parentID string, count int) []*queue.Phase {
	t.Helper()

	phases := make([]*queue.Phase, 0, count)
	for n := 1; n <= count; n++ {
		np := queue.NewPhase{
			ParentID:    parentID,
			PhaseNumber: n,
			Payload:     []byte(`{"title":"phase"}`),
		}
		if n > 1 {
			dep := n - 1
			np.DependsOnPhase = &dep
		}
		phases = append(phases, EnqueuePhase(t, store, np))
	}
	return phases
}

// MustUpdateStatus transitions a phase and fails the test on error.
func MustUpdateStatus(t testing.TB, store *queue.Store, id int64, status queue.Status) {
	t.Helper()

	if err := store.UpdateStatus(context.Background(), id, status, ""); err != nil {
		t.Fatalf("store.UpdateStatus(%d, %s): %v", id, status, err)
	}
}
