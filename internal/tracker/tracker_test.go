package tracker_test

import (
	"context"
	"testing"

	"foreman/internal/logging"
	"foreman/internal/queue"
	"foreman/internal/testsupport"
	"foreman/internal/tracker"
)

func newTracker(t *testing.T) (*tracker.Tracker, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return tracker.New(store, logging.NewNop()), store
}

func statusOf(t *testing.T, store *queue.Store, id int64) queue.Status {
	t.Helper()
	phase, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if phase == nil {
		t.Fatalf("phase %d missing", id)
	}
	return phase.Status
}

func TestLinearCascade(t *testing.T) {
	trk, store := newTracker(t)
	phases := testsupport.EnqueueChain(t, store, "req-1", 3)
	testsupport.MustUpdateStatus(t, store, phases[0].ID, queue.StatusRunning)

	next, err := trk.OnCompleted(context.Background(), phases[0].ID)
	if err != nil {
		t.Fatalf("OnCompleted failed: %v", err)
	}
	if next != phases[1].ID {
		t.Fatalf("expected phase 2 to become ready, got id %d", next)
	}

	if got := statusOf(t, store, phases[0].ID); got != queue.StatusCompleted {
		t.Fatalf("phase 1: expected completed, got %s", got)
	}
	if got := statusOf(t, store, phases[1].ID); got != queue.StatusReady {
		t.Fatalf("phase 2: expected ready, got %s", got)
	}
	if got := statusOf(t, store, phases[2].ID); got != queue.StatusQueued {
		t.Fatalf("phase 3: expected queued, got %s", got)
	}
}

func TestLastPhaseCompletionEndsChain(t *testing.T) {
	trk, store := newTracker(t)
	phases := testsupport.EnqueueChain(t, store, "req-1", 1)
	testsupport.MustUpdateStatus(t, store, phases[0].ID, queue.StatusRunning)

	next, err := trk.OnCompleted(context.Background(), phases[0].ID)
	if err != nil {
		t.Fatalf("OnCompleted failed: %v", err)
	}
	if next != 0 {
		t.Fatalf("expected no dependent, got id %d", next)
	}
}

func TestFailureCascade(t *testing.T) {
	trk, store := newTracker(t)
	phases := testsupport.EnqueueChain(t, store, "req-1", 3)
	testsupport.MustUpdateStatus(t, store, phases[0].ID, queue.StatusRunning)

	blocked, err := trk.OnFailed(context.Background(), phases[0].ID, "compile error")
	if err != nil {
		t.Fatalf("OnFailed failed: %v", err)
	}
	if len(blocked) != 2 {
		t.Fatalf("expected 2 blocked phases, got %d", len(blocked))
	}

	if got := statusOf(t, store, phases[0].ID); got != queue.StatusFailed {
		t.Fatalf("phase 1: expected failed, got %s", got)
	}
	for _, id := range []int64{phases[1].ID, phases[2].ID} {
		phase, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if phase.Status != queue.StatusBlocked {
			t.Fatalf("phase %d: expected blocked, got %s", phase.PhaseNumber, phase.Status)
		}
		if phase.ErrorMessage != "Phase 1 failed: compile error" {
			t.Fatalf("phase %d: unexpected error message %q", phase.PhaseNumber, phase.ErrorMessage)
		}
	}
}

func TestNoFalseBlocking(t *testing.T) {
	trk, store := newTracker(t)
	phases := testsupport.EnqueueChain(t, store, "req-1", 3)
	ctx := context.Background()

	testsupport.MustUpdateStatus(t, store, phases[0].ID, queue.StatusRunning)
	if _, err := trk.OnCompleted(ctx, phases[0].ID); err != nil {
		t.Fatalf("OnCompleted failed: %v", err)
	}
	testsupport.MustUpdateStatus(t, store, phases[1].ID, queue.StatusRunning)

	blocked, err := trk.OnFailed(ctx, phases[1].ID, "tests failed")
	if err != nil {
		t.Fatalf("OnFailed failed: %v", err)
	}
	if len(blocked) != 1 || blocked[0] != phases[2].ID {
		t.Fatalf("expected only phase 3 blocked, got %v", blocked)
	}
	if got := statusOf(t, store, phases[0].ID); got != queue.StatusCompleted {
		t.Fatalf("phase 1 must stay completed, got %s", got)
	}
	phase3, _ := store.GetByID(ctx, phases[2].ID)
	if phase3.ErrorMessage != "Phase 2 failed: tests failed" {
		t.Fatalf("unexpected attribution: %q", phase3.ErrorMessage)
	}
}

func TestOnCompletedIdempotent(t *testing.T) {
	trk, store := newTracker(t)
	phases := testsupport.EnqueueChain(t, store, "req-1", 2)
	ctx := context.Background()
	testsupport.MustUpdateStatus(t, store, phases[0].ID, queue.StatusRunning)

	first, err := trk.OnCompleted(ctx, phases[0].ID)
	if err != nil {
		t.Fatalf("OnCompleted failed: %v", err)
	}
	if first != phases[1].ID {
		t.Fatalf("expected readiness result on first call, got %d", first)
	}

	second, err := trk.OnCompleted(ctx, phases[0].ID)
	if err != nil {
		t.Fatalf("repeat OnCompleted failed: %v", err)
	}
	if second != 0 {
		t.Fatalf("expected no duplicate readiness result, got %d", second)
	}
	if got := statusOf(t, store, phases[1].ID); got != queue.StatusReady {
		t.Fatalf("phase 2: expected ready, got %s", got)
	}
}

func TestOnFailedIdempotent(t *testing.T) {
	trk, store := newTracker(t)
	phases := testsupport.EnqueueChain(t, store, "req-1", 2)
	ctx := context.Background()
	testsupport.MustUpdateStatus(t, store, phases[0].ID, queue.StatusRunning)

	if _, err := trk.OnFailed(ctx, phases[0].ID, "first error"); err != nil {
		t.Fatalf("OnFailed failed: %v", err)
	}
	blocked, err := trk.OnFailed(ctx, phases[0].ID, "second error")
	if err != nil {
		t.Fatalf("repeat OnFailed failed: %v", err)
	}
	if blocked != nil {
		t.Fatalf("expected no-op on terminal phase, got %v", blocked)
	}

	phase, _ := store.GetByID(ctx, phases[0].ID)
	if phase.ErrorMessage != "first error" {
		t.Fatalf("expected original error preserved, got %q", phase.ErrorMessage)
	}
}

func TestIsolationAcrossParents(t *testing.T) {
	trk, store := newTracker(t)
	a := testsupport.EnqueueChain(t, store, "parent-a", 2)
	b := testsupport.EnqueueChain(t, store, "parent-b", 2)
	ctx := context.Background()

	testsupport.MustUpdateStatus(t, store, a[0].ID, queue.StatusRunning)
	if _, err := trk.OnFailed(ctx, a[0].ID, "boom"); err != nil {
		t.Fatalf("OnFailed failed: %v", err)
	}

	if got := statusOf(t, store, b[0].ID); got != queue.StatusReady {
		t.Fatalf("parent-b phase 1: expected ready, got %s", got)
	}
	if got := statusOf(t, store, b[1].ID); got != queue.StatusQueued {
		t.Fatalf("parent-b phase 2: expected queued, got %s", got)
	}
}

func TestOnCompletedUnknownID(t *testing.T) {
	trk, _ := newTracker(t)
	if _, err := trk.OnCompleted(context.Background(), 4242); !queue.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
