package queue_test

import (
	"context"
	"errors"
	"testing"

	"foreman/internal/queue"
	"foreman/internal/testsupport"
)

func TestEnqueueFirstPhaseIsReady(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	phases := testsupport.EnqueueChain(t, store, "req-1", 3)

	if phases[0].Status != queue.StatusReady {
		t.Fatalf("expected first phase ready, got %s", phases[0].Status)
	}
	for _, phase := range phases[1:] {
		if phase.Status != queue.StatusQueued {
			t.Fatalf("phase %d: expected queued, got %s", phase.PhaseNumber, phase.Status)
		}
	}
	if phases[1].DependsOnPhase == nil || *phases[1].DependsOnPhase != 1 {
		t.Fatalf("expected phase 2 to depend on phase 1, got %v", phases[1].DependsOnPhase)
	}
	if phases[0].Priority != queue.DefaultPriority {
		t.Fatalf("expected default priority, got %d", phases[0].Priority)
	}
}

func TestEnqueueRejectsDuplicateSlot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	np := queue.NewPhase{ParentID: "req-1", PhaseNumber: 1}
	testsupport.EnqueuePhase(t, store, np)

	if _, err := store.Enqueue(context.Background(), np); !errors.Is(err, queue.ErrDuplicatePhase) {
		t.Fatalf("expected ErrDuplicatePhase, got %v", err)
	}
}

func TestEnqueueValidatesDependency(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	dep := 2
	_, err := store.Enqueue(context.Background(), queue.NewPhase{
		ParentID:       "req-1",
		PhaseNumber:    2,
		DependsOnPhase: &dep,
	})
	if err == nil {
		t.Fatal("expected error for self-referential dependency")
	}
}

func TestReadyOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	low, err := store.Enqueue(ctx, queue.NewPhase{ParentID: "a", PhaseNumber: 1, Priority: 1})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	high, err := store.Enqueue(ctx, queue.NewPhase{ParentID: "b", PhaseNumber: 1, Priority: 9})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	mid, err := store.Enqueue(ctx, queue.NewPhase{ParentID: "c", PhaseNumber: 1, Priority: 1})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	ready, err := store.Ready(ctx)
	if err != nil {
		t.Fatalf("Ready failed: %v", err)
	}
	if len(ready) != 3 {
		t.Fatalf("expected 3 ready phases, got %d", len(ready))
	}
	if ready[0].ID != high.ID {
		t.Fatalf("expected highest priority first, got phase %d", ready[0].ID)
	}
	// Equal priority falls back to insertion order.
	if ready[1].ID != low.ID || ready[2].ID != mid.ID {
		t.Fatalf("expected insertion-order tie break, got %d then %d", ready[1].ID, ready[2].ID)
	}
}

func TestUpdateStatusLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	phase := testsupport.EnqueuePhase(t, store, queue.NewPhase{ParentID: "req-1", PhaseNumber: 1})

	testsupport.MustUpdateStatus(t, store, phase.ID, queue.StatusRunning)
	testsupport.MustUpdateStatus(t, store, phase.ID, queue.StatusCompleted)

	updated, err := store.GetByID(ctx, phase.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}

	// Re-applying a terminal status is a no-op, not an error.
	if err := store.UpdateStatus(ctx, phase.ID, queue.StatusCompleted, ""); err != nil {
		t.Fatalf("idempotent reapply failed: %v", err)
	}

	// Terminal states never move backward.
	err = store.UpdateStatus(ctx, phase.ID, queue.StatusReady, "")
	if !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateStatusMissingPhase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	err := store.UpdateStatus(context.Background(), 9999, queue.StatusReady, "")
	if !queue.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatusRecordsErrorMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	phase := testsupport.EnqueuePhase(t, store, queue.NewPhase{ParentID: "req-1", PhaseNumber: 1})
	testsupport.MustUpdateStatus(t, store, phase.ID, queue.StatusRunning)

	if err := store.UpdateStatus(ctx, phase.ID, queue.StatusFailed, "build broke"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	failed, err := store.GetByID(ctx, phase.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if failed.ErrorMessage != "build broke" {
		t.Fatalf("expected error message persisted, got %q", failed.ErrorMessage)
	}
}

func TestAssignExternalRef(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	phase := testsupport.EnqueuePhase(t, store, queue.NewPhase{ParentID: "req-1", PhaseNumber: 1})

	if err := store.AssignExternalRef(ctx, phase.ID, "issue-42"); err != nil {
		t.Fatalf("AssignExternalRef failed: %v", err)
	}
	updated, err := store.GetByID(ctx, phase.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.ExternalRef != "issue-42" {
		t.Fatalf("expected external ref, got %q", updated.ExternalRef)
	}

	if err := store.AssignExternalRef(ctx, 9999, "issue-1"); !queue.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestByParentOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.EnqueueChain(t, store, "req-a", 3)
	testsupport.EnqueueChain(t, store, "req-b", 2)

	phases, err := store.ByParent(context.Background(), "req-a")
	if err != nil {
		t.Fatalf("ByParent failed: %v", err)
	}
	if len(phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(phases))
	}
	for i, phase := range phases {
		if phase.PhaseNumber != i+1 {
			t.Fatalf("expected chain order, got phase %d at index %d", phase.PhaseNumber, i)
		}
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	phases := testsupport.EnqueueChain(t, store, "req-1", 3)
	testsupport.MustUpdateStatus(t, store, phases[0].ID, queue.StatusRunning)

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusRunning] != 1 || stats[queue.StatusQueued] != 2 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 3 || health.Running != 1 || health.Queued != 2 {
		t.Fatalf("unexpected health: %#v", health)
	}
}

func TestRemoveAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	phases := testsupport.EnqueueChain(t, store, "req-1", 2)

	removed, err := store.Remove(ctx, phases[0].ID)
	if err != nil || !removed {
		t.Fatalf("expected removal, got removed=%v err=%v", removed, err)
	}
	removed, err = store.Remove(ctx, phases[0].ID)
	if err != nil || removed {
		t.Fatalf("expected no-op removal, got removed=%v err=%v", removed, err)
	}

	cleared, err := store.Clear(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("expected 1 cleared, got %d err=%v", cleared, err)
	}
}
