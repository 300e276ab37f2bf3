package api_test

import (
	"context"
	"encoding/json"
	"testing"

	"foreman/internal/api"
	"foreman/internal/queue"
	"foreman/internal/testsupport"
)

func TestListReturnsViews(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.EnqueueChain(t, store, "pr-1", 2)

	service := api.NewQueueService(store)
	views, err := service.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	if views[0].Status != string(queue.StatusReady) || views[1].Status != string(queue.StatusQueued) {
		t.Fatalf("unexpected statuses: %s, %s", views[0].Status, views[1].Status)
	}
	if views[1].DependsOnPhase == nil || *views[1].DependsOnPhase != 1 {
		t.Fatalf("second phase should depend on phase 1: %#v", views[1].DependsOnPhase)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.EnqueueChain(t, store, "pr-2", 3)

	service := api.NewQueueService(store)
	views, err := service.List(context.Background(), queue.StatusQueued)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 queued views, got %d", len(views))
	}
}

func TestDescribeMissingPhaseReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	service := api.NewQueueService(store)
	view, err := service.Describe(context.Background(), 42)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if view != nil {
		t.Fatalf("expected nil view, got %#v", view)
	}
}

func TestSnapshotCarriesCountsAndPhases(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.EnqueueChain(t, store, "pr-3", 2)

	service := api.NewQueueService(store)
	payload, err := service.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	var state api.QueueState
	if err := json.Unmarshal(payload, &state); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if state.Counts["ready"] != 1 || state.Counts["queued"] != 1 {
		t.Fatalf("unexpected counts: %#v", state.Counts)
	}
	if len(state.Phases) != 2 {
		t.Fatalf("expected 2 phases in snapshot, got %d", len(state.Phases))
	}
}

func TestEnqueueValidatesRequest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	actions := api.NewQueueActions(store)
	ctx := context.Background()

	if _, err := actions.Enqueue(ctx, api.EnqueueRequest{PhaseNumber: 1}); err == nil {
		t.Fatal("expected error for missing parent id")
	}
	if _, err := actions.Enqueue(ctx, api.EnqueueRequest{
		ParentID:    "pr-4",
		PhaseNumber: 1,
		Payload:     json.RawMessage(`{broken`),
	}); err == nil {
		t.Fatal("expected error for invalid payload JSON")
	}

	view, err := actions.Enqueue(ctx, api.EnqueueRequest{
		ParentID:    "pr-4",
		PhaseNumber: 1,
		Payload:     json.RawMessage(`{"title":"lint"}`),
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if view.Status != string(queue.StatusReady) {
		t.Fatalf("first phase should be ready, got %s", view.Status)
	}
}

func TestRemoveReportsDeletion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	phases := testsupport.EnqueueChain(t, store, "pr-5", 1)
	actions := api.NewQueueActions(store)
	ctx := context.Background()

	removed, err := actions.Remove(ctx, phases[0].ID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Fatal("expected phase to be removed")
	}

	removed, err = actions.Remove(ctx, phases[0].ID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if removed {
		t.Fatal("second remove should report nothing deleted")
	}
}
