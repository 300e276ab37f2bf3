package notifications_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"foreman/internal/notifications"
	"foreman/internal/testsupport"
)

func TestPhaseCompletedPostsPayload(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithWebhookURL(server.URL))
	service := notifications.NewService(cfg)

	if err := service.PhaseCompleted(context.Background(), "parent-1", 2, "run-42", "Phase 2 complete, phase 3 ready"); err != nil {
		t.Fatalf("PhaseCompleted failed: %v", err)
	}

	if got["parent_id"] != "parent-1" || got["status"] != "completed" {
		t.Fatalf("unexpected payload: %#v", got)
	}
	if got["phase_number"] != float64(2) || got["external_ref"] != "run-42" {
		t.Fatalf("unexpected payload: %#v", got)
	}
}

func TestPhaseFailedReportsFailureStatus(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithWebhookURL(server.URL))
	service := notifications.NewService(cfg)

	if err := service.PhaseFailed(context.Background(), "parent-1", 1, "run-7", "Phase 1 failed: lint broke (2 phases blocked)"); err != nil {
		t.Fatalf("PhaseFailed failed: %v", err)
	}
	if got["status"] != "failed" {
		t.Fatalf("unexpected payload: %#v", got)
	}
}

func TestWebhookErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithWebhookURL(server.URL))
	service := notifications.NewService(cfg)

	if err := service.Test(context.Background()); err == nil {
		t.Fatal("expected error from 400 response")
	}
}

func TestUnconfiguredServiceIsNoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	service := notifications.NewService(cfg)

	if err := service.PhaseCompleted(context.Background(), "parent-1", 1, "", "done"); err != nil {
		t.Fatalf("noop PhaseCompleted returned error: %v", err)
	}
	if err := service.Test(context.Background()); err != nil {
		t.Fatalf("noop Test returned error: %v", err)
	}
}
