package workflowstatus_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"foreman/internal/testsupport"
	"foreman/internal/workflowstatus"
)

func newClient(t *testing.T, handler http.HandlerFunc) workflowstatus.Source {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := testsupport.NewConfig(t, testsupport.WithStatusSourceURL(server.URL))
	return workflowstatus.NewFromConfig(cfg)
}

func TestStatusCompleted(t *testing.T) {
	source := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/runs/run-12" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})

	outcome, err := source.Status(context.Background(), "run-12")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if outcome.State != workflowstatus.StateCompleted {
		t.Fatalf("expected completed, got %s", outcome.State)
	}
}

func TestStatusFailedCarriesMessage(t *testing.T) {
	source := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"failure","error_message":"lint broke"}`))
	})

	outcome, err := source.Status(context.Background(), "run-9")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if outcome.State != workflowstatus.StateFailed || outcome.ErrorMessage != "lint broke" {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}
}

func TestStatusNotFoundIsUnknown(t *testing.T) {
	source := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	outcome, err := source.Status(context.Background(), "run-404")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if outcome.State != workflowstatus.StateUnknown {
		t.Fatalf("expected unknown, got %s", outcome.State)
	}
}

func TestStatusServerErrorIsUnavailable(t *testing.T) {
	source := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := source.Status(context.Background(), "run-1")
	if !errors.Is(err, workflowstatus.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestUnconfiguredSourceAnswersUnknown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := workflowstatus.NewFromConfig(cfg)

	outcome, err := source.Status(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if outcome.State != workflowstatus.StateUnknown {
		t.Fatalf("expected unknown, got %s", outcome.State)
	}
}

func TestParseState(t *testing.T) {
	cases := map[string]workflowstatus.State{
		"success":     workflowstatus.StateCompleted,
		"COMPLETED":   workflowstatus.StateCompleted,
		"failure":     workflowstatus.StateFailed,
		"in_progress": workflowstatus.StateRunning,
		"mystery":     workflowstatus.StateUnknown,
		"":            workflowstatus.StateUnknown,
	}
	for input, want := range cases {
		if got := workflowstatus.ParseState(input); got != want {
			t.Errorf("ParseState(%q) = %s, want %s", input, got, want)
		}
	}
}
