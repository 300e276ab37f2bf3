package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// PhaseView describes a queue phase in a transport-friendly format.
type PhaseView struct {
	ID             int64           `json:"id"`
	ParentID       string          `json:"parentId"`
	PhaseNumber    int             `json:"phaseNumber"`
	ExternalRef    string          `json:"externalRef,omitempty"`
	Status         string          `json:"status"`
	DependsOnPhase *int            `json:"dependsOnPhase,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Priority       int             `json:"priority"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	CreatedAt      string          `json:"createdAt,omitempty"`
	UpdatedAt      string          `json:"updatedAt,omitempty"`
}

// QueueState is the aggregate snapshot broadcast to observers and returned by
// the status endpoint: per-status counts plus every phase grouped by parent.
type QueueState struct {
	Counts map[string]int `json:"counts"`
	Phases []PhaseView    `json:"phases"`
}

// CoordinatorStatus summarizes the poll loop's runtime state.
type CoordinatorStatus struct {
	Running   bool   `json:"running"`
	LastTick  string `json:"lastTick,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool              `json:"running"`
	PID          int               `json:"pid"`
	QueueDBPath  string            `json:"queueDbPath"`
	LockFilePath string            `json:"lockFilePath"`
	Coordinator  CoordinatorStatus `json:"coordinator"`
	QueueStats   map[string]int    `json:"queueStats"`
	Observers    int               `json:"observers"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of phases for API responses.
type QueueListResponse struct {
	Phases []PhaseView `json:"phases"`
}

// PhaseResponse wraps a single phase.
type PhaseResponse struct {
	Phase PhaseView `json:"phase"`
}

// EnqueueRequest is the payload accepted by the enqueue endpoint.
type EnqueueRequest struct {
	ParentID       string          `json:"parentId"`
	PhaseNumber    int             `json:"phaseNumber"`
	DependsOnPhase *int            `json:"dependsOnPhase,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Priority       int             `json:"priority,omitempty"`
}

// StartRequest is the payload accepted by the phase start endpoint.
type StartRequest struct {
	ExternalRef string `json:"externalRef"`
}
