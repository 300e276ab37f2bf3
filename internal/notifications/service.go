package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"foreman/internal/config"
)

const userAgent = "Foreman/0.1.0"

// Service delivers human-readable phase progress messages. Delivery failures
// are the caller's to log; they must never block queue state progression.
type Service interface {
	PhaseCompleted(ctx context.Context, parentID string, phaseNumber int, externalRef, message string) error
	PhaseFailed(ctx context.Context, parentID string, phaseNumber int, externalRef, message string) error
	Test(ctx context.Context) error
}

// NewService builds a notification service backed by the configured webhook.
// When no webhook is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	endpoint := strings.TrimSpace(cfg.Notifications.WebhookURL)
	if endpoint == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &webhookService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// payload mirrors the sink invocation contract: parent, phase, external ref,
// terminal status, and a rendered message.
type payload struct {
	ParentID    string `json:"parent_id"`
	PhaseNumber int    `json:"phase_number"`
	ExternalRef string `json:"external_ref,omitempty"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

type webhookService struct {
	endpoint string
	client   *http.Client
}

func (s *webhookService) PhaseCompleted(ctx context.Context, parentID string, phaseNumber int, externalRef, message string) error {
	return s.send(ctx, payload{
		ParentID:    parentID,
		PhaseNumber: phaseNumber,
		ExternalRef: externalRef,
		Status:      "completed",
		Message:     message,
	})
}

func (s *webhookService) PhaseFailed(ctx context.Context, parentID string, phaseNumber int, externalRef, message string) error {
	return s.send(ctx, payload{
		ParentID:    parentID,
		PhaseNumber: phaseNumber,
		ExternalRef: externalRef,
		Status:      "failed",
		Message:     message,
	})
}

func (s *webhookService) Test(ctx context.Context) error {
	return s.send(ctx, payload{
		Status:  "completed",
		Message: "Notification system test",
	})
}

func (s *webhookService) send(ctx context.Context, data payload) error {
	if s == nil || s.client == nil {
		return nil
	}

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) PhaseCompleted(context.Context, string, int, string, string) error { return nil }

func (noopService) PhaseFailed(context.Context, string, int, string, string) error { return nil }

func (noopService) Test(context.Context) error { return nil }
