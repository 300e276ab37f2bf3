package workflowstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"foreman/internal/config"
)

const userAgent = "Foreman/0.1.0"

// NewFromConfig builds a status source backed by the configured HTTP endpoint.
// When no base URL is configured, a source that always answers unknown is
// returned so the coordinator can run without external wiring.
func NewFromConfig(cfg *config.Config) Source {
	base := strings.TrimSpace(cfg.StatusSource.BaseURL)
	if base == "" {
		return unknownSource{}
	}

	timeout := time.Duration(cfg.StatusSource.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   strings.TrimSpace(cfg.StatusSource.Token),
		client:  &http.Client{Timeout: timeout},
	}
}

// Client queries a JSON status endpoint: GET {base}/runs/{ref} responds with
// {"status": "...", "error_message": "..."}.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

type statusResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// Status implements Source.
func (c *Client) Status(ctx context.Context, externalRef string) (Outcome, error) {
	ref := strings.TrimSpace(externalRef)
	if ref == "" {
		return Outcome{State: StateUnknown}, nil
	}

	endpoint := c.baseURL + "/runs/" + url.PathEscape(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Outcome{}, err
		}
		return Outcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// No record for this ref; not a failure.
		return Outcome{State: StateUnknown}, nil
	case resp.StatusCode >= 500:
		return Outcome{}, fmt.Errorf("%w: endpoint returned %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Outcome{}, fmt.Errorf("status endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Outcome{}, fmt.Errorf("decode status response: %w", err)
	}

	outcome := Outcome{State: ParseState(parsed.Status)}
	if outcome.State == StateFailed {
		outcome.ErrorMessage = strings.TrimSpace(parsed.ErrorMessage)
		if outcome.ErrorMessage == "" {
			outcome.ErrorMessage = "external worker reported failure"
		}
	}
	return outcome, nil
}

type unknownSource struct{}

func (unknownSource) Status(context.Context, string) (Outcome, error) {
	return Outcome{State: StateUnknown}, nil
}
