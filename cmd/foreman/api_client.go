package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"foreman/internal/api"
)

// apiClient is a thin HTTP client for the daemon API.
type apiClient struct {
	base   string
	client *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base:   base,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *apiClient) Status(ctx context.Context) (api.DaemonStatus, error) {
	var status api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

func (c *apiClient) QueueList(ctx context.Context, statuses []string) ([]api.PhaseView, error) {
	path := "/api/queue"
	if len(statuses) > 0 {
		params := make([]string, 0, len(statuses))
		for _, status := range statuses {
			params = append(params, "status="+strings.TrimSpace(status))
		}
		path += "?" + strings.Join(params, "&")
	}
	var resp api.QueueListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Phases, nil
}

func (c *apiClient) QueueGet(ctx context.Context, id int64) (api.PhaseView, error) {
	var resp api.PhaseResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/queue/%d", id), nil, &resp)
	return resp.Phase, err
}

func (c *apiClient) Enqueue(ctx context.Context, req api.EnqueueRequest) (api.PhaseView, error) {
	var resp api.PhaseResponse
	err := c.do(ctx, http.MethodPost, "/api/queue", req, &resp)
	return resp.Phase, err
}

func (c *apiClient) Start(ctx context.Context, id int64, externalRef string) (api.PhaseView, error) {
	var resp api.PhaseResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/queue/%d/start", id), api.StartRequest{ExternalRef: externalRef}, &resp)
	return resp.Phase, err
}

func (c *apiClient) Remove(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/queue/%d", id), nil, nil)
}

func (c *apiClient) Clear(ctx context.Context, completedOnly bool) (int64, error) {
	path := "/api/queue"
	if completedOnly {
		path += "?completed=1"
	}
	var resp struct {
		Removed int64 `json:"removed"`
	}
	err := c.do(ctx, http.MethodDelete, path, nil, &resp)
	return resp.Removed, err
}

// Events opens the server-sent-events stream and invokes fn for each
// envelope payload until the context is cancelled or the stream ends.
func (c *apiClient) Events(ctx context.Context, fn func(payload []byte) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return wrapConnError(err, c.base)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("events stream returned %d", resp.StatusCode)
	}

	decoder := newEventDecoder(resp.Body)
	for {
		payload, err := decoder.next()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := fn(payload); err != nil {
			return err
		}
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return wrapConnError(err, c.base)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func wrapConnError(err error, base string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon at %s: connection refused; start the daemon with `foremand`", base)
	}
	return fmt.Errorf("connect to daemon at %s: %w", base, err)
}

// eventDecoder extracts data payloads from a server-sent-events stream.
type eventDecoder struct {
	reader *bufio.Reader
}

func newEventDecoder(r io.Reader) *eventDecoder {
	return &eventDecoder{reader: bufio.NewReader(r)}
}

func (d *eventDecoder) next() ([]byte, error) {
	for {
		line, err := d.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			return []byte(data), nil
		}
	}
}
