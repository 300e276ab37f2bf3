package testsupport

import (
	"path/filepath"
	"testing"

	"foreman/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Intervals are shrunk so coordinator tests finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithStatusSourceURL points the config at a test status endpoint.
func WithStatusSourceURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.StatusSource.BaseURL = url
	}
}

// WithWebhookURL points notification delivery at a test endpoint.
func WithWebhookURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Notifications.WebhookURL = url
	}
}
