package config

import "strings"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeIntervals()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	dataDir, err := expandPath(c.Paths.DataDir)
	if err != nil {
		return err
	}
	c.Paths.DataDir = dataDir

	logDir, err := expandPath(c.Paths.LogDir)
	if err != nil {
		return err
	}
	c.Paths.LogDir = logDir

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeIntervals() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.StatusCheckTimeout <= 0 {
		c.Workflow.StatusCheckTimeout = defaultStatusCheckTimeout
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.StatusSource.RequestTimeout <= 0 {
		c.StatusSource.RequestTimeout = defaultRequestTimeout
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultRequestTimeout
	}
	if c.Broadcast.ObserverBuffer <= 0 {
		c.Broadcast.ObserverBuffer = defaultObserverBuffer
	}
	c.StatusSource.BaseURL = strings.TrimSpace(c.StatusSource.BaseURL)
	c.Notifications.WebhookURL = strings.TrimSpace(c.Notifications.WebhookURL)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
