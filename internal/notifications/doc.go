// Package notifications delivers phase lifecycle messages to an optional
// webhook. When no webhook is configured every call is a silent noop, so
// callers can invoke the service unconditionally.
package notifications
