// Package logging builds the slog loggers used across Foreman.
//
// Two output formats are supported: a compact console format for interactive
// use and JSON for ingestion. Attribute helpers and shared field constants
// keep component, queue, and phase identifiers consistent so log lines from
// the coordinator, daemon, and store can be correlated.
package logging
