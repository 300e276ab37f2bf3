// Package api defines wire-format types and converters for the HTTP API
// layer. It translates internal queue models into transport-friendly views
// that CLI and web consumers can render without coupling to internal types.
//
// # Key Types
//
// PhaseView: transport representation of a queue phase with dependency,
// payload passthrough, and error details.
//
// QueueState: aggregate snapshot of counts plus every phase; this is the
// payload carried inside broadcast envelopes.
//
// DaemonStatus: aggregated runtime information including coordinator state.
//
// # Design Notes
//
// Views use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (queue.Status) are exposed as lowercase strings. Timestamps use
// RFC3339 with milliseconds. Payloads are passed through as json.RawMessage
// to avoid double-encoding.
package api
