// Package queue persists phase records in SQLite and exposes helpers for
// driving their lifecycle.
//
// A phase is one ordered unit of work within a parent request's chain. The
// Store manages database connections, schema initialization, stats queries,
// and the forward-only status transitions that mirror the public lifecycle
// enum (queued, ready, running, completed, failed, blocked). Phases are never
// deleted automatically; removal is an explicit operator action.
//
// The database is treated as transient storage for in-flight work rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
//
// Treat this package as the single source of truth for queue semantics; when
// you add new statuses or fields, update schema.sql and bump schemaVersion.
package queue
