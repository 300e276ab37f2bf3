// Package tracker decides which phases become runnable or blocked when a
// sibling reaches a terminal outcome.
//
// Completion readies the single dependent phase; failure blocks every later
// non-terminal phase in the same chain with an attributed error message. Both
// operations are idempotent so the coordinator can safely re-observe an
// outcome it already processed. Only linear single-predecessor chains are
// supported; fan-out topologies are rejected at enqueue time.
package tracker
