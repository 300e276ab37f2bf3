// Package daemon hosts the long-running foreman process: the coordinator
// poll loop, the broadcast hub, and the HTTP API serving queue operations and
// a server-sent-events stream of queue state. A flock-based lock file keeps
// execution single-instance.
package daemon
