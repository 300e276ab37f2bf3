// Package broadcast pushes aggregate queue state to connected observers.
//
// The hub is the only fan-out point in the system: the coordinator and the
// intake path both publish through it, and the daemon's event endpoint
// subscribes each client connection as one observer. Messages use a stable
// envelope ({"type":"queue_update","data":...}) so observers can be written
// against the wire format alone.
package broadcast
