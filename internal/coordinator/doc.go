// Package coordinator drives phase progression. A single poll loop asks the
// external status source about every running phase and, on a terminal
// outcome, advances the parent's chain through the tracker, publishes the new
// aggregate state to the broadcast hub, and emits a notification. Outcome
// checks that fail or answer unknown leave the queue untouched.
package coordinator
