package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"foreman/internal/logging"
)

// EventType is the envelope type carried by every hub message.
const EventType = "queue_update"

// Envelope is the wire format delivered to observers.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SnapshotFunc produces the full current aggregate queue state. It is invoked
// when an observer connects so the first message is never a delta.
type SnapshotFunc func(ctx context.Context) (json.RawMessage, error)

// Hub fans queue state changes out to connected observers.
//
// Publish deduplicates on the serialized aggregate state: re-publishing an
// identical state is a no-op so observers are not woken redundantly. An
// observer that cannot keep up with its buffer is dropped; delivery to the
// remaining observers is unaffected.
type Hub struct {
	snapshot SnapshotFunc
	logger   *slog.Logger
	buffer   int

	mu        sync.Mutex
	observers map[*Observer]struct{}
	lastState []byte
}

// Observer is one connected listener receiving serialized envelopes.
type Observer struct {
	hub *Hub
	ch  chan []byte
}

// Events returns the observer's delivery channel. The channel is closed when
// the observer is dropped or closed.
func (o *Observer) Events() <-chan []byte {
	return o.ch
}

// Close disconnects the observer from the hub.
func (o *Observer) Close() {
	o.hub.remove(o, false)
}

// New constructs a hub. buffer bounds each observer's pending event queue.
func New(snapshot SnapshotFunc, buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		snapshot:  snapshot,
		logger:    logging.NewComponentLogger(logger, "broadcast"),
		buffer:    buffer,
		observers: make(map[*Observer]struct{}),
	}
}

// Subscribe registers a new observer and immediately queues the full current
// aggregate state as its first message.
func (h *Hub) Subscribe(ctx context.Context) (*Observer, error) {
	state, err := h.currentState(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot queue state: %w", err)
	}

	payload, err := marshalEnvelope(state)
	if err != nil {
		return nil, err
	}

	observer := &Observer{hub: h, ch: make(chan []byte, h.buffer)}
	observer.ch <- payload

	h.mu.Lock()
	h.observers[observer] = struct{}{}
	count := len(h.observers)
	h.mu.Unlock()

	h.logger.Debug("observer connected", logging.Int("observers", count))
	return observer, nil
}

// Publish fans the aggregate state out to every connected observer. It
// reports whether a message was actually delivered; identical consecutive
// states are suppressed.
func (h *Hub) Publish(state json.RawMessage) bool {
	payload, err := marshalEnvelope(state)
	if err != nil {
		h.logger.Error("marshal broadcast envelope", logging.Error(err))
		return false
	}

	h.mu.Lock()
	if bytes.Equal(h.lastState, state) {
		h.mu.Unlock()
		return false
	}
	h.lastState = append([]byte(nil), state...)

	var dropped []*Observer
	for observer := range h.observers {
		select {
		case observer.ch <- payload:
		default:
			dropped = append(dropped, observer)
		}
	}
	for _, observer := range dropped {
		delete(h.observers, observer)
		close(observer.ch)
	}
	remaining := len(h.observers)
	h.mu.Unlock()

	if len(dropped) > 0 {
		h.logger.Warn("dropped slow observers",
			logging.Int("dropped", len(dropped)),
			logging.Int("observers", remaining),
		)
	}
	return true
}

// ObserverCount reports the number of connected observers.
func (h *Hub) ObserverCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

func (h *Hub) currentState(ctx context.Context) (json.RawMessage, error) {
	if h.snapshot != nil {
		return h.snapshot(ctx)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastState == nil {
		return json.RawMessage("{}"), nil
	}
	return json.RawMessage(append([]byte(nil), h.lastState...)), nil
}

func (h *Hub) remove(observer *Observer, closed bool) {
	h.mu.Lock()
	_, present := h.observers[observer]
	if present {
		delete(h.observers, observer)
	}
	h.mu.Unlock()
	if present && !closed {
		close(observer.ch)
	}
}

func marshalEnvelope(state json.RawMessage) ([]byte, error) {
	payload, err := json.Marshal(Envelope{Type: EventType, Data: state})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return payload, nil
}
