package taskloop

import (
	"sync"
	"time"
)

// EventKind identifies the type of session event.
type EventKind string

const (
	EventRunStarted          EventKind = "run_started"
	EventThinkingDelta       EventKind = "thinking_delta"
	EventToolCallStart       EventKind = "tool_call_start"
	EventToolCallEnd         EventKind = "tool_call_end"
	EventHumanInputRequested EventKind = "human_input_requested"
	EventHumanInputResolved  EventKind = "human_input_resolved"
	EventHistoryCompacted    EventKind = "history_compacted"
	EventOutputSuppressed    EventKind = "output_suppressed"
	EventLoopDetected        EventKind = "loop_detected"
	EventWarning             EventKind = "warning"
	EventRunCompleted        EventKind = "run_completed"
	EventRunFailed           EventKind = "run_failed"
	EventRunCancelled        EventKind = "run_cancelled"
)

// SessionEvent is a typed event published by the loop. Observers (UI,
// logging) consume them fire-and-forget; the loop never depends on who
// listens.
type SessionEvent struct {
	Kind      EventKind              `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventEmitter delivers typed events to the host via a buffered channel.
type EventEmitter struct {
	sessionID string
	ch        chan SessionEvent
	closed    bool
	mu        sync.Mutex
}

// NewEventEmitter creates an EventEmitter with the given buffer size.
func NewEventEmitter(sessionID string, bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{
		sessionID: sessionID,
		ch:        make(chan SessionEvent, bufferSize),
	}
}

// Emit sends an event. When the buffer is full the event is dropped so a
// slow observer can never stall the run.
func (e *EventEmitter) Emit(kind EventKind, data map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event := SessionEvent{
		Kind:      kind,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Data:      data,
	}
	select {
	case e.ch <- event:
	default:
	}
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan SessionEvent {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
