package taskloop

import "testing"

func TestEmitterDeliversInOrder(t *testing.T) {
	e := NewEventEmitter("s1", 8)
	defer e.Close()

	e.Emit(EventRunStarted, map[string]interface{}{"goal": "x"})
	e.Emit(EventToolCallStart, nil)
	e.Emit(EventToolCallEnd, nil)

	want := []EventKind{EventRunStarted, EventToolCallStart, EventToolCallEnd}
	for i, kind := range want {
		ev := <-e.Events()
		if ev.Kind != kind {
			t.Errorf("event %d = %s, want %s", i, ev.Kind, kind)
		}
		if ev.SessionID != "s1" {
			t.Errorf("session id = %q", ev.SessionID)
		}
		if ev.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
	}
}

func TestEmitterDropsWhenFull(t *testing.T) {
	e := NewEventEmitter("s1", 2)
	defer e.Close()

	// Nothing reads; the third emit must not block.
	for i := 0; i < 5; i++ {
		e.Emit(EventWarning, nil)
	}

	n := 0
	for len(e.Events()) > 0 {
		<-e.Events()
		n++
	}
	if n != 2 {
		t.Errorf("buffered events = %d, want 2", n)
	}
}

func TestEmitterCloseIdempotent(t *testing.T) {
	e := NewEventEmitter("s1", 2)
	e.Close()
	e.Close()

	// Emit after close must not panic.
	e.Emit(EventWarning, nil)
}
