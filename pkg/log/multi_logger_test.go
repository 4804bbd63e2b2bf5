package log

import (
	"sync"
	"testing"
)

// recordingLogger captures events for assertions.
type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingLogger) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestMultiLoggerFansOut(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{}
	m := NewMultiLogger(a, b)

	m.Log(Event{ConnectionID: "x", Category: CategoryFrame})
	m.Log(Event{ConnectionID: "y", Category: CategoryResponse})

	if a.count() != 2 || b.count() != 2 {
		t.Errorf("fan-out counts: a=%d b=%d, want 2 each", a.count(), b.count())
	}
}

func TestMultiLoggerEmpty(t *testing.T) {
	m := NewMultiLogger()
	// Must not panic with no targets.
	m.Log(Event{Category: CategoryError})
}
