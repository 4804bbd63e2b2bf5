package clock

import (
	"testing"
	"time"
)

func TestFakeAfter(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := NewFake(start)

	ch := f.After(5 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired before advance")
	default:
	}

	f.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired early")
	default:
	}

	f.Advance(time.Second)
	select {
	case at := <-ch:
		if !at.Equal(start.Add(5 * time.Second)) {
			t.Errorf("fired at %v, want %v", at, start.Add(5*time.Second))
		}
	default:
		t.Fatal("timer did not fire")
	}
}

func TestFakeAfterZero(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	select {
	case <-f.After(0):
	default:
		t.Fatal("zero-duration timer did not fire immediately")
	}
}

func TestFakeTicker(t *testing.T) {
	f := NewFake(time.Unix(100, 0))
	tk := f.NewTicker(time.Second)
	defer tk.Stop()

	f.Advance(time.Second)
	select {
	case <-tk.C():
	default:
		t.Fatal("no tick after one period")
	}

	// Multiple periods with a drained channel coalesce into one tick.
	f.Advance(3 * time.Second)
	select {
	case <-tk.C():
	default:
		t.Fatal("no tick after three periods")
	}
	select {
	case <-tk.C():
		t.Fatal("ticks did not coalesce")
	default:
	}
}

func TestFakeTickerStop(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(time.Second)
	tk.Stop()

	f.Advance(5 * time.Second)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker still ticks")
	default:
	}
}

func TestFakeOrdering(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	first := f.After(time.Second)
	second := f.After(2 * time.Second)

	f.Advance(3 * time.Second)

	at1 := <-first
	at2 := <-second
	if !at1.Before(at2) {
		t.Errorf("timers fired out of order: %v then %v", at1, at2)
	}
}

func TestFakeWaiterCount(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	if f.WaiterCount() != 0 {
		t.Fatalf("WaiterCount() = %d, want 0", f.WaiterCount())
	}

	ch := f.After(time.Second)
	tk := f.NewTicker(time.Second)
	if f.WaiterCount() != 2 {
		t.Errorf("WaiterCount() = %d, want 2", f.WaiterCount())
	}

	f.Advance(time.Second)
	<-ch
	// The one-shot timer is spent; the ticker stays pending.
	if f.WaiterCount() != 1 {
		t.Errorf("WaiterCount() after fire = %d, want 1", f.WaiterCount())
	}
	tk.Stop()
	if f.WaiterCount() != 0 {
		t.Errorf("WaiterCount() after stop = %d, want 0", f.WaiterCount())
	}
}

func TestSystemClock(t *testing.T) {
	var c Clock = System{}
	before := time.Now()
	now := c.Now()
	if now.Before(before.Add(-time.Second)) {
		t.Errorf("System.Now drifted: %v vs %v", now, before)
	}

	select {
	case <-c.After(time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("System.After never fired")
	}

	tk := c.NewTicker(time.Millisecond)
	defer tk.Stop()
	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("System ticker never ticked")
	}
}
