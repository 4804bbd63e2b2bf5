package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/focfleet/focfleet-go/pkg/clock"
)

func newTestTracker() (*Tracker, *clock.Fake) {
	fc := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	tr := NewTracker(DefaultConfig(), fc)
	return tr, fc
}

func TestMarkConnectedOnline(t *testing.T) {
	tr, _ := newTestTracker()
	tr.MarkConnected("AA:01", "Motor-Controller-1")

	snap := tr.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("got %d devices, want 1", len(snap))
	}
	if !snap[0].Online || snap[0].Name != "Motor-Controller-1" {
		t.Errorf("unexpected snapshot: %+v", snap[0])
	}
	if tr.OnlineCount() != 1 {
		t.Errorf("OnlineCount = %d, want 1", tr.OnlineCount())
	}
}

func TestSweepFlipsOfflineAfterThreshold(t *testing.T) {
	tr, fc := newTestTracker()

	var offline atomic.Int32
	tr.SetOfflineCallback(func(d DeviceHealth) {
		offline.Add(1)
		if d.Addr != "AA:01" {
			t.Errorf("offline callback for %q, want AA:01", d.Addr)
		}
	})

	tr.MarkConnected("AA:01", "Motor-Controller-1")

	// Just inside the threshold: still online.
	fc.Advance(30 * time.Second)
	tr.sweep()
	if tr.OnlineCount() != 1 {
		t.Fatal("device went offline within threshold")
	}

	// Past the threshold: offline exactly once.
	fc.Advance(time.Second)
	tr.sweep()
	tr.sweep()
	if tr.OnlineCount() != 0 {
		t.Error("device still online past threshold")
	}
	if got := offline.Load(); got != 1 {
		t.Errorf("offline callback fired %d times, want 1", got)
	}
}

func TestTouchKeepsDeviceOnline(t *testing.T) {
	tr, fc := newTestTracker()
	tr.MarkConnected("AA:01", "Motor-Controller-1")

	for i := 0; i < 5; i++ {
		fc.Advance(20 * time.Second)
		tr.Touch("AA:01")
		tr.sweep()
	}
	if tr.OnlineCount() != 1 {
		t.Error("touched device went offline")
	}
}

func TestTouchRevivesOfflineDevice(t *testing.T) {
	tr, fc := newTestTracker()

	var online atomic.Int32
	tr.SetOnlineCallback(func(d DeviceHealth) { online.Add(1) })

	tr.MarkConnected("AA:01", "Motor-Controller-1")
	fc.Advance(31 * time.Second)
	tr.sweep()
	if tr.OnlineCount() != 0 {
		t.Fatal("device not offline after threshold")
	}

	tr.Touch("AA:01")
	if tr.OnlineCount() != 1 {
		t.Error("touch did not revive device")
	}
	if got := online.Load(); got != 1 {
		t.Errorf("online callback fired %d times, want 1", got)
	}

	// Touching an online device does not re-fire the callback.
	tr.Touch("AA:01")
	if got := online.Load(); got != 1 {
		t.Errorf("online callback fired %d times after second touch, want 1", got)
	}
}

func TestTouchUnknownAddressTracksIt(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Touch("BB:09")

	snap := tr.Snapshot()
	if len(snap) != 1 || !snap[0].Online {
		t.Errorf("unknown address not tracked online: %+v", snap)
	}
}

func TestForget(t *testing.T) {
	tr, _ := newTestTracker()
	tr.MarkConnected("AA:01", "Motor-Controller-1")
	tr.Forget("AA:01")
	if len(tr.Snapshot()) != 0 {
		t.Error("forgotten device still tracked")
	}
}

func TestSnapshotOrdering(t *testing.T) {
	tr, _ := newTestTracker()
	tr.MarkConnected("CC:03", "Motor-Controller-3")
	tr.MarkConnected("AA:01", "Motor-Controller-1")
	tr.MarkConnected("BB:02", "Motor-Controller-2")

	snap := tr.Snapshot()
	for i := 1; i < len(snap); i++ {
		if snap[i-1].Name > snap[i].Name {
			t.Errorf("snapshot not sorted: %q before %q", snap[i-1].Name, snap[i].Name)
		}
	}
}

func TestSweepLoopRuns(t *testing.T) {
	tr, fc := newTestTracker()

	offlineCh := make(chan DeviceHealth, 1)
	tr.SetOfflineCallback(func(d DeviceHealth) { offlineCh <- d })

	tr.MarkConnected("AA:01", "Motor-Controller-1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.Start(ctx)
	defer tr.Stop()

	if !tr.IsRunning() {
		t.Fatal("tracker not running after Start")
	}

	// Double start is a no-op.
	tr.Start(ctx)

	// 35s covers the threshold and at least one sweep tick.
	fc.Advance(35 * time.Second)

	select {
	case d := <-offlineCh:
		if d.Addr != "AA:01" {
			t.Errorf("offline for %q, want AA:01", d.Addr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweep loop never flipped the device offline")
	}
}

func TestStopHaltsSweep(t *testing.T) {
	tr, fc := newTestTracker()
	tr.MarkConnected("AA:01", "Motor-Controller-1")

	ctx := context.Background()
	tr.Start(ctx)
	tr.Stop()
	if tr.IsRunning() {
		t.Fatal("tracker still running after Stop")
	}

	// Double stop is a no-op.
	tr.Stop()

	// Give the loop a moment to exit, then verify ticks do nothing.
	time.Sleep(10 * time.Millisecond)
	fc.Advance(time.Minute)
	time.Sleep(10 * time.Millisecond)
	if tr.OnlineCount() != 1 {
		t.Error("stopped tracker still sweeping")
	}
}
