package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/focfleet/focfleet-go/pkg/wire"
)

func newTextLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h), &buf
}

func TestSlogAdapterBroadcast(t *testing.T) {
	logger, buf := newTextLogger()
	adapter := NewSlogAdapter(logger)

	adapter.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-7",
		Direction:    DirectionOut,
		Layer:        LayerFleet,
		Category:     CategoryBroadcast,
		Broadcast: &BroadcastEvent{
			Mode:       wire.ModeSlice,
			DataType:   wire.DataTypeAngle,
			GroupStart: 1,
			GroupEnd:   5,
			Fresh:      4,
			Size:       16,
			Targets:    3,
			Failed:     1,
		},
	})

	out := buf.String()
	for _, want := range []string{"conn-7", "BROADCAST", "MULTI_SLICE", "angle", "group_start=1", "group_end=5", "fresh=4", "failed=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("slog output missing %q: %s", want, out)
		}
	}
}

func TestSlogAdapterResponse(t *testing.T) {
	logger, buf := newTextLogger()
	adapter := NewSlogAdapter(logger)

	adapter.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-9",
		Direction:    DirectionIn,
		Layer:        LayerFleet,
		Category:     CategoryResponse,
		DeviceID:     12,
		RemoteAddr:   "10.0.0.4:9000",
		Response:     &ResponseEvent{Payload: "HEARTBEAT"},
	})

	out := buf.String()
	for _, want := range []string{"device_id=12", "remote_addr=10.0.0.4:9000", "payload=HEARTBEAT"} {
		if !strings.Contains(out, want) {
			t.Errorf("slog output missing %q: %s", want, out)
		}
	}
}

func TestSlogAdapterError(t *testing.T) {
	logger, buf := newTextLogger()
	adapter := NewSlogAdapter(logger)

	adapter.Log(Event{
		Timestamp: time.Now(),
		Category:  CategoryError,
		Error:     &ErrorEventData{Layer: LayerWire, Message: "bad frame", Context: "intake"},
	})

	out := buf.String()
	if !strings.Contains(out, "error_msg=\"bad frame\"") || !strings.Contains(out, "error_context=intake") {
		t.Errorf("slog output missing error attrs: %s", out)
	}
}

func TestSlogAdapterStateChange(t *testing.T) {
	logger, buf := newTextLogger()
	adapter := NewSlogAdapter(logger)

	adapter.Log(Event{
		Timestamp: time.Now(),
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityLiveness,
			OldState: "online",
			NewState: "offline",
			Reason:   "threshold",
		},
	})

	out := buf.String()
	for _, want := range []string{"entity=LIVENESS", "old_state=online", "new_state=offline", "reason=threshold"} {
		if !strings.Contains(out, want) {
			t.Errorf("slog output missing %q: %s", want, out)
		}
	}
}
