package log

import (
	"testing"
	"time"

	"github.com/focfleet/focfleet-go/pkg/wire"
)

func TestEventRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)

	tests := []struct {
		name  string
		event Event
	}{
		{
			name: "frame event",
			event: Event{
				Timestamp:    now,
				ConnectionID: "conn-1",
				Direction:    DirectionOut,
				Layer:        LayerTransport,
				Category:     CategoryFrame,
				LocalRole:    RoleController,
				RemoteAddr:   "10.0.0.7:9000",
				Frame:        &FrameEvent{Size: 12, Data: []byte{0xAA, 0x55}, Truncated: true},
			},
		},
		{
			name: "broadcast event",
			event: Event{
				Timestamp:    now,
				ConnectionID: "conn-2",
				Direction:    DirectionOut,
				Layer:        LayerFleet,
				Category:     CategoryBroadcast,
				Broadcast: &BroadcastEvent{
					Mode:       wire.ModeSlice,
					DataType:   wire.DataTypeAngle,
					GroupStart: 1,
					GroupEnd:   5,
					Fresh:      3,
					Size:       16,
					Targets:    4,
					Failed:     1,
				},
			},
		},
		{
			name: "response event",
			event: Event{
				Timestamp:    now,
				ConnectionID: "conn-3",
				Direction:    DirectionIn,
				Layer:        LayerFleet,
				Category:     CategoryResponse,
				DeviceID:     7,
				Response:     &ResponseEvent{Payload: "SINGLE:1.50"},
			},
		},
		{
			name: "liveness transition",
			event: Event{
				Timestamp:    now,
				ConnectionID: "conn-4",
				Direction:    DirectionIn,
				Layer:        LayerFleet,
				Category:     CategoryState,
				DeviceID:     3,
				StateChange: &StateChangeEvent{
					Entity:   StateEntityLiveness,
					OldState: "online",
					NewState: "offline",
					Reason:   "no activity for 30s",
				},
			},
		},
		{
			name: "error event",
			event: Event{
				Timestamp:    now,
				ConnectionID: "conn-5",
				Direction:    DirectionIn,
				Layer:        LayerWire,
				Category:     CategoryError,
				Error: &ErrorEventData{
					Layer:   LayerWire,
					Message: "malformed response",
					Context: "intake",
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeEvent(tt.event)
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}

			decoded, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}

			if decoded.ConnectionID != tt.event.ConnectionID {
				t.Errorf("ConnectionID: got %q, want %q", decoded.ConnectionID, tt.event.ConnectionID)
			}
			if decoded.Category != tt.event.Category {
				t.Errorf("Category: got %v, want %v", decoded.Category, tt.event.Category)
			}
			if decoded.DeviceID != tt.event.DeviceID {
				t.Errorf("DeviceID: got %d, want %d", decoded.DeviceID, tt.event.DeviceID)
			}
			if !decoded.Timestamp.Equal(tt.event.Timestamp) {
				t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, tt.event.Timestamp)
			}
		})
	}
}

func TestBroadcastPayloadSurvives(t *testing.T) {
	event := Event{
		Timestamp: time.Now(),
		Category:  CategoryBroadcast,
		Broadcast: &BroadcastEvent{
			Mode:       wire.ModeStruct,
			DataType:   wire.DataTypeVelocity,
			GroupStart: 6,
			GroupEnd:   10,
			Fresh:      5,
			Size:       20,
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if decoded.Broadcast == nil {
		t.Fatal("Broadcast payload lost")
	}
	if *decoded.Broadcast != *event.Broadcast {
		t.Errorf("Broadcast: got %+v, want %+v", *decoded.Broadcast, *event.Broadcast)
	}
}

func TestDecodeEventGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xFF, 0x00, 0x01}); err == nil {
		t.Error("expected error decoding garbage")
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerWire.String(), "WIRE"},
		{LayerFleet.String(), "FLEET"},
		{CategoryFrame.String(), "FRAME"},
		{CategoryBroadcast.String(), "BROADCAST"},
		{CategoryResponse.String(), "RESPONSE"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{RoleDevice.String(), "DEVICE"},
		{RoleController.String(), "CONTROLLER"},
		{StateEntityConnection.String(), "CONNECTION"},
		{StateEntityLiveness.String(), "LIVENESS"},
		{StateEntityRun.String(), "RUN"},
		{StateEntityFeed.String(), "FEED"},
		{Direction(9).String(), "UNKNOWN"},
		{Layer(9).String(), "UNKNOWN"},
		{Category(9).String(), "UNKNOWN"},
		{Role(9).String(), "UNKNOWN"},
		{StateEntity(9).String(), "UNKNOWN"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NoopLogger{}
	// Must not panic, even for empty events.
	l.Log(Event{})
	l.Log(Event{Category: CategoryError})
}
