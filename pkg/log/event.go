package log

import (
	"time"

	"github.com/focfleet/focfleet-go/pkg/wire"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the transport link (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates data flow relative to the local endpoint.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this endpoint is the controller or a device.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// DeviceID is the logical motor controller id, when attributable.
	DeviceID int `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Broadcast   *BroadcastEvent   `cbor:"11,keyasint,omitempty"` // Outbound group packet
	Response    *ResponseEvent    `cbor:"12,keyasint,omitempty"` // Inbound device text
	StateChange *StateChangeEvent `cbor:"13,keyasint,omitempty"` // Connection/liveness/run state
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn indicates incoming data.
	DirectionIn Direction = 0
	// DirectionOut indicates outgoing data.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the packet encoding layer.
	LayerWire Layer = 1
	// LayerFleet is the fleet/scheduling layer.
	LayerFleet Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerFleet:
		return "FLEET"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryFrame indicates a raw transport frame.
	CategoryFrame Category = 0
	// CategoryBroadcast indicates an outbound group setpoint packet.
	CategoryBroadcast Category = 1
	// CategoryResponse indicates an inbound device response.
	CategoryResponse Category = 2
	// CategoryState indicates a state change.
	CategoryState Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFrame:
		return "FRAME"
	case CategoryBroadcast:
		return "BROADCAST"
	case CategoryResponse:
		return "RESPONSE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates whether the local endpoint is a device or controller.
type Role uint8

const (
	// RoleDevice indicates a motor controller endpoint.
	RoleDevice Role = 0
	// RoleController indicates the fleet controller.
	RoleController Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleDevice:
		return "DEVICE"
	case RoleController:
		return "CONTROLLER"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (excluding the length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// BroadcastEvent captures one outbound group packet.
type BroadcastEvent struct {
	// Mode is the frame layout used.
	Mode wire.PacketMode `cbor:"1,keyasint"`

	// DataType is the actuation quantity carried.
	DataType wire.DataType `cbor:"2,keyasint"`

	// GroupStart and GroupEnd bound the addressed id range.
	GroupStart uint8 `cbor:"3,keyasint"`
	GroupEnd   uint8 `cbor:"4,keyasint"`

	// Fresh counts values popped from queues (vs repeated last values).
	Fresh int `cbor:"5,keyasint"`

	// Size is the encoded packet length in bytes.
	Size int `cbor:"6,keyasint"`

	// Targets is the number of transport links written to.
	Targets int `cbor:"7,keyasint,omitempty"`

	// Failed is the number of links whose write failed.
	Failed int `cbor:"8,keyasint,omitempty"`
}

// ResponseEvent captures an inbound device response after parsing.
// The device id lives on the enclosing Event.
type ResponseEvent struct {
	// Payload is the free-form text after the id token.
	Payload string `cbor:"1,keyasint"`
}

// StateChangeEvent captures connection, liveness and run lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a transport link state change.
	StateEntityConnection StateEntity = 0
	// StateEntityLiveness indicates a device online/offline transition.
	StateEntityLiveness StateEntity = 1
	// StateEntityRun indicates a distribution run starting or stopping.
	StateEntityRun StateEntity = 2
	// StateEntityFeed indicates a control feed reload.
	StateEntityFeed StateEntity = 3
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityLiveness:
		return "LIVENESS"
	case StateEntityRun:
		return "RUN"
	case StateEntityFeed:
		return "FEED"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
