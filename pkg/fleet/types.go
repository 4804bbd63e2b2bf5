package fleet

import (
	"errors"
	"time"

	"github.com/focfleet/focfleet-go/pkg/schedule"
)

// Controller errors.
var (
	ErrNotStarted     = errors.New("controller not started")
	ErrAlreadyStarted = errors.New("controller already started")
	ErrDeviceNotFound = errors.New("device not found")
	ErrFleetFull      = errors.New("device limit reached")
	ErrRunActive      = errors.New("distribution run already active")
	ErrNoTargets      = errors.New("targets file has no setpoint rows")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrNoFeed         = errors.New("no feed path configured")
)

// ControllerState represents the controller lifecycle state.
type ControllerState uint8

const (
	// StateIdle - controller created but not started.
	StateIdle ControllerState = iota

	// StateStarting - controller is starting up.
	StateStarting

	// StateRunning - controller is running normally.
	StateRunning

	// StateStopping - controller is shutting down.
	StateStopping

	// StateStopped - controller has stopped.
	StateStopped
)

// String returns the state name.
func (s ControllerState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Event types for controller callbacks.
type EventType uint8

const (
	// EventLinkUp - transport link established.
	EventLinkUp EventType = iota

	// EventLinkDown - transport link lost.
	EventLinkDown

	// EventDeviceOnline - device produced traffic after being offline.
	EventDeviceOnline

	// EventDeviceOffline - device silent past the offline threshold.
	EventDeviceOffline

	// EventDeviceDiscovered - device found via mDNS.
	EventDeviceDiscovered

	// EventRunStarted - distribution run started.
	EventRunStarted

	// EventRunStopped - distribution run finished.
	EventRunStopped

	// EventFeedApplied - watched targets file change applied.
	EventFeedApplied
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventLinkUp:
		return "LINK_UP"
	case EventLinkDown:
		return "LINK_DOWN"
	case EventDeviceOnline:
		return "DEVICE_ONLINE"
	case EventDeviceOffline:
		return "DEVICE_OFFLINE"
	case EventDeviceDiscovered:
		return "DEVICE_DISCOVERED"
	case EventRunStarted:
		return "RUN_STARTED"
	case EventRunStopped:
		return "RUN_STOPPED"
	case EventFeedApplied:
		return "FEED_APPLIED"
	default:
		return "UNKNOWN"
	}
}

// Event represents a controller event.
type Event struct {
	// Type is the event type.
	Type EventType

	// DeviceID is the motor controller id, when attributable.
	DeviceID uint8

	// Addr is the transport address (for link and liveness events).
	Addr string

	// Name is the device name, when known.
	Name string

	// Report carries the run tally (for run events).
	Report *schedule.Report

	// Error is set if the event reports a failure.
	Error error
}

// EventHandler handles controller events.
type EventHandler func(Event)

// DeviceStatus is a point-in-time view of one known device.
type DeviceStatus struct {
	// DeviceID is the motor controller id.
	DeviceID uint8

	// Name is the advertised device name.
	Name string

	// Firmware is the firmware version if available.
	Firmware string

	// Addr is the transport address of the device.
	Addr string

	// Linked indicates an open transport link.
	Linked bool

	// Online indicates recent traffic from the device.
	Online bool

	// LastSeen is when the device last produced traffic.
	LastSeen time.Time
}

// Snapshot is a point-in-time view of the whole fleet.
type Snapshot struct {
	// State is the controller lifecycle state.
	State ControllerState

	// Links is the number of open transport links.
	Links int

	// Online is the number of devices with recent traffic.
	Online int

	// Pending is the number of queued setpoints.
	Pending int

	// RunActive indicates a distribution run in flight.
	RunActive bool

	// Devices lists all known devices ordered by id.
	Devices []DeviceStatus
}
