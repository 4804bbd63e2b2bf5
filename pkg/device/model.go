package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/focfleet/focfleet-go/pkg/wire"
)

// ErrReservedID reports an attempt to model device id 0, which the wire
// format reserves.
var ErrReservedID = errors.New("device id 0 is reserved")

// State is a point-in-time snapshot of one simulated controller.
type State struct {
	Angle    float64
	Velocity float64
	Current  float64

	// Applied counts setpoints accepted since boot.
	Applied int
}

// Model reproduces the firmware's packet handling for one motor
// controller. All methods are safe for concurrent use.
type Model struct {
	id uint8

	mu    sync.Mutex
	state State
}

// NewModel creates a controller model.
func NewModel(id uint8) (*Model, error) {
	if id == 0 {
		return nil, ErrReservedID
	}
	return &Model{id: id}, nil
}

// ID returns the device id.
func (m *Model) ID() uint8 { return m.id }

// State returns a snapshot of the applied values.
func (m *Model) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Heartbeat returns the periodic liveness message.
func (m *Model) Heartbeat() []byte {
	return []byte(fmt.Sprintf("%d:HEARTBEAT", m.id))
}

// HandleMessage processes one inbound payload. The reply is nil with
// ok false when the firmware would stay silent, which is the case for
// every well-formed packet addressed to other devices.
func (m *Model) HandleMessage(data []byte) (reply []byte, ok bool) {
	if string(data) == wire.ProbeMessage {
		return m.Heartbeat(), true
	}

	p, err := wire.DecodePacket(data)
	if err != nil || !p.DataType.IsValid() {
		return []byte(fmt.Sprintf("%d:ERROR:UNKNOWN_PACKET", m.id)), true
	}

	switch p.Mode {
	case wire.ModeSingle:
		if p.DeviceID != m.id {
			return nil, false
		}
		m.apply(p.DataType, p.Value)
		return m.ack("SINGLE", p.Value), true

	case wire.ModeSlice:
		offset := int(m.id) - int(p.StartID)
		if offset < 0 || offset >= len(p.Values) {
			return nil, false
		}
		v := p.Values[offset]
		m.apply(p.DataType, v)
		return m.ack("MULTI", v), true

	case wire.ModeStruct:
		for _, sp := range p.Pairs {
			if sp.DeviceID == m.id {
				m.apply(p.DataType, sp.Value)
				return m.ack("MULTI_STRUCT", sp.Value), true
			}
		}
		return nil, false
	}
	return nil, false
}

func (m *Model) ack(kind string, v float64) []byte {
	return []byte(fmt.Sprintf("%d:%s:%.2f", m.id, kind, v))
}

func (m *Model) apply(dt wire.DataType, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch dt {
	case wire.DataTypeAngle:
		m.state.Angle = v
	case wire.DataTypeVelocity:
		m.state.Velocity = v
	case wire.DataTypeCurrent:
		m.state.Current = v
	}
	m.state.Applied++
}
