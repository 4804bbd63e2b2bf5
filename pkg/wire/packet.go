package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrTruncatedPacket reports a frame shorter than its layout requires.
	ErrTruncatedPacket = errors.New("truncated packet")

	// ErrBadMagic reports a frame that does not start with AA 55.
	ErrBadMagic = errors.New("bad packet magic")

	// ErrUnknownMode reports a mode byte outside the three known layouts.
	// Firmware answers these with an ERROR:UNKNOWN_PACKET response.
	ErrUnknownMode = errors.New("unknown packet mode")
)

// Packet is a decoded command frame. The fields after DataType are
// populated according to Mode.
type Packet struct {
	Mode     PacketMode
	DataType DataType

	// SINGLE
	DeviceID uint8
	Value    float64

	// MULTI_SLICE
	StartID uint8
	Values  []float64

	// MULTI_STRUCT
	Pairs []Setpoint
}

// DecodePacket parses a command frame. The device side uses this to
// interpret broadcasts; the controller side only encodes.
func DecodePacket(data []byte) (*Packet, error) {
	if len(data) < 4 {
		return nil, ErrTruncatedPacket
	}
	if data[0] != magic0 || data[1] != magic1 {
		return nil, ErrBadMagic
	}
	p := &Packet{Mode: PacketMode(data[2]), DataType: DataType(data[3])}
	switch p.Mode {
	case ModeSingle:
		if len(data) < 7 {
			return nil, ErrTruncatedPacket
		}
		p.DeviceID = data[4]
		p.Value = unscaleValue(int16(binary.BigEndian.Uint16(data[5:7])))

	case ModeSlice:
		if len(data) < 6 {
			return nil, ErrTruncatedPacket
		}
		p.StartID = data[4]
		count := int(data[5])
		if len(data) < 6+2*count {
			return nil, ErrTruncatedPacket
		}
		p.Values = make([]float64, count)
		for i := range p.Values {
			p.Values[i] = unscaleValue(int16(binary.BigEndian.Uint16(data[6+2*i:])))
		}

	case ModeStruct:
		if len(data) < 5 {
			return nil, ErrTruncatedPacket
		}
		count := int(data[4])
		if len(data) < 5+3*count {
			return nil, ErrTruncatedPacket
		}
		p.Pairs = make([]Setpoint, count)
		for i := range p.Pairs {
			off := 5 + 3*i
			p.Pairs[i] = Setpoint{
				DeviceID: data[off],
				Value:    unscaleValue(int16(binary.BigEndian.Uint16(data[off+1:]))),
			}
		}

	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownMode, data[2])
	}
	return p, nil
}

// Setpoints flattens the packet into explicit id/value pairs regardless of
// layout. Slice ids follow firmware arithmetic: start id plus offset.
func (p *Packet) Setpoints() []Setpoint {
	switch p.Mode {
	case ModeSingle:
		return []Setpoint{{DeviceID: p.DeviceID, Value: p.Value}}
	case ModeSlice:
		out := make([]Setpoint, len(p.Values))
		for i, v := range p.Values {
			out[i] = Setpoint{DeviceID: p.StartID + uint8(i), Value: v}
		}
		return out
	case ModeStruct:
		return p.Pairs
	default:
		return nil
	}
}
