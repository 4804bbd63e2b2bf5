package wire

import (
	"fmt"
	"strings"
)

// DataType selects which actuation quantity a packet carries.
type DataType uint8

const (
	DataTypeAngle    DataType = 0x01
	DataTypeVelocity DataType = 0x02
	DataTypeCurrent  DataType = 0x03
)

// IsValid returns true for the three known data types.
func (d DataType) IsValid() bool {
	return d >= DataTypeAngle && d <= DataTypeCurrent
}

// String returns the data type name.
func (d DataType) String() string {
	switch d {
	case DataTypeAngle:
		return "angle"
	case DataTypeVelocity:
		return "velocity"
	case DataTypeCurrent:
		return "current"
	default:
		return fmt.Sprintf("unknown(0x%02X)", uint8(d))
	}
}

// ParseDataType maps a configuration string to a DataType. Unknown names
// are rejected at this boundary so the codec never sees them.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "angle":
		return DataTypeAngle, nil
	case "velocity":
		return DataTypeVelocity, nil
	case "current":
		return DataTypeCurrent, nil
	default:
		return 0, fmt.Errorf("%w: unknown data type %q", ErrInvalidArgument, s)
	}
}

// PacketMode identifies the frame layout of a command packet.
type PacketMode uint8

const (
	ModeSingle PacketMode = 0x01
	ModeSlice  PacketMode = 0x02
	ModeStruct PacketMode = 0x03
)

// String returns the mode name as firmware reports it.
func (m PacketMode) String() string {
	switch m {
	case ModeSingle:
		return "SINGLE"
	case ModeSlice:
		return "MULTI_SLICE"
	case ModeStruct:
		return "MULTI_STRUCT"
	default:
		return fmt.Sprintf("unknown(0x%02X)", uint8(m))
	}
}

// ParsePacketMode maps a configuration string to a broadcast packet mode.
// The numeric spellings match the frame type tags and appear in older
// targets files. Only the two multi-device layouts are selectable from
// configuration; SINGLE packets are built for direct sends.
func ParsePacketMode(s string) (PacketMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "slice", "multi_slice", "02", "0x02":
		return ModeSlice, nil
	case "struct", "multi_struct", "03", "0x03":
		return ModeStruct, nil
	default:
		return 0, fmt.Errorf("%w: unknown packet mode %q", ErrInvalidArgument, s)
	}
}
