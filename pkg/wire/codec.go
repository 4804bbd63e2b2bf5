package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Frame magic prefix shared by every command packet.
const (
	magic0 = 0xAA
	magic1 = 0x55
)

// valueScale is the fixed-point multiplier: one decimal of precision.
const valueScale = 10

var (
	// ErrValueOutOfRange reports a setpoint whose scaled form does not
	// fit a signed 16-bit integer.
	ErrValueOutOfRange = errors.New("scaled value out of int16 range")

	// ErrInvalidArgument reports packet parameters that cannot produce a
	// well-formed frame: zero ids, oversized counts, id ranges past 255.
	ErrInvalidArgument = errors.New("invalid packet argument")
)

// Setpoint pairs a device id with a physical target value.
type Setpoint struct {
	DeviceID uint8
	Value    float64
}

// scaleValue converts a physical value to its wire form, rounding to the
// nearest tenth.
func scaleValue(v float64) (int16, error) {
	scaled := math.Round(v * valueScale)
	if math.IsNaN(scaled) || scaled > math.MaxInt16 || scaled < math.MinInt16 {
		return 0, fmt.Errorf("%w: %g", ErrValueOutOfRange, v)
	}
	return int16(scaled), nil
}

// unscaleValue converts a wire value back to the physical quantity.
func unscaleValue(s int16) float64 {
	return float64(s) / valueScale
}

// EncodeSingle builds a SINGLE packet addressing one device.
func EncodeSingle(deviceID uint8, value float64, dt DataType) ([]byte, error) {
	if deviceID == 0 {
		return nil, fmt.Errorf("%w: device id 0", ErrInvalidArgument)
	}
	s, err := scaleValue(value)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 7)
	buf = append(buf, magic0, magic1, byte(ModeSingle), byte(dt), deviceID)
	return binary.BigEndian.AppendUint16(buf, uint16(s)), nil
}

// EncodeSlice builds a MULTI_SLICE packet carrying one value per device for
// the contiguous id range starting at startID.
func EncodeSlice(startID uint8, values []float64, dt DataType) ([]byte, error) {
	if startID == 0 {
		return nil, fmt.Errorf("%w: start id 0", ErrInvalidArgument)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no values", ErrInvalidArgument)
	}
	if len(values) > math.MaxUint8 {
		return nil, fmt.Errorf("%w: %d values exceed one packet", ErrInvalidArgument, len(values))
	}
	if last := int(startID) + len(values) - 1; last > math.MaxUint8 {
		return nil, fmt.Errorf("%w: id range %d..%d exceeds 255", ErrInvalidArgument, startID, last)
	}
	buf := make([]byte, 0, 6+2*len(values))
	buf = append(buf, magic0, magic1, byte(ModeSlice), byte(dt), startID, byte(len(values)))
	for _, v := range values {
		s, err := scaleValue(v)
		if err != nil {
			return nil, err
		}
		buf = binary.BigEndian.AppendUint16(buf, uint16(s))
	}
	return buf, nil
}

// EncodeStruct builds a MULTI_STRUCT packet carrying explicit id/value
// pairs, one triplet per device.
func EncodeStruct(pairs []Setpoint, dt DataType) ([]byte, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: no pairs", ErrInvalidArgument)
	}
	if len(pairs) > math.MaxUint8 {
		return nil, fmt.Errorf("%w: %d pairs exceed one packet", ErrInvalidArgument, len(pairs))
	}
	buf := make([]byte, 0, 5+3*len(pairs))
	buf = append(buf, magic0, magic1, byte(ModeStruct), byte(dt), byte(len(pairs)))
	for _, p := range pairs {
		if p.DeviceID == 0 {
			return nil, fmt.Errorf("%w: device id 0", ErrInvalidArgument)
		}
		s, err := scaleValue(p.Value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, p.DeviceID)
		buf = binary.BigEndian.AppendUint16(buf, uint16(s))
	}
	return buf, nil
}
