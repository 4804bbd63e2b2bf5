package wire

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestScaleValueRoundTrip(t *testing.T) {
	tests := []float64{0, 1.0, -1.0, 1.5, -2.0, 0.1, -0.1, 3276.7, -3276.8, 12.34, -99.99}

	for _, v := range tests {
		s, err := scaleValue(v)
		if err != nil {
			t.Fatalf("scaleValue(%g) failed: %v", v, err)
		}
		got := unscaleValue(s)
		want := math.Round(v*10) / 10
		if got != want {
			t.Errorf("round trip of %g: got %g, want %g", v, got, want)
		}
	}
}

func TestScaleValueRounds(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{1.04, 10},
		{1.05, 11},
		{-1.05, -11},
		{0.04, 0},
		{2.06, 21},
	}

	for _, tt := range tests {
		got, err := scaleValue(tt.in)
		if err != nil {
			t.Fatalf("scaleValue(%g) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("scaleValue(%g) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestScaleValueRange(t *testing.T) {
	bad := []float64{3276.8, -3276.9, 100000, -100000, math.NaN(), math.Inf(1), math.Inf(-1)}
	for _, v := range bad {
		if _, err := scaleValue(v); !errors.Is(err, ErrValueOutOfRange) {
			t.Errorf("scaleValue(%g): want ErrValueOutOfRange, got %v", v, err)
		}
	}

	// Edge of range still encodes.
	for _, v := range []float64{3276.7, -3276.8} {
		if _, err := scaleValue(v); err != nil {
			t.Errorf("scaleValue(%g) failed: %v", v, err)
		}
	}
}

func TestEncodeSingle(t *testing.T) {
	data, err := EncodeSingle(7, 1.5, DataTypeAngle)
	if err != nil {
		t.Fatalf("EncodeSingle failed: %v", err)
	}
	want := []byte{0xAA, 0x55, 0x01, 0x01, 0x07, 0x00, 0x0F}
	if !bytes.Equal(data, want) {
		t.Errorf("EncodeSingle: got % X, want % X", data, want)
	}

	// Negative values use two's complement.
	data, err = EncodeSingle(5, -2.0, DataTypeVelocity)
	if err != nil {
		t.Fatalf("EncodeSingle failed: %v", err)
	}
	want = []byte{0xAA, 0x55, 0x01, 0x02, 0x05, 0xFF, 0xEC}
	if !bytes.Equal(data, want) {
		t.Errorf("EncodeSingle: got % X, want % X", data, want)
	}

	if _, err := EncodeSingle(0, 1.0, DataTypeAngle); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("device id 0: want ErrInvalidArgument, got %v", err)
	}
	if _, err := EncodeSingle(1, 99999, DataTypeAngle); !errors.Is(err, ErrValueOutOfRange) {
		t.Errorf("huge value: want ErrValueOutOfRange, got %v", err)
	}
}

func TestEncodeSliceGolden(t *testing.T) {
	data, err := EncodeSlice(3, []float64{1.0, 2.0, 3.0}, DataTypeAngle)
	if err != nil {
		t.Fatalf("EncodeSlice failed: %v", err)
	}
	want := []byte{0xAA, 0x55, 0x02, 0x01, 0x03, 0x03, 0x00, 0x0A, 0x00, 0x14, 0x00, 0x1E}
	if !bytes.Equal(data, want) {
		t.Errorf("EncodeSlice: got % X, want % X", data, want)
	}
}

func TestEncodeStructGolden(t *testing.T) {
	pairs := []Setpoint{{DeviceID: 1, Value: 1.5}, {DeviceID: 5, Value: -2.0}}
	data, err := EncodeStruct(pairs, DataTypeVelocity)
	if err != nil {
		t.Fatalf("EncodeStruct failed: %v", err)
	}
	want := []byte{0xAA, 0x55, 0x03, 0x02, 0x02, 0x01, 0x00, 0x0F, 0x05, 0xFF, 0xEC}
	if !bytes.Equal(data, want) {
		t.Errorf("EncodeStruct: got % X, want % X", data, want)
	}
}

func TestEncodeSliceErrors(t *testing.T) {
	tests := []struct {
		name    string
		startID uint8
		values  []float64
	}{
		{"start id 0", 0, []float64{1}},
		{"empty", 3, nil},
		{"too many values", 1, make([]float64, 256)},
		{"range past 255", 200, make([]float64, 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeSlice(tt.startID, tt.values, DataTypeAngle); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("want ErrInvalidArgument, got %v", err)
			}
		})
	}

	if _, err := EncodeSlice(1, []float64{1, math.NaN()}, DataTypeAngle); !errors.Is(err, ErrValueOutOfRange) {
		t.Errorf("NaN value: want ErrValueOutOfRange, got %v", err)
	}
}

func TestEncodeStructErrors(t *testing.T) {
	if _, err := EncodeStruct(nil, DataTypeAngle); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty pairs: want ErrInvalidArgument, got %v", err)
	}
	if _, err := EncodeStruct(make([]Setpoint, 256), DataTypeAngle); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("too many pairs: want ErrInvalidArgument, got %v", err)
	}
	if _, err := EncodeStruct([]Setpoint{{DeviceID: 0, Value: 1}}, DataTypeAngle); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("pair with id 0: want ErrInvalidArgument, got %v", err)
	}
}

func TestDecodePacketSingle(t *testing.T) {
	data, err := EncodeSingle(9, -12.3, DataTypeCurrent)
	if err != nil {
		t.Fatalf("EncodeSingle failed: %v", err)
	}
	p, err := DecodePacket(data)
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	if p.Mode != ModeSingle || p.DataType != DataTypeCurrent {
		t.Errorf("header mismatch: mode=%v dt=%v", p.Mode, p.DataType)
	}
	if p.DeviceID != 9 || p.Value != -12.3 {
		t.Errorf("got id=%d value=%g, want id=9 value=-12.3", p.DeviceID, p.Value)
	}
}

func TestDecodePacketSlice(t *testing.T) {
	data, err := EncodeSlice(4, []float64{0.5, -0.5}, DataTypeAngle)
	if err != nil {
		t.Fatalf("EncodeSlice failed: %v", err)
	}
	p, err := DecodePacket(data)
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	sps := p.Setpoints()
	want := []Setpoint{{DeviceID: 4, Value: 0.5}, {DeviceID: 5, Value: -0.5}}
	if len(sps) != len(want) {
		t.Fatalf("got %d setpoints, want %d", len(sps), len(want))
	}
	for i := range want {
		if sps[i] != want[i] {
			t.Errorf("setpoint %d: got %+v, want %+v", i, sps[i], want[i])
		}
	}
}

func TestDecodePacketStruct(t *testing.T) {
	pairs := []Setpoint{{DeviceID: 2, Value: 10.0}, {DeviceID: 250, Value: -1.1}}
	data, err := EncodeStruct(pairs, DataTypeVelocity)
	if err != nil {
		t.Fatalf("EncodeStruct failed: %v", err)
	}
	p, err := DecodePacket(data)
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	sps := p.Setpoints()
	if len(sps) != 2 || sps[0] != pairs[0] || sps[1] != pairs[1] {
		t.Errorf("got %+v, want %+v", sps, pairs)
	}
}

func TestDecodePacketErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncatedPacket},
		{"too short", []byte{0xAA, 0x55, 0x01}, ErrTruncatedPacket},
		{"bad magic", []byte{0xAB, 0x55, 0x01, 0x01, 0x01, 0x00, 0x0A}, ErrBadMagic},
		{"unknown mode", []byte{0xAA, 0x55, 0x09, 0x01, 0x01, 0x00, 0x0A}, ErrUnknownMode},
		{"single truncated", []byte{0xAA, 0x55, 0x01, 0x01, 0x01, 0x00}, ErrTruncatedPacket},
		{"slice count short", []byte{0xAA, 0x55, 0x02, 0x01, 0x01, 0x03, 0x00, 0x0A}, ErrTruncatedPacket},
		{"struct count short", []byte{0xAA, 0x55, 0x03, 0x01, 0x02, 0x01, 0x00, 0x0A}, ErrTruncatedPacket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePacket(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("want %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		id      int
		payload string
	}{
		{"single ack", "7:SINGLE:1.50", 7, "SINGLE:1.50"},
		{"heartbeat", "12:HEARTBEAT", 12, "HEARTBEAT"},
		{"error report", "3:ERROR:UNKNOWN_PACKET", 3, "ERROR:UNKNOWN_PACKET"},
		{"trailing newline", "5:MULTI:2.00\n", 5, "MULTI:2.00"},
		{"empty payload", "9:", 9, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseResponse([]byte(tt.in))
			if err != nil {
				t.Fatalf("ParseResponse(%q) failed: %v", tt.in, err)
			}
			if r.DeviceID != tt.id || r.Payload != tt.payload {
				t.Errorf("got (%d, %q), want (%d, %q)", r.DeviceID, r.Payload, tt.id, tt.payload)
			}
		})
	}
}

func TestParseResponseMalformed(t *testing.T) {
	bad := []string{"HEARTBEAT", "abc:1", ":payload", "0:ok", "-1:ok", "1.5:ok", ""}
	for _, in := range bad {
		if _, err := ParseResponse([]byte(in)); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("ParseResponse(%q): want ErrMalformedResponse, got %v", in, err)
		}
	}

	if _, err := ParseResponse([]byte{0x37, 0x3A, 0xFF, 0xFE}); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("invalid UTF-8: want ErrMalformedResponse, got %v", err)
	}
}

func TestResponseKind(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{"SINGLE:1.50", "single"},
		{"MULTI:2.00", "multi"},
		{"MULTI_STRUCT:-0.30", "multi_struct"},
		{"HEARTBEAT", "heartbeat"},
		{"ERROR:UNKNOWN_PACKET", "error"},
		{"BOOT:v1.4", "other"},
		{"", "other"},
	}
	for _, tt := range tests {
		r := Response{DeviceID: 1, Payload: tt.payload}
		if got := r.Kind(); got != tt.want {
			t.Errorf("Kind(%q) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

func TestParseDataType(t *testing.T) {
	tests := []struct {
		in   string
		want DataType
	}{
		{"angle", DataTypeAngle},
		{"velocity", DataTypeVelocity},
		{"current", DataTypeCurrent},
		{" Angle ", DataTypeAngle},
	}
	for _, tt := range tests {
		got, err := ParseDataType(tt.in)
		if err != nil {
			t.Fatalf("ParseDataType(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseDataType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseDataType("torque"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("unknown name: want ErrInvalidArgument, got %v", err)
	}
}

func TestParsePacketMode(t *testing.T) {
	for _, s := range []string{"slice", "multi_slice", "SLICE", "02", "0x02"} {
		m, err := ParsePacketMode(s)
		if err != nil || m != ModeSlice {
			t.Errorf("ParsePacketMode(%q) = %v, %v; want ModeSlice", s, m, err)
		}
	}
	for _, s := range []string{"struct", "multi_struct", "03", "0x03"} {
		m, err := ParsePacketMode(s)
		if err != nil || m != ModeStruct {
			t.Errorf("ParsePacketMode(%q) = %v, %v; want ModeStruct", s, m, err)
		}
	}
	if _, err := ParsePacketMode("single"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("single from config: want ErrInvalidArgument, got %v", err)
	}
}
