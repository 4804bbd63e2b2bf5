package feed

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/focfleet/focfleet-go/pkg/wire"
)

// DefaultGroupSize applies when a targets file carries no group_size
// directive.
const DefaultGroupSize = 5

// ErrInvalidDirective reports a directive whose value cannot be used.
var ErrInvalidDirective = errors.New("invalid directive")

// Targets is the parsed content of one targets file: setpoint rows in
// file order plus the directives tuning the run that will consume them.
type Targets struct {
	// Setpoints holds one entry per device id, in first-appearance
	// order. A later row for the same id overwrites the value in
	// place, so each file is a single snapshot per device.
	Setpoints []wire.Setpoint

	// GroupSize is the number of consecutive ids per broadcast group.
	GroupSize int

	// PerDeviceHz is the target refresh rate per device. Zero means
	// unpaced (drain as fast as the transport allows).
	PerDeviceHz float64

	// MaxRounds caps the number of scheduler rounds. Zero means
	// uncapped.
	MaxRounds int

	// DataType selects the actuation quantity for the run.
	DataType wire.DataType

	// Mode selects the multi-device frame layout.
	Mode wire.PacketMode

	// SkippedRows counts rows that looked like setpoints but carried
	// an unparsable value.
	SkippedRows int
}

// MaxDeviceID returns the highest device id among the setpoint rows.
func (t *Targets) MaxDeviceID() uint8 {
	var max uint8
	for _, sp := range t.Setpoints {
		if sp.DeviceID > max {
			max = sp.DeviceID
		}
	}
	return max
}

// Empty reports whether the file carried no usable setpoint rows.
func (t *Targets) Empty() bool {
	return len(t.Setpoints) == 0
}

// ParseFile reads and parses a targets file. Files with a .csv
// extension go through the CSV reader; everything else is parsed line
// by line.
func ParseFile(path string) (*Targets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}
	return parseBytes(path, data)
}

func parseBytes(path string, data []byte) (*Targets, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ParseCSV(bytes.NewReader(data))
	}
	return ParseText(bytes.NewReader(data))
}

// ParseCSV parses targets in CSV form.
func ParseCSV(r io.Reader) (*Targets, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	b := newBuilder()
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse targets csv: %w", err)
		}
		if len(row) < 2 {
			continue
		}
		if err := b.row(strings.TrimSpace(row[0]), strings.TrimSpace(row[1])); err != nil {
			return nil, err
		}
	}
	return b.targets, nil
}

// ParseText parses targets in plain-text form. Each line splits on
// comma when one is present, otherwise on whitespace.
func ParseText(r io.Reader) (*Targets, error) {
	b := newBuilder()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var parts []string
		if strings.Contains(line, ",") {
			parts = strings.Split(line, ",")
		} else {
			parts = strings.Fields(line)
		}
		if len(parts) < 2 {
			continue
		}
		if err := b.row(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read targets: %w", err)
	}
	return b.targets, nil
}

// builder accumulates rows into a Targets, keeping one slot per device
// id so later rows overwrite earlier values in place.
type builder struct {
	targets *Targets
	index   map[uint8]int
}

func newBuilder() *builder {
	return &builder{
		targets: &Targets{
			GroupSize: DefaultGroupSize,
			DataType:  wire.DataTypeAngle,
			Mode:      wire.ModeSlice,
		},
		index: make(map[uint8]int),
	}
}

func (b *builder) row(key, value string) error {
	if isAllDigits(key) {
		b.setpointRow(key, value)
		return nil
	}
	return b.directive(strings.ToLower(key), value)
}

func (b *builder) setpointRow(key, value string) {
	id, err := strconv.ParseUint(key, 10, 8)
	if err != nil {
		b.targets.SkippedRows++
		return
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		b.targets.SkippedRows++
		return
	}

	deviceID := uint8(id)
	if i, ok := b.index[deviceID]; ok {
		b.targets.Setpoints[i].Value = v
		return
	}
	b.index[deviceID] = len(b.targets.Setpoints)
	b.targets.Setpoints = append(b.targets.Setpoints, wire.Setpoint{DeviceID: deviceID, Value: v})
}

func (b *builder) directive(key, value string) error {
	switch key {
	case "group_size":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("%w: group_size %q", ErrInvalidDirective, value)
		}
		b.targets.GroupSize = n

	case "per_device_hz":
		hz, err := strconv.ParseFloat(value, 64)
		if err != nil || hz < 0 {
			return fmt.Errorf("%w: per_device_hz %q", ErrInvalidDirective, value)
		}
		b.targets.PerDeviceHz = hz

	case "max_rounds":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: max_rounds %q", ErrInvalidDirective, value)
		}
		b.targets.MaxRounds = n

	case "data_type":
		dt, err := wire.ParseDataType(value)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDirective, err)
		}
		b.targets.DataType = dt

	case "packet_mode", "packet_type":
		mode, err := wire.ParsePacketMode(value)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDirective, err)
		}
		b.targets.Mode = mode
	}
	// Unrecognized keys are ignored so files can carry annotations.
	return nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
