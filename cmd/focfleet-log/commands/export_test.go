package commands

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/focfleet/focfleet-go/pkg/log"
	"github.com/focfleet/focfleet-go/pkg/wire"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.flog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func sampleEvents() []log.Event {
	ts := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	return []log.Event{
		{
			Timestamp:    ts,
			ConnectionID: "conn-aaaa",
			Direction:    log.DirectionOut,
			Layer:        log.LayerWire,
			Category:     log.CategoryBroadcast,
			Broadcast: &log.BroadcastEvent{
				Mode:       wire.ModeSlice,
				DataType:   wire.DataTypeAngle,
				GroupStart: 1,
				GroupEnd:   5,
				Fresh:      5,
				Size:       16,
				Targets:    3,
			},
		},
		{
			Timestamp:    ts.Add(20 * time.Millisecond),
			ConnectionID: "conn-aaaa",
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryResponse,
			RemoteAddr:   "192.168.4.21:7632",
			DeviceID:     3,
			Response:     &log.ResponseEvent{Payload: "MULTI:2.50"},
		},
		{
			Timestamp:    ts.Add(40 * time.Millisecond),
			ConnectionID: "conn-aaaa",
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryError,
			Error:        &log.ErrorEventData{Layer: log.LayerWire, Message: "no id separator"},
		},
	}
}

func TestExportToJSONL(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	out := filepath.Join(t.TempDir(), "out.jsonl")
	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 JSONL lines, got %d", len(lines))
	}

	// Every line must be valid JSON
	for i, line := range lines {
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
		}
	}

	if !strings.Contains(lines[1], "MULTI:2.50") {
		t.Errorf("expected response payload in JSONL, got: %s", lines[1])
	}
}

func TestExportToCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	out := filepath.Join(t.TempDir(), "out.csv")
	if err := RunExport(path, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}

	if len(rows) != 4 { // header + 3 events
		t.Fatalf("expected 4 CSV rows, got %d", len(rows))
	}

	if rows[0][0] != "timestamp" {
		t.Errorf("expected timestamp header, got %s", rows[0][0])
	}

	// Broadcast row
	if rows[1][7] != "broadcast" {
		t.Errorf("expected broadcast type, got %s", rows[1][7])
	}
	if !strings.Contains(rows[1][8], "MULTI_SLICE") {
		t.Errorf("expected mode in detail, got %s", rows[1][8])
	}

	// Response row carries the device id and payload
	if rows[2][5] != "3" {
		t.Errorf("expected device_id 3, got %q", rows[2][5])
	}
	if rows[2][8] != "MULTI:2.50" {
		t.Errorf("expected payload detail, got %q", rows[2][8])
	}
}

func TestExportToStdoutDefault(t *testing.T) {
	// Empty output path must not fail (writes to stdout).
	path := createTestLogFile(t, nil)
	if err := RunExport(path, "jsonl", ""); err != nil {
		t.Fatalf("RunExport to stdout failed: %v", err)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	err := RunExport(path, "xml", "")
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	if !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExportMissingFile(t *testing.T) {
	err := RunExport(filepath.Join(t.TempDir(), "nope.flog"), "jsonl", "")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
