package commands

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/focfleet/focfleet-go/pkg/log"
)

// readAll reopens a log file and returns every event in it.
func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open filtered file: %v", err)
	}
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		events = append(events, event)
	}
	return events
}

func TestFilterByDevice(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, DeviceID: 1, Category: log.CategoryResponse, Response: &log.ResponseEvent{Payload: "HEARTBEAT"}},
		{Timestamp: ts, DeviceID: 2, Category: log.CategoryResponse, Response: &log.ResponseEvent{Payload: "HEARTBEAT"}},
		{Timestamp: ts, DeviceID: 1, Category: log.CategoryResponse, Response: &log.ResponseEvent{Payload: "SINGLE:1.00"}},
	}
	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "filtered.flog")

	if err := RunFilter(path, FilterOptions{Output: out, DeviceID: 1}); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	got := readAll(t, out)
	if len(got) != 2 {
		t.Fatalf("expected 2 filtered events, got %d", len(got))
	}
	for _, e := range got {
		if e.DeviceID != 1 {
			t.Errorf("device %d leaked through filter", e.DeviceID)
		}
	}
}

func TestFilterByConnection(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "conn-a", Category: log.CategoryFrame},
		{Timestamp: ts, ConnectionID: "conn-b", Category: log.CategoryFrame},
	}
	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "filtered.flog")

	if err := RunFilter(path, FilterOptions{Output: out, ConnID: "conn-b"}); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	got := readAll(t, out)
	if len(got) != 1 || got[0].ConnectionID != "conn-b" {
		t.Fatalf("expected 1 conn-b event, got %+v", got)
	}
}

func TestFilterByTimeWindow(t *testing.T) {
	base := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: base, Category: log.CategoryFrame},
		{Timestamp: base.Add(time.Minute), Category: log.CategoryFrame},
		{Timestamp: base.Add(2 * time.Minute), Category: log.CategoryFrame},
	}
	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "filtered.flog")

	opts := FilterOptions{
		Output:    out,
		TimeStart: base.Add(30 * time.Second).Format(time.RFC3339),
		TimeEnd:   base.Add(90 * time.Second).Format(time.RFC3339),
	}
	if err := RunFilter(path, opts); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	got := readAll(t, out)
	if len(got) != 1 {
		t.Fatalf("expected 1 event inside window, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(base.Add(time.Minute)) {
		t.Errorf("wrong event selected: %s", got[0].Timestamp)
	}
}

func TestFilterByLayerAndCategory(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Layer: log.LayerWire, Category: log.CategoryResponse},
		{Timestamp: ts, Layer: log.LayerWire, Category: log.CategoryError, Error: &log.ErrorEventData{Message: "x"}},
		{Timestamp: ts, Layer: log.LayerFleet, Category: log.CategoryState},
	}
	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "filtered.flog")

	if err := RunFilter(path, FilterOptions{Output: out, Layer: "wire", Category: "error"}); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	got := readAll(t, out)
	if len(got) != 1 || got[0].Error == nil {
		t.Fatalf("expected the single wire error event, got %+v", got)
	}
}

func TestFilterRejectsBadTime(t *testing.T) {
	path := createTestLogFile(t, nil)
	out := filepath.Join(t.TempDir(), "filtered.flog")

	err := RunFilter(path, FilterOptions{Output: out, TimeStart: "yesterday"})
	if err == nil {
		t.Fatal("expected error for bad time format")
	}
}

func TestFilterRejectsBadLayer(t *testing.T) {
	path := createTestLogFile(t, nil)
	out := filepath.Join(t.TempDir(), "filtered.flog")

	err := RunFilter(path, FilterOptions{Output: out, Layer: "application"})
	if err == nil {
		t.Fatal("expected error for unknown layer")
	}
}
