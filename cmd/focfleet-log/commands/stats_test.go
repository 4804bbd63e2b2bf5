package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/focfleet/focfleet-go/pkg/log"
	"github.com/focfleet/focfleet-go/pkg/wire"
)

func TestStatsCountsByLayer(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Layer: log.LayerTransport, Category: log.CategoryFrame},
		{Timestamp: ts, Layer: log.LayerTransport, Category: log.CategoryFrame},
		{Timestamp: ts, Layer: log.LayerWire, Category: log.CategoryResponse},
		{Timestamp: ts, Layer: log.LayerFleet, Category: log.CategoryState},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "TRANSPORT:") {
		t.Error("expected TRANSPORT layer in output")
	}
	if !strings.Contains(output, "WIRE:") {
		t.Error("expected WIRE layer in output")
	}
	if !strings.Contains(output, "FLEET:") {
		t.Error("expected FLEET layer in output")
	}
}

func TestStatsCountsByCategory(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Category: log.CategoryFrame},
		{Timestamp: ts, Category: log.CategoryBroadcast, Broadcast: &log.BroadcastEvent{Fresh: 3}},
		{Timestamp: ts, Category: log.CategoryResponse},
		{Timestamp: ts, Category: log.CategoryError, Error: &log.ErrorEventData{Message: "test"}},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"FRAME:", "BROADCAST:", "RESPONSE:", "ERROR:"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s category in output", want)
		}
	}
	if !strings.Contains(output, "Fresh Setpoints: 3") {
		t.Errorf("expected fresh setpoint total, got:\n%s", output)
	}
}

func TestStatsTotalEvents(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Category: log.CategoryFrame},
		{Timestamp: ts, Category: log.CategoryFrame},
		{Timestamp: ts, Category: log.CategoryFrame},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	if !strings.Contains(buf.String(), "Total Events: 3") {
		t.Errorf("expected 3 total events in output, got:\n%s", buf.String())
	}
}

func TestStatsCountsConnections(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "conn-aaaa-bbbb", Category: log.CategoryFrame, RemoteAddr: "192.168.4.21:7632"},
		{Timestamp: ts.Add(time.Second), ConnectionID: "conn-aaaa-bbbb", Category: log.CategoryResponse, DeviceID: 7},
		{Timestamp: ts, ConnectionID: "conn-cccc-dddd", Category: log.CategoryFrame},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Connections: 2") {
		t.Errorf("expected 2 connections in output, got:\n%s", output)
	}
	if !strings.Contains(output, "[conn-aaa") {
		t.Error("expected conn-aaaa connection details")
	}
	if !strings.Contains(output, "Device: 7") {
		t.Errorf("expected device attribution on connection, got:\n%s", output)
	}
	if !strings.Contains(output, "Remote: 192.168.4.21:7632") {
		t.Errorf("expected remote address on connection, got:\n%s", output)
	}
}

func TestStatsCountsDevices(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, DeviceID: 1, Category: log.CategoryResponse, Response: &log.ResponseEvent{Payload: "HEARTBEAT"}},
		{Timestamp: ts, DeviceID: 1, Category: log.CategoryResponse, Response: &log.ResponseEvent{Payload: "SINGLE:1.00"}},
		{Timestamp: ts, DeviceID: 9, Category: log.CategoryResponse, Response: &log.ResponseEvent{Payload: "HEARTBEAT"}},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Devices: 2") {
		t.Errorf("expected 2 devices in output, got:\n%s", output)
	}
	if !strings.Contains(output, "2 events, 2 responses") {
		t.Errorf("expected device 1 tallies, got:\n%s", output)
	}
}

func TestStatsTimeRange(t *testing.T) {
	start := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 5, 11, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: start, Category: log.CategoryFrame},
		{Timestamp: end, Category: log.CategoryFrame},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Duration:") {
		t.Error("expected Duration in output")
	}
	if !strings.Contains(output, "1h0m0s") {
		t.Errorf("expected 1h0m0s duration in output, got:\n%s", output)
	}
}

func TestStatsErrorCount(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Category: log.CategoryFrame},
		{Timestamp: ts, Category: log.CategoryError, Error: &log.ErrorEventData{Message: "error 1"}},
		{Timestamp: ts, Category: log.CategoryError, Error: &log.ErrorEventData{Message: "error 2"}},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	if !strings.Contains(buf.String(), "Errors: 2") {
		t.Errorf("expected 2 errors in output, got:\n%s", buf.String())
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("expected zero events, got:\n%s", buf.String())
	}
}

func TestStatsFreshAcrossBroadcasts(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Category: log.CategoryBroadcast, Broadcast: &log.BroadcastEvent{Mode: wire.ModeSlice, Fresh: 5}},
		{Timestamp: ts, Category: log.CategoryBroadcast, Broadcast: &log.BroadcastEvent{Mode: wire.ModeSlice, Fresh: 2}},
	}

	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	if !strings.Contains(buf.String(), "Fresh Setpoints: 7") {
		t.Errorf("expected summed fresh count, got:\n%s", buf.String())
	}
}
