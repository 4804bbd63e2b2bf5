package log

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func frameEvent(connID string) Event {
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    DirectionOut,
		Layer:        LayerTransport,
		Category:     CategoryFrame,
		Frame:        &FrameEvent{Size: 7, Data: []byte{0xAA, 0x55, 0x01}},
	}
}

func countEvents(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	decoder := NewDecoder(bytes.NewReader(data))
	count := 0
	for {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			break
		}
		count++
	}
	return count
}

func TestFileLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.flog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("log file was not created")
	}
}

func TestFileLoggerWritesCBOR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.flog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	event := frameEvent("conn-123")
	logger.Log(event)
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("log file is empty")
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if decoded.ConnectionID != event.ConnectionID {
		t.Errorf("ConnectionID: got %q, want %q", decoded.ConnectionID, event.ConnectionID)
	}
	if decoded.Frame == nil {
		t.Error("Frame is nil")
	} else if decoded.Frame.Size != event.Frame.Size {
		t.Errorf("Frame.Size: got %d, want %d", decoded.Frame.Size, event.Frame.Size)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.flog")

	logger1, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger1.Log(frameEvent("conn-1"))
	logger1.Close()

	logger2, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger second open failed: %v", err)
	}
	logger2.Log(frameEvent("conn-2"))
	logger2.Close()

	if got := countEvents(t, path); got != 2 {
		t.Fatalf("expected 2 events after reopen, got %d", got)
	}
}

func TestRotatingFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.flog")

	logger := NewRotatingFileLogger(path, 1, 2)
	logger.Log(frameEvent("conn-r"))
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := countEvents(t, path); got != 1 {
		t.Errorf("expected 1 event in rotating log, got %d", got)
	}
}

func TestFileLoggerThreadSafe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.flog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	const numGoroutines = 10
	const eventsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				logger.Log(frameEvent("conn-" + string(rune('A'+id))))
			}
		}(i)
	}
	wg.Wait()
	logger.Close()

	if got := countEvents(t, path); got != numGoroutines*eventsPerGoroutine {
		t.Errorf("event count: got %d, want %d", got, numGoroutines*eventsPerGoroutine)
	}
}

func TestFileLoggerClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.flog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(frameEvent("conn-123"))

	if err := logger.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	// Logging after close must not panic.
	logger.Log(frameEvent("conn-456"))

	if got := countEvents(t, path); got != 1 {
		t.Errorf("events after close were written: got %d, want 1", got)
	}
}
