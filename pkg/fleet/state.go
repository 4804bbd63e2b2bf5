package fleet

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// State contains the persisted fleet state. Known devices survive a
// controller restart so they can be re-linked without a fresh scan.
type State struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Devices lists the known motor controllers ordered by id.
	Devices []KnownDevice `json:"devices,omitempty"`
}

// KnownDevice is one remembered motor controller.
type KnownDevice struct {
	// DeviceID is the controller id carried in command packets.
	DeviceID uint8 `json:"device_id"`

	// Name is the advertised device name.
	Name string `json:"name,omitempty"`

	// Firmware is the firmware version string.
	Firmware string `json:"firmware,omitempty"`

	// Addr is the last known transport address.
	Addr string `json:"addr,omitempty"`

	// LastSeen is when the device last produced traffic.
	LastSeen time.Time `json:"last_seen,omitempty"`
}

// StateStore manages persistence of fleet state to a JSON file.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore creates a new fleet state store.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Save persists the fleet state to disk.
func (s *StateStore) Save(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// Load reads the fleet state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *StateStore) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &State{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}

	return state, nil
}

// Clear removes the state file.
func (s *StateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
