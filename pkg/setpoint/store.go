package setpoint

import (
	"sync"

	"github.com/focfleet/focfleet-go/pkg/wire"
)

// Store holds the per-device setpoint queues. Safe for concurrent use by
// the feed loader and the scheduler.
type Store struct {
	mu      sync.Mutex
	buffers map[uint8]*buffer
	maxID   uint8
}

type buffer struct {
	queue []float64
	last  float64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{buffers: make(map[uint8]*buffer)}
}

// Ensure grows the id space to cover ids 1..maxID. The space never
// shrinks; a smaller maxID leaves the store untouched.
func (s *Store) Ensure(maxID uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxID <= s.maxID {
		return
	}
	for id := s.maxID + 1; id != 0 && id <= maxID; id++ {
		if _, ok := s.buffers[id]; !ok {
			s.buffers[id] = &buffer{}
		}
	}
	s.maxID = maxID
}

// Load appends one value per pair to the matching device queue and returns
// the number of values accepted. Pairs with device id 0 are skipped.
func (s *Store) Load(pairs []wire.Setpoint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	loaded := 0
	for _, p := range pairs {
		if p.DeviceID == 0 {
			continue
		}
		b, ok := s.buffers[p.DeviceID]
		if !ok {
			b = &buffer{}
			s.buffers[p.DeviceID] = b
		}
		b.queue = append(b.queue, p.Value)
		b.last = p.Value
		if p.DeviceID > s.maxID {
			s.maxID = p.DeviceID
		}
		loaded++
	}
	return loaded
}

// Take returns the next value for a device. A queued value is popped and
// reported fresh; an empty queue repeats the device's last value. Devices
// never loaded yield zero.
func (s *Store) Take(id uint8) (value float64, fresh bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buffers[id]
	if !ok {
		return 0, false
	}
	if len(b.queue) == 0 {
		return b.last, false
	}
	value = b.queue[0]
	b.queue = b.queue[1:]
	b.last = value
	return value, true
}

// HasPending reports whether any device still has queued values.
func (s *Store) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.buffers {
		if len(b.queue) > 0 {
			return true
		}
	}
	return false
}

// PendingCount returns the total number of queued values across devices.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.buffers {
		n += len(b.queue)
	}
	return n
}

// MaxDeviceID returns the highest device id the store covers.
func (s *Store) MaxDeviceID() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxID
}

// QueueLengths returns the queue depth per device id, for status display.
func (s *Store) QueueLengths() map[uint8]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint8]int, len(s.buffers))
	for id, b := range s.buffers {
		out[id] = len(b.queue)
	}
	return out
}
