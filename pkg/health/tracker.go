package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/focfleet/focfleet-go/pkg/clock"
)

// Liveness constants.
const (
	// DefaultCheckInterval is the default sweep interval.
	DefaultCheckInterval = 5 * time.Second

	// DefaultOfflineThreshold is the default silence duration after which
	// a device is considered offline.
	DefaultOfflineThreshold = 30 * time.Second
)

// Config configures liveness tracking.
type Config struct {
	// CheckInterval is the interval between offline sweeps.
	CheckInterval time.Duration

	// OfflineThreshold is the silence duration that retires a device.
	OfflineThreshold time.Duration
}

// DefaultConfig returns the default liveness configuration.
func DefaultConfig() Config {
	return Config{
		CheckInterval:    DefaultCheckInterval,
		OfflineThreshold: DefaultOfflineThreshold,
	}
}

// DeviceHealth is a point-in-time liveness snapshot for one device.
type DeviceHealth struct {
	Addr         string
	Name         string
	Online       bool
	LastActivity time.Time
}

// Tracker monitors device liveness. Activity is reported by the intake
// path via Touch; a background sweep flips silent devices offline.
type Tracker struct {
	config Config
	clock  clock.Clock

	// Callbacks, invoked outside the tracker lock.
	onOffline func(DeviceHealth)
	onOnline  func(DeviceHealth)

	mu      sync.Mutex
	devices map[string]*deviceState
	running bool
	stopCh  chan struct{}
}

type deviceState struct {
	name         string
	online       bool
	lastActivity time.Time
}

// NewTracker creates a liveness tracker using the given time source.
func NewTracker(config Config, clk clock.Clock) *Tracker {
	if config.CheckInterval == 0 {
		config.CheckInterval = DefaultCheckInterval
	}
	if config.OfflineThreshold == 0 {
		config.OfflineThreshold = DefaultOfflineThreshold
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Tracker{
		config:  config,
		clock:   clk,
		devices: make(map[string]*deviceState),
		stopCh:  make(chan struct{}),
	}
}

// SetOfflineCallback sets the callback invoked when a device goes offline.
func (t *Tracker) SetOfflineCallback(cb func(DeviceHealth)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOffline = cb
}

// SetOnlineCallback sets the callback invoked when a device comes online
// after being offline.
func (t *Tracker) SetOnlineCallback(cb func(DeviceHealth)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOnline = cb
}

// MarkConnected registers a device as online with fresh activity.
func (t *Tracker) MarkConnected(addr, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.devices[addr] = &deviceState{
		name:         name,
		online:       true,
		lastActivity: t.clock.Now(),
	}
}

// Forget removes a device from tracking, typically after its connection
// is released for good.
func (t *Tracker) Forget(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.devices, addr)
}

// Touch records activity for a device. A device that was offline comes
// back online and the online callback fires.
func (t *Tracker) Touch(addr string) {
	t.mu.Lock()
	d, ok := t.devices[addr]
	if !ok {
		d = &deviceState{}
		t.devices[addr] = d
	}
	d.lastActivity = t.clock.Now()
	revived := !d.online
	d.online = true
	cb := t.onOnline
	snapshot := DeviceHealth{Addr: addr, Name: d.name, Online: true, LastActivity: d.lastActivity}
	t.mu.Unlock()

	if revived && cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns the liveness state of all tracked devices, ordered by
// name then address for stable display.
func (t *Tracker) Snapshot() []DeviceHealth {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]DeviceHealth, 0, len(t.devices))
	for addr, d := range t.devices {
		out = append(out, DeviceHealth{
			Addr:         addr,
			Name:         d.name,
			Online:       d.online,
			LastActivity: d.lastActivity,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Addr < out[j].Addr
	})
	return out
}

// OnlineCount returns how many tracked devices are currently online.
func (t *Tracker) OnlineCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, d := range t.devices {
		if d.online {
			n++
		}
	}
	return n
}

// Start begins the periodic offline sweep. The ticker is armed before
// Start returns.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.stopCh = make(chan struct{})
	ticker := t.clock.NewTicker(t.config.CheckInterval)
	t.mu.Unlock()

	go t.loop(ctx, ticker)
}

// Stop stops the sweep loop.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	close(t.stopCh)
}

// IsRunning returns true if the sweep loop is active.
func (t *Tracker) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Tracker) loop(ctx context.Context, ticker clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-ticker.C():
			t.sweep()
		}
	}
}

// sweep flips devices offline once their silence exceeds the threshold.
// Callbacks run after the lock is released; they may disconnect transports.
func (t *Tracker) sweep() {
	now := t.clock.Now()

	t.mu.Lock()
	var expired []DeviceHealth
	for addr, d := range t.devices {
		if d.online && now.Sub(d.lastActivity) > t.config.OfflineThreshold {
			d.online = false
			expired = append(expired, DeviceHealth{
				Addr:         addr,
				Name:         d.name,
				Online:       false,
				LastActivity: d.lastActivity,
			})
		}
	}
	cb := t.onOffline
	t.mu.Unlock()

	if cb != nil {
		for _, d := range expired {
			cb(d)
		}
	}
}
