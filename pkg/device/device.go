package device

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/focfleet/focfleet-go/pkg/clock"
	"github.com/focfleet/focfleet-go/pkg/discovery"
	"github.com/focfleet/focfleet-go/pkg/log"
	"github.com/focfleet/focfleet-go/pkg/transport"
)

// DefaultHeartbeatInterval matches the firmware's unsolicited heartbeat
// period.
const DefaultHeartbeatInterval = 5 * time.Second

// Config configures one simulated device.
type Config struct {
	// ID is the motor controller id. Required.
	ID uint8

	// Name is the advertised instance name (default "Motor-Controller-<id>").
	Name string

	// Firmware is the advertised firmware revision (optional).
	Firmware string

	// Address is the listen address (default ":0", an ephemeral port).
	Address string

	// HeartbeatInterval is the unsolicited heartbeat period (default 5s).
	HeartbeatInterval time.Duration

	// Clock paces heartbeats. Nil uses the system clock.
	Clock clock.Clock

	// Logger receives link events (optional).
	Logger log.Logger
}

// Device is one simulated motor controller: a firmware model behind a
// framed TCP listener.
type Device struct {
	config   Config
	model    *Model
	clock    clock.Clock
	listener *transport.Listener

	mu       sync.Mutex
	sessions map[*transport.Session]struct{}
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a device. Start must be called before it accepts links.
func New(config Config) (*Device, error) {
	model, err := NewModel(config.ID)
	if err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = discovery.InstanceName(config.ID)
	}
	if config.Address == "" {
		config.Address = ":0"
	}
	if config.HeartbeatInterval == 0 {
		config.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if config.Clock == nil {
		config.Clock = clock.System{}
	}

	d := &Device{
		config:   config,
		model:    model,
		clock:    config.Clock,
		sessions: make(map[*transport.Session]struct{}),
	}
	d.listener = transport.NewListener(transport.ListenerConfig{
		Address:      config.Address,
		Logger:       config.Logger,
		OnConnect:    d.addSession,
		OnDisconnect: d.dropSession,
		OnMessage:    d.handleMessage,
	})
	return d, nil
}

// Start binds the listen address and begins heartbeating.
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("device %d already running", d.config.ID)
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.mu.Unlock()

	if err := d.listener.Start(ctx); err != nil {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		return err
	}

	ticker := d.clock.NewTicker(d.config.HeartbeatInterval)
	d.wg.Add(1)
	go d.heartbeatLoop(ctx, ticker)
	return nil
}

// Stop closes the listener and every controller link.
func (d *Device) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.stopCh)
	d.mu.Unlock()

	err := d.listener.Stop()
	d.wg.Wait()
	return err
}

// Model returns the firmware model for state inspection.
func (d *Device) Model() *Model { return d.model }

// Addr returns the bound listen address, nil before Start.
func (d *Device) Addr() net.Addr { return d.listener.Addr() }

// Port returns the bound listen port, 0 before Start.
func (d *Device) Port() uint16 {
	if tcp, ok := d.listener.Addr().(*net.TCPAddr); ok {
		return uint16(tcp.Port)
	}
	return 0
}

// Info describes the device for mDNS advertising. The port is only
// meaningful after Start.
func (d *Device) Info() discovery.DeviceInfo {
	return discovery.DeviceInfo{
		DeviceID: d.config.ID,
		Name:     d.config.Name,
		Firmware: d.config.Firmware,
		Port:     d.Port(),
	}
}

// SessionCount returns the number of live controller links.
func (d *Device) SessionCount() int { return d.listener.SessionCount() }

func (d *Device) heartbeatLoop(ctx context.Context, ticker clock.Ticker) {
	defer d.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C():
			d.sendToAll(d.model.Heartbeat())
		}
	}
}

// sendToAll pushes one payload to every live link. Write failures are
// left to the listener's read side, which reaps dropped links.
func (d *Device) sendToAll(data []byte) {
	d.mu.Lock()
	sessions := make([]*transport.Session, 0, len(d.sessions))
	for s := range d.sessions {
		sessions = append(sessions, s)
	}
	d.mu.Unlock()

	for _, s := range sessions {
		_ = s.Send(data)
	}
}

func (d *Device) addSession(s *transport.Session) {
	d.mu.Lock()
	d.sessions[s] = struct{}{}
	d.mu.Unlock()
}

func (d *Device) dropSession(s *transport.Session) {
	d.mu.Lock()
	delete(d.sessions, s)
	d.mu.Unlock()
}

func (d *Device) handleMessage(s *transport.Session, msg []byte) {
	if reply, ok := d.model.HandleMessage(msg); ok {
		_ = s.Send(reply)
	}
}
