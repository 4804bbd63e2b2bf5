package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v2"

	"github.com/focfleet/focfleet-go/pkg/transport"
)

// DefaultTTL is the mDNS record time-to-live.
const DefaultTTL = 120 * time.Second

// Advertiser announces motor controllers over mDNS. One advertiser
// can carry several devices, which is how the simulator runs a whole
// fleet out of a single process.
type Advertiser interface {
	// Advertise starts announcing a device. Re-advertising an id
	// replaces the previous announcement.
	Advertise(ctx context.Context, info DeviceInfo) error

	// Update replaces the TXT records of an already advertised device.
	Update(info DeviceInfo) error

	// Stop withdraws the announcement for one device.
	Stop(deviceID uint8) error

	// StopAll withdraws every announcement.
	StopAll()
}

// AdvertiserConfig configures mDNS advertising.
type AdvertiserConfig struct {
	// Interface restricts announcements to a named network
	// interface. Empty uses all multicast-capable interfaces.
	Interface string

	// TTL is the record time-to-live. Zero uses DefaultTTL.
	TTL time.Duration
}

// MDNSAdvertiser implements Advertiser using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu      sync.Mutex
	servers map[uint8]*zeroconf.Server
}

var _ Advertiser = (*MDNSAdvertiser)(nil)

// NewMDNSAdvertiser creates an advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	if config.TTL == 0 {
		config.TTL = DefaultTTL
	}
	return &MDNSAdvertiser{
		config:  config,
		servers: make(map[uint8]*zeroconf.Server),
	}
}

// Advertise starts announcing a device under the instance name
// "Motor-Controller-<id>".
func (a *MDNSAdvertiser) Advertise(_ context.Context, info DeviceInfo) error {
	if info.DeviceID == 0 {
		return fmt.Errorf("%w: device id must be at least 1", ErrInvalidTXTRecord)
	}
	instanceName := InstanceName(info.DeviceID)
	if err := ValidateInstanceName(instanceName); err != nil {
		return err
	}

	port := int(info.Port)
	if port == 0 {
		port = transport.DefaultPort
	}
	txt := TXTRecordsToStrings(EncodeDeviceTXT(info))

	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.servers[info.DeviceID]; ok {
		existing.Shutdown()
		delete(a.servers, info.DeviceID)
	}

	server, err := zeroconf.Register(
		instanceName,
		ServiceTypeDevice,
		Domain,
		port,
		txt,
		a.getInterfaces(),
		zeroconf.TTL(uint32(a.config.TTL.Seconds())),
	)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service for device %d: %w", info.DeviceID, err)
	}

	a.servers[info.DeviceID] = server
	return nil
}

// Update replaces the TXT records of an already advertised device.
func (a *MDNSAdvertiser) Update(info DeviceInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, ok := a.servers[info.DeviceID]
	if !ok {
		return fmt.Errorf("%w: device %d not advertised", ErrNotFound, info.DeviceID)
	}
	server.SetText(TXTRecordsToStrings(EncodeDeviceTXT(info)))
	return nil
}

// Stop withdraws the announcement for one device.
func (a *MDNSAdvertiser) Stop(deviceID uint8) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, ok := a.servers[deviceID]
	if !ok {
		return fmt.Errorf("%w: device %d not advertised", ErrNotFound, deviceID)
	}
	server.Shutdown()
	delete(a.servers, deviceID)
	return nil
}

// StopAll withdraws every announcement.
func (a *MDNSAdvertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, server := range a.servers {
		server.Shutdown()
		delete(a.servers, id)
	}
}

// Advertised returns the ids currently announced.
func (a *MDNSAdvertiser) Advertised() []uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]uint8, 0, len(a.servers))
	for id := range a.servers {
		ids = append(ids, id)
	}
	return ids
}

func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}
