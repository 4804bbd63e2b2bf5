package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/enbility/zeroconf/v2"
)

// Browser discovers motor controllers over mDNS.
type Browser interface {
	// BrowseDevices streams controllers as they are discovered. The
	// channel closes when ctx ends. Entries seen on several
	// interfaces are aggregated by instance name, so each controller
	// is emitted once.
	BrowseDevices(ctx context.Context) (<-chan *DeviceService, error)

	// Scan browses for the given duration and returns everything
	// found, ordered by device id. A non-positive wait uses the
	// configured browse timeout.
	Scan(ctx context.Context, wait time.Duration) ([]*DeviceService, error)

	// FindByID browses until a controller with the given id appears.
	FindByID(ctx context.Context, deviceID uint8) (*DeviceService, error)
}

// BrowserConfig configures mDNS browsing.
type BrowserConfig struct {
	// BrowseTimeout bounds Scan when no explicit wait is given.
	// Zero uses DefaultBrowseTimeout.
	BrowseTimeout time.Duration

	// Interface restricts browsing to a named network interface.
	// Empty uses all multicast-capable interfaces.
	Interface string

	// Keywords filter instance names before results are emitted.
	// Nil uses DefaultKeywords. An empty non-nil slice disables
	// filtering.
	Keywords []string
}

// MDNSBrowser implements Browser using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
}

var _ Browser = (*MDNSBrowser)(nil)

// NewMDNSBrowser creates a browser. A configured interface name is
// resolved immediately so a typo fails here rather than silently
// browsing everything.
func NewMDNSBrowser(config BrowserConfig) (*MDNSBrowser, error) {
	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	if config.Keywords == nil {
		config.Keywords = DefaultKeywords
	}
	if config.Interface != "" {
		if _, err := net.InterfaceByName(config.Interface); err != nil {
			return nil, fmt.Errorf("unknown interface %q: %w", config.Interface, err)
		}
	}
	return &MDNSBrowser{config: config}, nil
}

// BrowseDevices streams controllers as they are discovered.
// Addresses from multiple interfaces are combined into a single entry
// per instance name. Removals drop the addresses that disappeared.
func (b *MDNSBrowser) BrowseDevices(ctx context.Context) (<-chan *DeviceService, error) {
	out := make(chan *DeviceService)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	opts := b.browserOptions()

	go func() {
		defer close(out)

		services := make(map[string]*DeviceService)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := deviceFromEntry(entry, b.config.Keywords)
				if svc == nil {
					continue
				}

				existing, found := services[svc.InstanceName]
				if found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				} else {
					services[svc.InstanceName] = svc
					select {
					case out <- svc:
					case <-ctx.Done():
						return
					}
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				if existing, found := services[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entryAddresses(entry))
					if len(existing.Addresses) == 0 {
						delete(services, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceTypeDevice, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// Scan browses for the given duration and returns everything found,
// ordered by device id.
func (b *MDNSBrowser) Scan(ctx context.Context, wait time.Duration) ([]*DeviceService, error) {
	if wait <= 0 {
		wait = b.config.BrowseTimeout
	}
	scanCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	results, err := b.BrowseDevices(scanCtx)
	if err != nil {
		return nil, err
	}

	var services []*DeviceService
	for svc := range results {
		services = append(services, svc)
	}
	if err := ctx.Err(); err != nil {
		return services, err
	}

	SortServices(services)
	return services, nil
}

// FindByID browses until a controller with the given id appears.
func (b *MDNSBrowser) FindByID(ctx context.Context, deviceID uint8) (*DeviceService, error) {
	results, err := b.BrowseDevices(ctx)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case svc, ok := <-results:
			if !ok {
				return nil, ErrNotFound
			}
			if svc.DeviceID == deviceID {
				return svc, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// deviceFromEntry converts a zeroconf entry to a DeviceService.
// Returns nil for entries that fail the keyword filter or carry
// unusable TXT records.
func deviceFromEntry(entry *zeroconf.ServiceEntry, keywords []string) *DeviceService {
	return deviceFromParts(entry.Instance, entry.HostName, entry.Port, entry.Text, entryAddresses(entry), keywords)
}

func deviceFromParts(instance, host string, port int, text, addrs, keywords []string) *DeviceService {
	if !MatchesKeywords(instance, keywords) {
		return nil
	}
	info, err := DecodeDeviceTXT(StringsToTXTRecords(text))
	if err != nil {
		return nil
	}

	name := info.Name
	if name == "" {
		name = instance
	}

	return &DeviceService{
		InstanceName: instance,
		Host:         host,
		Port:         uint16(port),
		Addresses:    addrs,
		DeviceID:     info.DeviceID,
		Name:         name,
		Firmware:     info.Firmware,
	}
}

// entryAddresses collects the resolved addresses of an entry, IPv4
// before IPv6.
func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// mergeAddresses adds new addresses to the existing list, avoiding
// duplicates.
func mergeAddresses(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range incoming {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses filters the drop list out of addresses.
func removeAddresses(addresses, drop []string) []string {
	toRemove := make(map[string]bool, len(drop))
	for _, addr := range drop {
		toRemove[addr] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
