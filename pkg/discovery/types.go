package discovery

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// ServiceTypeDevice is the mDNS service type motor controllers announce.
	ServiceTypeDevice = "_focfleet._tcp"

	// Domain is the mDNS browse domain.
	Domain = "local."

	// DefaultBrowseTimeout bounds a single scan pass.
	DefaultBrowseTimeout = 10 * time.Second

	// MaxInstanceNameLen is the mDNS limit for a single instance label.
	MaxInstanceNameLen = 63
)

// TXT record keys for device advertisements.
const (
	TXTKeyDeviceID = "id"
	TXTKeyName     = "name"
	TXTKeyFirmware = "fw"
)

// DefaultKeywords narrow browse results to motor controller hardware.
// Matching is a case-insensitive substring test against the instance name.
var DefaultKeywords = []string{"ESP32", "DengFOC", "DFOC", "Motor", "Controller"}

var (
	ErrMissingRequired     = errors.New("missing required TXT record")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record")
	ErrNotFound            = errors.New("service not found")
	ErrInstanceNameTooLong = errors.New("instance name exceeds maximum length")
)

// DeviceInfo describes one motor controller for advertising.
type DeviceInfo struct {
	// DeviceID is the controller id carried in command packets (1-255).
	DeviceID uint8

	// Name is the human-readable device name. Defaults to the
	// instance name when empty.
	Name string

	// Firmware is the firmware version string.
	Firmware string

	// Port is the TCP port of the command link. Zero means the
	// transport default.
	Port uint16
}

// InstanceName returns the advertised instance name for a device id.
func InstanceName(deviceID uint8) string {
	return fmt.Sprintf("Motor-Controller-%d", deviceID)
}

// ValidateInstanceName checks that name fits in a single mDNS label.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTXTRecord)
	}
	if len(name) > MaxInstanceNameLen {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInstanceNameTooLong, len(name), MaxInstanceNameLen)
	}
	return nil
}

// DeviceService is one discovered motor controller.
type DeviceService struct {
	// InstanceName is the mDNS instance name, e.g. "Motor-Controller-3".
	InstanceName string

	// Host is the advertised hostname.
	Host string

	// Port is the TCP port of the command link.
	Port uint16

	// Addresses holds the resolved IP addresses as strings,
	// IPv4 before IPv6.
	Addresses []string

	// DeviceID is the controller id from the TXT records.
	DeviceID uint8

	// Name is the human-readable device name.
	Name string

	// Firmware is the firmware version string.
	Firmware string
}

// Addr returns "<address>:<port>" for the first resolved address,
// suitable for a transport dial. Empty when no address resolved.
func (s *DeviceService) Addr() string {
	if len(s.Addresses) == 0 {
		return ""
	}
	return net.JoinHostPort(s.Addresses[0], strconv.Itoa(int(s.Port)))
}

// MatchesKeywords reports whether name contains any of the keywords,
// case-insensitively. An empty keyword list matches everything.
func MatchesKeywords(name string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, keyword := range keywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// SortServices orders services by device id, then instance name for
// services that decoded to the same id.
func SortServices(services []*DeviceService) {
	sort.Slice(services, func(i, j int) bool {
		if services[i].DeviceID != services[j].DeviceID {
			return services[i].DeviceID < services[j].DeviceID
		}
		return services[i].InstanceName < services[j].InstanceName
	})
}
