package fleet

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/focfleet/focfleet-go/pkg/clock"
	"github.com/focfleet/focfleet-go/pkg/discovery"
	"github.com/focfleet/focfleet-go/pkg/log"
	"github.com/focfleet/focfleet-go/pkg/metrics"
)

// Config configures a Controller. The yaml-tagged fields load from a
// config file; durations are plain numbers with the unit in the field
// name. Collaborators are injected by the caller and never read from
// the file.
type Config struct {
	// MaxDevices caps the number of simultaneously linked devices.
	MaxDevices int `yaml:"maxDevices"`

	// DiscoveryTimeoutSec bounds one mDNS scan pass.
	DiscoveryTimeoutSec int `yaml:"discoveryTimeoutSec"`

	// OfflineAfterSec is the silence that flips a device offline.
	OfflineAfterSec int `yaml:"offlineAfterSec"`

	// LivenessSweepSec is the interval between offline sweeps.
	LivenessSweepSec int `yaml:"livenessSweepSec"`

	// ResponseTimeoutMs bounds the wait for a single-command response.
	ResponseTimeoutMs int `yaml:"responseTimeoutMs"`

	// FeedPath is the watched targets file. Empty disables Watch.
	FeedPath string `yaml:"feedPath"`

	// FeedPollMs is the targets file poll interval.
	FeedPollMs int `yaml:"feedPollMs"`

	// StatePath is the fleet state file. Empty disables persistence.
	StatePath string `yaml:"statePath"`

	// Keywords filter discovered instance names. Nil uses the
	// default motor controller keyword set.
	Keywords []string `yaml:"keywords"`

	// Interface restricts mDNS browsing to one network interface.
	Interface string `yaml:"interface"`

	// DisconnectOffline closes the link of a device that goes offline.
	DisconnectOffline bool `yaml:"disconnectOffline"`

	// Redial re-establishes dropped links with backoff.
	Redial bool `yaml:"redial"`

	// Logger receives protocol events. Nil disables logging.
	Logger log.Logger `yaml:"-"`

	// Clock abstracts time for tests. Nil uses the system clock.
	Clock clock.Clock `yaml:"-"`

	// Metrics receives fleet counters. Nil disables instrumentation.
	Metrics *metrics.Metrics `yaml:"-"`

	// Browser overrides mDNS discovery. Nil builds a zeroconf
	// browser on first use.
	Browser discovery.Browser `yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxDevices:          16,
		DiscoveryTimeoutSec: 10,
		OfflineAfterSec:     30,
		LivenessSweepSec:    5,
		ResponseTimeoutMs:   5000,
		FeedPollMs:          500,
		DisconnectOffline:   true,
		Redial:              true,
	}
}

// LoadConfig reads a YAML config file over the defaults. Fields
// absent from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parsing config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Validate checks the config before a controller is built from it.
func (c *Config) Validate() error {
	if c.MaxDevices < 1 {
		return fmt.Errorf("%w: maxDevices %d", ErrInvalidConfig, c.MaxDevices)
	}
	if c.DiscoveryTimeoutSec < 1 {
		return fmt.Errorf("%w: discoveryTimeoutSec %d", ErrInvalidConfig, c.DiscoveryTimeoutSec)
	}
	if c.OfflineAfterSec < 1 {
		return fmt.Errorf("%w: offlineAfterSec %d", ErrInvalidConfig, c.OfflineAfterSec)
	}
	if c.LivenessSweepSec < 1 {
		return fmt.Errorf("%w: livenessSweepSec %d", ErrInvalidConfig, c.LivenessSweepSec)
	}
	if c.ResponseTimeoutMs < 1 {
		return fmt.Errorf("%w: responseTimeoutMs %d", ErrInvalidConfig, c.ResponseTimeoutMs)
	}
	if c.FeedPollMs < 1 {
		return fmt.Errorf("%w: feedPollMs %d", ErrInvalidConfig, c.FeedPollMs)
	}
	return nil
}

// DiscoveryTimeout returns the scan bound as a duration.
func (c *Config) DiscoveryTimeout() time.Duration {
	return time.Duration(c.DiscoveryTimeoutSec) * time.Second
}

// OfflineAfter returns the offline threshold as a duration.
func (c *Config) OfflineAfter() time.Duration {
	return time.Duration(c.OfflineAfterSec) * time.Second
}

// LivenessSweep returns the sweep interval as a duration.
func (c *Config) LivenessSweep() time.Duration {
	return time.Duration(c.LivenessSweepSec) * time.Second
}

// ResponseTimeout returns the response wait bound as a duration.
func (c *Config) ResponseTimeout() time.Duration {
	return time.Duration(c.ResponseTimeoutMs) * time.Millisecond
}

// FeedPoll returns the feed poll interval as a duration.
func (c *Config) FeedPoll() time.Duration {
	return time.Duration(c.FeedPollMs) * time.Millisecond
}
