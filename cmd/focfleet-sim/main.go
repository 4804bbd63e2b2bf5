// Command focfleet-sim runs a fleet of simulated FOC motor controllers.
//
// Each device reproduces the firmware's packet handling: it accepts the
// controller's framed TCP link, decodes command packets, applies matching
// setpoints, acknowledges with "<id>:<OP>:<value>" text and sends periodic
// heartbeats. Devices announce themselves over mDNS so a controller can
// find them the way it finds real hardware.
//
// Usage:
//
//	focfleet-sim [flags]
//
// Flags:
//
//	-n int            Number of devices to simulate (default 3)
//	-first-id int     Device id of the first simulated device (default 1)
//	-port int         Listen port of the first device, incremented per device;
//	                  0 picks ephemeral ports (default 7632)
//	-heartbeat int    Heartbeat period in seconds (default 5)
//	-firmware string  Advertised firmware revision
//	-advertise        Announce devices over mDNS (default true)
//	-interface string Restrict mDNS to one network interface
//	-log-level string Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Simulate three devices with ids 1-3 on ports 7632-7634
//	focfleet-sim
//
//	# Simulate ten devices starting at id 20, ephemeral ports
//	focfleet-sim -n 10 -first-id 20 -port 0
//
//	# Quiet fleet without mDNS for loopback testing
//	focfleet-sim -n 5 -advertise=false -log-level warn
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/focfleet/focfleet-go/pkg/device"
	"github.com/focfleet/focfleet-go/pkg/discovery"
	"github.com/focfleet/focfleet-go/pkg/transport"
)

// Config holds the simulator configuration.
type Config struct {
	Count        int
	FirstID      int
	Port         int
	HeartbeatSec int
	Firmware     string
	Advertise    bool
	Interface    string
	LogLevel     string
}

var config Config

func init() {
	flag.IntVar(&config.Count, "n", 3, "Number of devices to simulate")
	flag.IntVar(&config.FirstID, "first-id", 1, "Device id of the first simulated device")
	flag.IntVar(&config.Port, "port", transport.DefaultPort, "Listen port of the first device (0 = ephemeral)")
	flag.IntVar(&config.HeartbeatSec, "heartbeat", 5, "Heartbeat period in seconds")
	flag.StringVar(&config.Firmware, "firmware", "dfoc-1.4.2", "Advertised firmware revision")
	flag.BoolVar(&config.Advertise, "advertise", true, "Announce devices over mDNS")
	flag.StringVar(&config.Interface, "interface", "", "Restrict mDNS to one network interface")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	// Setup logging
	setupLogging(config.LogLevel)

	log.Println("FOC Fleet Device Simulator")
	log.Println("==========================")
	log.Printf("Devices: %d (ids %d-%d)", config.Count, config.FirstID, config.FirstID+config.Count-1)
	log.Printf("Heartbeat: %ds", config.HeartbeatSec)

	// Validate configuration
	if err := validateConfig(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create and start devices
	devices := make([]*device.Device, 0, config.Count)
	for i := 0; i < config.Count; i++ {
		id := uint8(config.FirstID + i)

		addr := ":0"
		if config.Port != 0 {
			addr = fmt.Sprintf(":%d", config.Port+i)
		}

		d, err := device.New(device.Config{
			ID:                id,
			Firmware:          config.Firmware,
			Address:           addr,
			HeartbeatInterval: time.Duration(config.HeartbeatSec) * time.Second,
		})
		if err != nil {
			log.Fatalf("Failed to create device %d: %v", id, err)
		}

		if err := d.Start(ctx); err != nil {
			log.Fatalf("Failed to start device %d: %v", id, err)
		}
		devices = append(devices, d)

		log.Printf("Device %d (%s) listening on %s", id, discovery.InstanceName(id), d.Addr())
	}

	// Announce devices over mDNS
	var advertiser *discovery.MDNSAdvertiser
	if config.Advertise {
		advertiser = discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
			Interface: config.Interface,
		})
		for _, d := range devices {
			if err := advertiser.Advertise(ctx, d.Info()); err != nil {
				log.Printf("Warning: Failed to advertise device %d: %v", d.Model().ID(), err)
			}
		}
		log.Printf("Advertising %d device(s) over mDNS", len(devices))
	}

	go runStatusLoop(ctx, devices)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Printf("Received signal: %v", sig)
	log.Println("Shutting down...")

	cancel()

	if advertiser != nil {
		advertiser.StopAll()
	}
	for _, d := range devices {
		if err := d.Stop(); err != nil {
			log.Printf("Error stopping device %d: %v", d.Model().ID(), err)
		}
	}

	log.Println("Goodbye!")
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn", "error":
		log.SetFlags(log.Ltime)
	}
}

func validateConfig() error {
	if config.Count < 1 {
		return fmt.Errorf("device count must be at least 1, got %d", config.Count)
	}
	if config.FirstID < 1 {
		return fmt.Errorf("first id must be at least 1, got %d", config.FirstID)
	}
	if config.FirstID+config.Count-1 > 255 {
		return fmt.Errorf("ids %d-%d exceed the 255 limit", config.FirstID, config.FirstID+config.Count-1)
	}
	if config.HeartbeatSec < 1 {
		return fmt.Errorf("heartbeat period must be at least 1s, got %d", config.HeartbeatSec)
	}
	return nil
}

func runStatusLoop(ctx context.Context, devices []*device.Device) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, d := range devices {
				state := d.Model().State()
				log.Printf("[SIM] device %d: links=%d angle=%.1f velocity=%.1f current=%.1f applied=%d",
					d.Model().ID(), d.SessionCount(),
					state.Angle, state.Velocity, state.Current, state.Applied)
			}
		}
	}
}
