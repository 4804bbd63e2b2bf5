// Command focfleet-controller runs a fleet controller for wirelessly
// connected FOC motor controllers.
//
// The controller discovers devices over mDNS, keeps one command link
// per device, and distributes setpoints from targets files in grouped
// broadcast rounds.
//
// Usage:
//
//	focfleet-controller [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-interactive          Enable interactive command mode
//	-discover             Discover and link devices at startup
//	-connect string       Comma-separated device addresses to link at startup
//	-targets string       Targets file to distribute once after startup
//	-watch                Re-distribute the feed file on every change
//	-feed string          Feed file path (overrides config)
//	-state string         Fleet state file for persistence (overrides config)
//	-protocol-log string  File path for protocol event logging (CBOR format)
//	-metrics string       Prometheus listen address (e.g. :9632)
//	-reset                Clear persisted state before starting
//
// Examples:
//
//	# Discover the fleet and drop into interactive mode
//	focfleet-controller -discover -interactive
//
//	# Distribute one targets file to two known devices and exit
//	focfleet-controller -connect 192.168.4.21:7632,192.168.4.22:7632 -targets ramp.csv
//
//	# Follow a feed file, with persistence and a protocol capture
//	focfleet-controller -discover -watch -feed targets.csv \
//	    -state fleet.json -protocol-log session.flog
//
//	# Reset persistent state
//	focfleet-controller -state fleet.json -reset
//
// Interactive Commands:
//
//	discover    - Browse for advertised motor controllers
//	connect <id|addr> - Link a device
//	devices     - List known devices and their liveness
//	send <id> <value> [type] - Send one setpoint
//	probe [id]  - Round-trip check one device, or all when no id
//	run <file>  - Distribute a targets file
//	watch       - Re-distribute the feed file on every change
//	responses   - Show recent device responses
//	status      - Show controller status
//	quit        - Exit the controller
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/focfleet/focfleet-go/cmd/focfleet-controller/interactive"
	"github.com/focfleet/focfleet-go/pkg/fleet"
	fleetlog "github.com/focfleet/focfleet-go/pkg/log"
	"github.com/focfleet/focfleet-go/pkg/metrics"
	"github.com/focfleet/focfleet-go/pkg/schedule"
)

// Config holds the controller configuration.
// It implements interactive.ControllerConfig.
type Config struct {
	ConfigFile  string
	LogLevel    string
	Interactive bool
	Discover    bool
	Connect     string
	Targets     string
	Watch       bool
	Feed        string
	State       string
	ProtocolLog string
	MetricsAddr string
	Reset       bool
}

// FeedPath implements interactive.ControllerConfig.
func (c *Config) FeedPath() string {
	return c.Feed
}

// StatePath implements interactive.ControllerConfig.
func (c *Config) StatePath() string {
	return c.State
}

var (
	config Config
	ctrl   *fleet.Controller
)

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&config.Interactive, "interactive", false, "Enable interactive command mode")
	flag.BoolVar(&config.Discover, "discover", false, "Discover and link devices at startup")
	flag.StringVar(&config.Connect, "connect", "", "Comma-separated device addresses to link at startup")
	flag.StringVar(&config.Targets, "targets", "", "Targets file to distribute once after startup")
	flag.BoolVar(&config.Watch, "watch", false, "Re-distribute the feed file on every change")
	flag.StringVar(&config.Feed, "feed", "", "Feed file path (overrides config)")
	flag.StringVar(&config.State, "state", "", "Fleet state file for persistence (overrides config)")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	flag.StringVar(&config.MetricsAddr, "metrics", "", "Prometheus listen address (e.g. :9632)")
	flag.BoolVar(&config.Reset, "reset", false, "Clear persisted state before starting")
}

func main() {
	flag.Parse()

	// Setup logging
	setupLogging(config.LogLevel)

	log.Println("FOC Fleet Controller")
	log.Println("====================")

	// Load fleet configuration; flags override the file
	fleetCfg := fleet.DefaultConfig()
	if config.ConfigFile != "" {
		var err error
		fleetCfg, err = fleet.LoadConfig(config.ConfigFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		log.Printf("Loaded config: %s", config.ConfigFile)
	}
	if config.Feed != "" {
		fleetCfg.FeedPath = config.Feed
	}
	if config.State != "" {
		fleetCfg.StatePath = config.State
	}
	config.Feed = fleetCfg.FeedPath
	config.State = fleetCfg.StatePath

	if config.Watch && fleetCfg.FeedPath == "" {
		log.Fatalf("-watch needs a feed file (use -feed or feedPath in the config)")
	}

	// Handle --reset flag
	if config.Reset && fleetCfg.StatePath != "" {
		log.Println("Resetting persisted state...")
		if err := fleet.NewStateStore(fleetCfg.StatePath).Clear(); err != nil {
			log.Printf("Warning: Failed to clear state: %v", err)
		}
	}

	// Set up protocol logging if requested. Watch sessions run
	// unattended for a long time, so they get a rotating capture.
	var protocolLogger *fleetlog.FileLogger
	if config.ProtocolLog != "" {
		if config.Watch {
			protocolLogger = fleetlog.NewRotatingFileLogger(config.ProtocolLog, 64, 4)
		} else {
			var err error
			protocolLogger, err = fleetlog.NewFileLogger(config.ProtocolLog)
			if err != nil {
				log.Fatalf("Failed to create protocol logger: %v", err)
			}
		}
		fleetCfg.Logger = protocolLogger
		log.Printf("Protocol logging to: %s", config.ProtocolLog)
	}

	// Serve Prometheus metrics if requested
	meter := metrics.New()
	fleetCfg.Metrics = meter
	if config.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", meter.Handler())
		go func() {
			if err := http.ListenAndServe(config.MetricsAddr, mux); err != nil {
				log.Printf("Metrics server error: %v", err)
			}
		}()
		log.Printf("Serving metrics on http://%s/metrics", config.MetricsAddr)
	}

	// Create controller
	var err error
	ctrl, err = fleet.New(fleetCfg)
	if err != nil {
		log.Fatalf("Failed to create controller: %v", err)
	}

	// Register event handler
	ctrl.OnEvent(handleEvent)

	// Start controller
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Start(ctx); err != nil {
		log.Fatalf("Failed to start controller: %v", err)
	}
	log.Printf("Controller started (state: %s)", ctrl.State())
	if fleetCfg.StatePath != "" {
		log.Printf("Fleet state file: %s", fleetCfg.StatePath)
	}

	// Link devices named on the command line
	for _, addr := range splitAddrs(config.Connect) {
		if err := ctrl.ConnectAddr(ctx, addr); err != nil {
			log.Printf("Failed to connect %s: %v", addr, err)
		}
	}

	// Discover and link the rest of the fleet
	if config.Discover {
		runDiscovery(ctx)
	}

	// Distribute a targets file once
	if config.Targets != "" {
		runTargets(ctx, config.Targets)
	}

	// Follow the feed file
	if config.Watch {
		go func() {
			if err := ctrl.Watch(ctx); err != nil {
				log.Printf("Watch error: %v", err)
			}
		}()
		log.Printf("Watching feed: %s", fleetCfg.FeedPath)
	}

	// Run interactive mode or wait for signal
	if config.Interactive {
		ic, err := interactive.New(ctrl, &config)
		if err != nil {
			log.Fatalf("Failed to create interactive controller: %v", err)
		}
		// Redirect log output through readline to avoid interfering with input
		log.SetOutput(ic.Stdout())
		go ic.Run(ctx, cancel)
	} else if config.Targets != "" && !config.Watch {
		// One-shot distribution: nothing left to wait for
		cancel()
	}

	// Wait for shutdown signal or context cancellation
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
		// Context was cancelled (e.g., by interactive quit command)
	}

	log.Println("Shutting down...")

	cancel()

	// Stop writes the fleet state file last, so the registry survives
	// the restart.
	if err := ctrl.Stop(); err != nil {
		log.Printf("Error stopping controller: %v", err)
	}

	if protocolLogger != nil {
		if err := protocolLogger.Close(); err != nil {
			log.Printf("Error closing protocol log: %v", err)
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

// splitAddrs parses the -connect flag value.
func splitAddrs(s string) []string {
	if s == "" {
		return nil
	}
	var addrs []string
	for _, part := range strings.Split(s, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// runDiscovery scans for advertised devices and links every hit.
func runDiscovery(ctx context.Context) {
	log.Println("Discovering devices...")

	services, err := ctrl.Discover(ctx)
	if err != nil {
		log.Printf("Discovery failed: %v", err)
		return
	}
	log.Printf("Found %d device(s)", len(services))

	for _, svc := range services {
		if err := ctrl.Connect(ctx, svc); err != nil {
			log.Printf("Failed to connect %s: %v", svc.InstanceName, err)
			continue
		}
		log.Printf("Linked device %d (%s)", svc.DeviceID, svc.Name)
	}
}

// runTargets distributes one targets file.
func runTargets(ctx context.Context, path string) {
	log.Printf("Distributing targets from %s", path)

	report, err := ctrl.ApplyFile(ctx, path)
	if err != nil {
		log.Printf("Distribution failed: %v", err)
		return
	}
	log.Printf("Distribution finished: %s", formatReport(report))
}

func formatReport(r *schedule.Report) string {
	s := fmt.Sprintf("%d round(s), %d fresh, %d/%d delivered (%s)",
		r.Rounds, r.Fresh, r.Delivered, r.Attempted, r.Reason)
	if r.EncodeFailures > 0 {
		s += fmt.Sprintf(", %d encode failure(s)", r.EncodeFailures)
	}
	return s
}

func handleEvent(event fleet.Event) {
	switch event.Type {
	case fleet.EventLinkUp:
		if event.DeviceID != 0 {
			log.Printf("[EVENT] Link up: device %d (%s)", event.DeviceID, event.Addr)
		} else {
			log.Printf("[EVENT] Link up: %s", event.Addr)
		}

	case fleet.EventLinkDown:
		if event.Error != nil {
			log.Printf("[EVENT] Link down: %s (%v)", event.Addr, event.Error)
		} else {
			log.Printf("[EVENT] Link down: %s", event.Addr)
		}

	case fleet.EventDeviceOnline:
		log.Printf("[EVENT] Device online: %d (%s)", event.DeviceID, event.Addr)

	case fleet.EventDeviceOffline:
		log.Printf("[EVENT] Device offline: %d (%s)", event.DeviceID, event.Addr)

	case fleet.EventDeviceDiscovered:
		log.Printf("[EVENT] Device discovered: %d (%s at %s)", event.DeviceID, event.Name, event.Addr)

	case fleet.EventRunStarted:
		log.Println("[EVENT] Distribution run started")

	case fleet.EventRunStopped:
		if event.Error != nil {
			log.Printf("[EVENT] Distribution run failed: %v", event.Error)
		} else if event.Report != nil {
			log.Printf("[EVENT] Distribution run finished: %s", formatReport(event.Report))
		}

	case fleet.EventFeedApplied:
		if event.Error != nil {
			log.Printf("[EVENT] Feed change rejected: %v", event.Error)
		} else if event.Report != nil {
			log.Printf("[EVENT] Feed change applied: %s", formatReport(event.Report))
		}
	}
}
