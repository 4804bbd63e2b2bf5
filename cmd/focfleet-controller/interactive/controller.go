// Package interactive provides the interactive command-line interface
// for the FOC fleet controller.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/focfleet/focfleet-go/pkg/feed"
	"github.com/focfleet/focfleet-go/pkg/fleet"
	"github.com/focfleet/focfleet-go/pkg/respond"
	"github.com/focfleet/focfleet-go/pkg/schedule"
	"github.com/focfleet/focfleet-go/pkg/wire"
)

// ControllerConfig provides configuration information to the interactive
// controller. This interface allows the interactive layer to access
// settings without depending on the main package's config structure.
type ControllerConfig interface {
	// FeedPath returns the watched targets file, if any.
	FeedPath() string

	// StatePath returns the fleet state file, if any.
	StatePath() string
}

// Controller handles interactive mode for focfleet-controller.
type Controller struct {
	ctrl   *fleet.Controller
	config ControllerConfig
	rl     *readline.Instance

	// Watch control
	watchCtx     context.Context
	watchCancel  context.CancelFunc
	watchRunning bool

	// Last loaded targets, consumed by a plain "run"
	targets *feed.Targets
}

// New creates a new interactive controller handler.
func New(ctrl *fleet.Controller, cfg ControllerConfig) (*Controller, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "fleet> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Controller{
		ctrl:   ctrl,
		config: cfg,
		rl:     rl,
	}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Controller) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (c *Controller) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Run starts the interactive command loop.
func (c *Controller) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "discover", "d":
			c.cmdDiscover(ctx)

		case "connect":
			c.cmdConnect(ctx, args)

		case "disconnect":
			c.cmdDisconnect(args)

		case "devices", "list", "ls":
			c.cmdDevices()

		case "send", "s":
			c.cmdSend(ctx, args)

		case "probe":
			c.cmdProbe(ctx, args)

		case "load":
			c.cmdLoad(args)

		case "run":
			c.cmdRun(ctx, args)

		case "watch":
			c.cmdWatch()

		case "unwatch":
			c.cmdUnwatch()

		case "responses", "resp":
			c.cmdResponses(args)

		case "status":
			c.cmdStatus()

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Controller) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
FOC Fleet Controller Commands:
  Fleet:
    discover           - Browse for advertised motor controllers
    connect <id|addr>  - Link a device by id (via mDNS) or host:port
    disconnect <id>    - Drop the link to a device
    devices            - List known devices and their liveness

  Distribution:
    send <id> <value> [type] - Send one setpoint (type: angle, velocity, current)
    probe [id]         - Round-trip check one device, or all when no id
    load <file>        - Queue setpoints from a targets file
    run [file]         - Distribute queued setpoints (or a file directly)
    watch              - Re-distribute the feed file on every change
    unwatch            - Stop watching the feed file

  Inspection:
    responses [n]      - Show recent device responses
    status             - Show controller status

  General:
    help               - Show this help
    quit               - Exit the controller`)
}

// cmdDiscover browses for advertised devices.
func (c *Controller) cmdDiscover(ctx context.Context) {
	fmt.Fprintln(c.rl.Stdout(), "Discovering devices...")

	services, err := c.ctrl.Discover(ctx)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Discovery failed: %v\n", err)
		return
	}
	if len(services) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No devices found")
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "\nFound %d device(s):\n", len(services))
	for _, svc := range services {
		addr := svc.Addr()
		if addr == "" {
			addr = "unresolved"
		}
		fmt.Fprintf(c.rl.Stdout(), "  [%3d] %-24s %-14s %s\n",
			svc.DeviceID, svc.InstanceName, svc.Firmware, addr)
	}
	fmt.Fprintln(c.rl.Stdout(), "Use 'connect <id>' to link a device")
}

// cmdConnect links a device by id or by transport address.
func (c *Controller) cmdConnect(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: connect <id|host:port>")
		fmt.Fprintln(c.rl.Stdout(), "  Example: connect 3")
		fmt.Fprintln(c.rl.Stdout(), "  Example: connect 192.168.4.21:7632")
		return
	}

	if id, err := parseDeviceID(args[0]); err == nil {
		if err := c.ctrl.ConnectByID(ctx, id); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Connect failed: %v\n", err)
			return
		}
		fmt.Fprintf(c.rl.Stdout(), "Linked device %d\n", id)
		return
	}

	if err := c.ctrl.ConnectAddr(ctx, args[0]); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Connect failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Linked %s\n", args[0])
}

// cmdDisconnect drops the link to a device.
func (c *Controller) cmdDisconnect(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: disconnect <id>")
		fmt.Fprintln(c.rl.Stdout(), "  Use 'devices' to list device ids")
		return
	}

	id, err := parseDeviceID(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid device id: %v\n", err)
		return
	}

	if err := c.ctrl.Disconnect(id); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Disconnect failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Device %d disconnected\n", id)
}

// cmdDevices lists all known devices.
func (c *Controller) cmdDevices() {
	snap := c.ctrl.Status()
	if len(snap.Devices) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No known devices")
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "\nFleet Devices (%d):\n", len(snap.Devices))
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	for _, d := range snap.Devices {
		name := d.Name
		if name == "" {
			name = "(unnamed)"
		}
		link := "closed"
		if d.Linked {
			link = "open"
		}
		liveness := "OFFLINE"
		if d.Online {
			liveness = "ONLINE"
		}

		fmt.Fprintf(c.rl.Stdout(), "  [%3d] %s\n", d.DeviceID, name)
		if d.Firmware != "" {
			fmt.Fprintf(c.rl.Stdout(), "        Firmware: %s\n", d.Firmware)
		}
		fmt.Fprintf(c.rl.Stdout(), "        Address:  %s\n", d.Addr)
		fmt.Fprintf(c.rl.Stdout(), "        Link:     %s\n", link)
		if d.LastSeen.IsZero() {
			fmt.Fprintf(c.rl.Stdout(), "        Liveness: %s\n", liveness)
		} else {
			fmt.Fprintf(c.rl.Stdout(), "        Liveness: %s (last seen %s)\n",
				liveness, d.LastSeen.Format("15:04:05"))
		}
		fmt.Fprintln(c.rl.Stdout())
	}
}

// cmdSend sends a single setpoint and waits for the reply.
func (c *Controller) cmdSend(ctx context.Context, args []string) {
	id, value, dt, err := parseSendArgs(args)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
		fmt.Fprintln(c.rl.Stdout(), "Usage: send <id> <value> [angle|velocity|current]")
		fmt.Fprintln(c.rl.Stdout(), "  Example: send 3 2.5 velocity")
		return
	}

	start := time.Now()
	res, err := c.ctrl.SendSingle(ctx, id, value, dt)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Send failed: %v\n", err)
		return
	}
	c.printResult(res, time.Since(start))
}

// cmdProbe round-trips a probe: targeted with an id, otherwise a
// broadcast answered by whichever device replies first.
func (c *Controller) cmdProbe(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Probing all devices...")
		start := time.Now()
		res, err := c.ctrl.ProbeAll(ctx)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Probe failed: %v\n", err)
			return
		}
		c.printResult(res, time.Since(start))
		return
	}

	id, err := parseDeviceID(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid device id: %v\n", err)
		return
	}

	start := time.Now()
	res, err := c.ctrl.Probe(ctx, id)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Probe failed: %v\n", err)
		return
	}
	c.printResult(res, time.Since(start))
}

// cmdLoad queues setpoints from a targets file without distributing.
func (c *Controller) cmdLoad(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: load <targets-file>")
		return
	}

	targets, err := feed.ParseFile(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Load failed: %v\n", err)
		return
	}
	if targets.Empty() {
		fmt.Fprintln(c.rl.Stdout(), "No setpoint rows in file")
		return
	}

	queued := c.ctrl.LoadTargets(targets)
	c.targets = targets

	fmt.Fprintf(c.rl.Stdout(), "Queued %d %s setpoint(s)\n", queued, targets.DataType)
	if targets.SkippedRows > 0 {
		fmt.Fprintf(c.rl.Stdout(), "  (%d row(s) skipped)\n", targets.SkippedRows)
	}
	fmt.Fprintln(c.rl.Stdout(), "Use 'run' to distribute")
}

// cmdRun distributes a targets file, or the last loaded one.
func (c *Controller) cmdRun(ctx context.Context, args []string) {
	if len(args) >= 1 {
		report, err := c.ctrl.ApplyFile(ctx, args[0])
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Run failed: %v\n", err)
			return
		}
		c.printReport(report)
		return
	}

	if c.targets == nil {
		fmt.Fprintln(c.rl.Stdout(), "Usage: run [targets-file]")
		fmt.Fprintln(c.rl.Stdout(), "  Plain 'run' distributes the last loaded file")
		return
	}

	report, err := c.ctrl.RunPlan(ctx, fleet.PlanFor(c.targets))
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Run failed: %v\n", err)
		return
	}
	c.printReport(report)
}

// cmdWatch starts the background feed watcher.
func (c *Controller) cmdWatch() {
	if c.watchRunning {
		fmt.Fprintln(c.rl.Stdout(), "Already watching")
		return
	}
	if c.config.FeedPath() == "" {
		fmt.Fprintln(c.rl.Stdout(), "No feed file configured (start with -feed)")
		return
	}

	c.watchCtx, c.watchCancel = context.WithCancel(context.Background())
	c.watchRunning = true
	go func(ctx context.Context) {
		if err := c.ctrl.Watch(ctx); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Watch stopped: %v\n", err)
		}
	}(c.watchCtx)

	fmt.Fprintf(c.rl.Stdout(), "Watching %s\n", c.config.FeedPath())
}

// cmdUnwatch stops the background feed watcher.
func (c *Controller) cmdUnwatch() {
	if !c.watchRunning {
		fmt.Fprintln(c.rl.Stdout(), "Not watching")
		return
	}
	c.watchCancel()
	c.watchRunning = false
	fmt.Fprintln(c.rl.Stdout(), "Watch stopped")
}

// cmdResponses shows recent device responses and session totals.
func (c *Controller) cmdResponses(args []string) {
	n := 10
	if len(args) >= 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			fmt.Fprintln(c.rl.Stdout(), "Usage: responses [count]")
			return
		}
		n = v
	}

	recent := c.ctrl.Responses().Recent(n)
	stats := c.ctrl.Responses().Stats()

	if len(recent) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No responses recorded")
	} else {
		fmt.Fprintf(c.rl.Stdout(), "\nRecent Responses (%d):\n", len(recent))
		for _, obs := range recent {
			fmt.Fprintf(c.rl.Stdout(), "  %s  [%3d]  %-20s %s\n",
				obs.At.Format("15:04:05.000"), obs.Response.DeviceID,
				obs.Response.Payload, obs.Addr)
		}
	}
	fmt.Fprintf(c.rl.Stdout(), "Totals: %d recorded, %d malformed\n",
		stats.Recorded, stats.Malformed)
}

// cmdStatus shows the controller status.
func (c *Controller) cmdStatus() {
	snap := c.ctrl.Status()

	fmt.Fprintln(c.rl.Stdout(), "\nController Status")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(c.rl.Stdout(), "  State:      %s\n", snap.State)
	fmt.Fprintf(c.rl.Stdout(), "  Links:      %d open\n", snap.Links)
	fmt.Fprintf(c.rl.Stdout(), "  Online:     %d of %d device(s)\n", snap.Online, len(snap.Devices))
	fmt.Fprintf(c.rl.Stdout(), "  Pending:    %d queued setpoint(s)\n", snap.Pending)

	run := "idle"
	if snap.RunActive {
		run = "active"
	}
	fmt.Fprintf(c.rl.Stdout(), "  Run:        %s\n", run)

	watch := "off"
	if c.watchRunning {
		watch = "on"
	}
	fmt.Fprintf(c.rl.Stdout(), "  Watch:      %s\n", watch)

	if c.config.FeedPath() != "" {
		fmt.Fprintf(c.rl.Stdout(), "  Feed file:  %s\n", c.config.FeedPath())
	}
	if c.config.StatePath() != "" {
		fmt.Fprintf(c.rl.Stdout(), "  State file: %s\n", c.config.StatePath())
	}
	fmt.Fprintln(c.rl.Stdout())
}

// printResult displays the outcome of a single-command exchange.
func (c *Controller) printResult(res respond.Result, elapsed time.Duration) {
	switch res.Outcome {
	case respond.OutcomeMatched:
		fmt.Fprintf(c.rl.Stdout(), "Reply from device %d in %s: %s\n",
			res.Observation.Response.DeviceID,
			elapsed.Round(time.Millisecond),
			res.Observation.Response.Payload)
	case respond.OutcomeTimeout:
		fmt.Fprintln(c.rl.Stdout(), "No reply (timeout)")
	case respond.OutcomeCancelled:
		fmt.Fprintln(c.rl.Stdout(), "Wait cancelled")
	}
	if res.WrongDevice > 0 {
		fmt.Fprintf(c.rl.Stdout(), "  (%d reply(s) from other devices while waiting)\n", res.WrongDevice)
	}
}

// printReport displays the tally of a distribution run.
func (c *Controller) printReport(r *schedule.Report) {
	fmt.Fprintf(c.rl.Stdout(), "Run complete: %d round(s), %d fresh, %d/%d delivered (%s)\n",
		r.Rounds, r.Fresh, r.Delivered, r.Attempted, r.Reason)
	if r.EncodeFailures > 0 {
		fmt.Fprintf(c.rl.Stdout(), "  Encode failures: %d\n", r.EncodeFailures)
	}
}

// IsWatching returns whether the feed watcher is running (for external access).
func (c *Controller) IsWatching() bool {
	return c.watchRunning
}

// parseDeviceID parses a device id argument. Ids are 1-255; zero is the
// wire protocol's unassigned marker and never names a device.
func parseDeviceID(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("device id must be 1-255, got %q", s)
	}
	if v == 0 {
		return 0, fmt.Errorf("device id must be 1-255, got 0")
	}
	return uint8(v), nil
}

// parseSendArgs parses the send command arguments. The data type
// defaults to velocity when omitted.
func parseSendArgs(args []string) (uint8, float64, wire.DataType, error) {
	if len(args) < 2 {
		return 0, 0, 0, fmt.Errorf("send needs a device id and a value")
	}

	id, err := parseDeviceID(args[0])
	if err != nil {
		return 0, 0, 0, err
	}

	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid value %q", args[1])
	}

	dt := wire.DataTypeVelocity
	if len(args) >= 3 {
		dt, err = wire.ParseDataType(args[2])
		if err != nil {
			return 0, 0, 0, err
		}
	}
	return id, value, dt, nil
}
