package fleet

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/focfleet/focfleet-go/pkg/clock"
	"github.com/focfleet/focfleet-go/pkg/discovery"
	"github.com/focfleet/focfleet-go/pkg/feed"
	"github.com/focfleet/focfleet-go/pkg/health"
	"github.com/focfleet/focfleet-go/pkg/log"
	"github.com/focfleet/focfleet-go/pkg/metrics"
	"github.com/focfleet/focfleet-go/pkg/respond"
	"github.com/focfleet/focfleet-go/pkg/schedule"
	"github.com/focfleet/focfleet-go/pkg/setpoint"
	"github.com/focfleet/focfleet-go/pkg/transport"
	"github.com/focfleet/focfleet-go/pkg/wire"
)

// deviceRecord is the registry entry for one known motor controller.
// The address is pinned by discovery or Connect and refreshed from
// response traffic, so broadcasts can be narrowed to a direct write.
type deviceRecord struct {
	id       uint8
	name     string
	firmware string
	addr     string
	lastSeen time.Time
}

// Controller owns the controller side of a motor fleet: the link
// pool, the setpoint queues, liveness tracking, response correlation
// and the round scheduler. All methods are safe for concurrent use.
//
// A Controller must be started before devices can be linked and
// stopped to release its links and background loops. Cancelling the
// Start context stops the liveness sweep but leaves links open; Stop
// is the way to shut down.
type Controller struct {
	config Config
	logger log.Logger
	clk    clock.Clock
	meter  *metrics.Metrics

	pool       *transport.Pool
	sender     *meteredSender
	store      *setpoint.Store
	tracker    *health.Tracker
	correlator *respond.Correlator
	scheduler  *schedule.Scheduler
	states     *StateStore

	mu        sync.RWMutex
	state     ControllerState
	devices   map[uint8]*deviceRecord
	byAddr    map[string]uint8
	handlers  []EventHandler
	browser   discovery.Browser
	runActive bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a controller from the given config.
func New(config Config) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = log.NoopLogger{}
	}
	if config.Clock == nil {
		config.Clock = clock.System{}
	}

	c := &Controller{
		config:     config,
		logger:     config.Logger,
		clk:        config.Clock,
		meter:      config.Metrics,
		store:      setpoint.NewStore(),
		correlator: respond.NewCorrelator(config.Clock),
		devices:    make(map[uint8]*deviceRecord),
		byAddr:     make(map[string]uint8),
		browser:    config.Browser,
		state:      StateIdle,
	}

	c.tracker = health.NewTracker(health.Config{
		CheckInterval:    config.LivenessSweep(),
		OfflineThreshold: config.OfflineAfter(),
	}, config.Clock)
	c.tracker.SetOnlineCallback(c.handleDeviceOnline)
	c.tracker.SetOfflineCallback(c.handleDeviceOffline)

	c.pool = transport.NewPool(transport.PoolConfig{
		Logger:       config.Logger,
		Redial:       config.Redial,
		OnConnect:    c.handleLinkUp,
		OnDisconnect: c.handleLinkDown,
	})
	c.sender = &meteredSender{pool: c.pool, metrics: config.Metrics}

	scheduler, err := schedule.New(schedule.Config{
		Store:   c.store,
		Sender:  c.sender,
		Clock:   config.Clock,
		Logger:  config.Logger,
		OnRound: c.observeRound,
	})
	if err != nil {
		return nil, err
	}
	c.scheduler = scheduler

	if config.StatePath != "" {
		c.states = NewStateStore(config.StatePath)
	}
	return c, nil
}

// Start loads the persisted registry and brings up liveness tracking
// and the response intake loop. Known devices are remembered, not
// redialed; linking stays an explicit Connect.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateStarting || c.state == StateRunning {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = StateStarting
	c.mu.Unlock()

	if err := c.loadState(); err != nil {
		c.mu.Lock()
		c.state = StateStopped
		c.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.tracker.Start(runCtx)

	c.wg.Add(1)
	go c.intake()

	c.mu.Lock()
	c.state = StateRunning
	c.mu.Unlock()
	return nil
}

// Stop closes every link and shuts the controller down. The fleet
// state file is written last so it reflects the final registry.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state != StateRunning && c.state != StateStarting {
		c.mu.Unlock()
		return ErrNotStarted
	}
	c.state = StateStopping
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.pool.Close()
	c.tracker.Stop()
	c.correlator.Close()
	c.wg.Wait()

	err := c.saveState()

	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()
	return err
}

// State returns the controller lifecycle state.
func (c *Controller) State() ControllerState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// OnEvent registers a handler for controller events. Handlers run on
// their own goroutines, so a slow consumer cannot stall the intake or
// broadcast paths.
func (c *Controller) OnEvent(handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Responses exposes the response correlator for inspection.
func (c *Controller) Responses() *respond.Correlator {
	return c.correlator
}

// Discover scans mDNS for motor controllers. Results are ordered by
// device id; every hit is also announced via EventDeviceDiscovered.
func (c *Controller) Discover(ctx context.Context) ([]*discovery.DeviceService, error) {
	if err := c.requireRunning(); err != nil {
		return nil, err
	}
	browser, err := c.ensureBrowser()
	if err != nil {
		return nil, err
	}
	services, err := browser.Scan(ctx, c.config.DiscoveryTimeout())
	if err != nil {
		return nil, err
	}
	for _, svc := range services {
		c.emitEvent(Event{
			Type:     EventDeviceDiscovered,
			DeviceID: svc.DeviceID,
			Addr:     svc.Addr(),
			Name:     svc.Name,
		})
	}
	return services, nil
}

// Connect registers a discovered device and opens its command link.
// Reconnecting a known device refreshes its registry entry.
func (c *Controller) Connect(ctx context.Context, svc *discovery.DeviceService) error {
	if err := c.requireRunning(); err != nil {
		return err
	}
	if svc.DeviceID == 0 {
		return fmt.Errorf("%w: %q has no device id", ErrDeviceNotFound, svc.InstanceName)
	}
	addr := svc.Addr()
	if addr == "" {
		return fmt.Errorf("device %d has no resolved address", svc.DeviceID)
	}

	c.mu.Lock()
	if !c.pool.Connected(addr) && c.pool.Count() >= c.config.MaxDevices {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d links", ErrFleetFull, c.config.MaxDevices)
	}
	rec, ok := c.devices[svc.DeviceID]
	if !ok {
		rec = &deviceRecord{id: svc.DeviceID}
		c.devices[svc.DeviceID] = rec
	}
	rec.name = svc.Name
	rec.firmware = svc.Firmware
	rec.addr = addr
	c.byAddr[addr] = svc.DeviceID
	c.mu.Unlock()

	return c.pool.Connect(ctx, addr)
}

// ConnectByID browses until the device with the given id appears,
// then opens its command link.
func (c *Controller) ConnectByID(ctx context.Context, deviceID uint8) error {
	if err := c.requireRunning(); err != nil {
		return err
	}
	browser, err := c.ensureBrowser()
	if err != nil {
		return err
	}
	findCtx, cancel := context.WithTimeout(ctx, c.config.DiscoveryTimeout())
	defer cancel()

	svc, err := browser.FindByID(findCtx, deviceID)
	if err != nil {
		return err
	}
	return c.Connect(ctx, svc)
}

// ConnectAddr opens a command link to an explicit address, bypassing
// discovery. The id behind the link is learned from its responses.
func (c *Controller) ConnectAddr(ctx context.Context, addr string) error {
	if err := c.requireRunning(); err != nil {
		return err
	}
	c.mu.RLock()
	full := !c.pool.Connected(addr) && c.pool.Count() >= c.config.MaxDevices
	c.mu.RUnlock()
	if full {
		return fmt.Errorf("%w: %d links", ErrFleetFull, c.config.MaxDevices)
	}
	return c.pool.Connect(ctx, addr)
}

// Disconnect closes the link of one device. The device stays in the
// registry but is no longer tracked for liveness.
func (c *Controller) Disconnect(deviceID uint8) error {
	if err := c.requireRunning(); err != nil {
		return err
	}
	addr, ok := c.addrOf(deviceID)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrDeviceNotFound, deviceID)
	}
	c.tracker.Forget(addr)
	err := c.pool.Disconnect(addr)
	c.updateGauges()
	return err
}

// LoadTargets queues parsed setpoint rows and widens the id space to
// cover every addressed device. Returns the number of queued values.
func (c *Controller) LoadTargets(targets *feed.Targets) int {
	loaded := c.store.Load(targets.Setpoints)
	if max := targets.MaxDeviceID(); max > 0 {
		c.store.Ensure(max)
	}
	c.updateGauges()
	return loaded
}

// RunPlan executes one distribution run against the queued setpoints.
// Only one run may be active at a time.
func (c *Controller) RunPlan(ctx context.Context, plan schedule.Plan) (*schedule.Report, error) {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return nil, ErrNotStarted
	}
	if c.runActive {
		c.mu.Unlock()
		return nil, ErrRunActive
	}
	c.runActive = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.runActive = false
		c.mu.Unlock()
	}()

	c.emitEvent(Event{Type: EventRunStarted})
	report, err := c.scheduler.Run(ctx, plan)
	if err != nil {
		c.emitEvent(Event{Type: EventRunStopped, Error: err})
		return nil, err
	}

	if c.meter != nil {
		c.meter.EncodeFailures.Add(float64(report.EncodeFailures))
	}
	c.updateGauges()
	c.emitEvent(Event{Type: EventRunStopped, Report: report})
	return report, nil
}

// ApplyFile parses one targets file, queues its rows and runs the
// plan it describes to completion.
func (c *Controller) ApplyFile(ctx context.Context, path string) (*schedule.Report, error) {
	if err := c.requireRunning(); err != nil {
		return nil, err
	}
	targets, err := feed.ParseFile(path)
	if err != nil {
		if c.meter != nil {
			c.meter.FeedParseFailures.Inc()
		}
		return nil, err
	}
	if targets.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrNoTargets, path)
	}
	if c.meter != nil {
		c.meter.FeedReloads.Inc()
	}
	c.LoadTargets(targets)
	return c.RunPlan(ctx, PlanFor(targets))
}

// Watch polls the configured targets file and applies every content
// change as it lands. It blocks until ctx ends.
func (c *Controller) Watch(ctx context.Context) error {
	if err := c.requireRunning(); err != nil {
		return err
	}
	if c.config.FeedPath == "" {
		return ErrNoFeed
	}

	watcher := feed.NewWatcher(feed.WatcherConfig{
		Path:     c.config.FeedPath,
		Interval: c.config.FeedPoll(),
		Clock:    c.clk,
		Logger:   c.logger,
		OnUpdate: func(u feed.Update) { c.applyUpdate(ctx, u) },
		OnError: func(error) {
			if c.meter != nil {
				c.meter.FeedParseFailures.Inc()
			}
		},
	})
	watcher.Run(ctx)
	return nil
}

// SendSingle encodes one addressed setpoint, routes it to the learned
// address when there is one and waits for the acknowledgement. A
// timeout is a normal outcome, reported in the result.
func (c *Controller) SendSingle(ctx context.Context, deviceID uint8, value float64, dt wire.DataType) (respond.Result, error) {
	if err := c.requireRunning(); err != nil {
		return respond.Result{}, err
	}
	packet, err := wire.EncodeSingle(deviceID, value, dt)
	if err != nil {
		return respond.Result{}, err
	}
	return c.deliver(ctx, deviceID, packet), nil
}

// Probe sends the liveness probe to one device and waits for its
// heartbeat reply.
func (c *Controller) Probe(ctx context.Context, deviceID uint8) (respond.Result, error) {
	if err := c.requireRunning(); err != nil {
		return respond.Result{}, err
	}
	if deviceID == 0 {
		return respond.Result{}, fmt.Errorf("%w: id 0", ErrDeviceNotFound)
	}
	return c.deliver(ctx, deviceID, []byte(wire.ProbeMessage)), nil
}

// ProbeAll broadcasts the liveness probe over every link and waits for
// the first reply from any device.
func (c *Controller) ProbeAll(ctx context.Context) (respond.Result, error) {
	if err := c.requireRunning(); err != nil {
		return respond.Result{}, err
	}
	wait := c.correlator.WaitAny()
	c.sender.Broadcast([]byte(wire.ProbeMessage))
	return wait.Await(ctx, c.config.ResponseTimeout()), nil
}

// Status returns a point-in-time snapshot of the fleet.
func (c *Controller) Status() Snapshot {
	liveness := make(map[string]health.DeviceHealth)
	for _, h := range c.tracker.Snapshot() {
		liveness[h.Addr] = h
	}

	c.mu.RLock()
	snap := Snapshot{
		State:     c.state,
		Links:     c.pool.Count(),
		Pending:   c.store.PendingCount(),
		RunActive: c.runActive,
		Devices:   make([]DeviceStatus, 0, len(c.devices)),
	}
	for _, rec := range c.devices {
		status := DeviceStatus{
			DeviceID: rec.id,
			Name:     rec.name,
			Firmware: rec.firmware,
			Addr:     rec.addr,
			Linked:   rec.addr != "" && c.pool.Connected(rec.addr),
			LastSeen: rec.lastSeen,
		}
		if h, ok := liveness[rec.addr]; ok {
			status.Online = h.Online
			if h.LastActivity.After(status.LastSeen) {
				status.LastSeen = h.LastActivity
			}
		}
		snap.Devices = append(snap.Devices, status)
	}
	c.mu.RUnlock()

	snap.Online = c.tracker.OnlineCount()
	sort.Slice(snap.Devices, func(i, j int) bool {
		return snap.Devices[i].DeviceID < snap.Devices[j].DeviceID
	})
	return snap
}

// PlanFor derives the distribution plan a targets file asks for.
func PlanFor(targets *feed.Targets) schedule.Plan {
	return schedule.Plan{
		MaxDeviceID: targets.MaxDeviceID(),
		GroupSize:   targets.GroupSize,
		TargetHz:    targets.PerDeviceHz,
		MaxRounds:   targets.MaxRounds,
		DataType:    targets.DataType,
		Mode:        targets.Mode,
	}
}

// applyUpdate runs the plan behind one feed change. Failures degrade
// to events; the watcher keeps polling regardless.
func (c *Controller) applyUpdate(ctx context.Context, u feed.Update) {
	if c.meter != nil {
		c.meter.FeedReloads.Inc()
	}
	c.LoadTargets(u.Targets)
	if u.Targets.Empty() {
		c.emitEvent(Event{Type: EventFeedApplied, Error: ErrNoTargets})
		return
	}
	report, err := c.RunPlan(ctx, PlanFor(u.Targets))
	if err != nil {
		c.emitEvent(Event{Type: EventFeedApplied, Error: err})
		return
	}
	c.emitEvent(Event{Type: EventFeedApplied, Report: report})
}

// deliver registers the response wait before the packet leaves, so a
// fast reply cannot outrun the correlator. Unroutable or failed
// direct writes fall back to a broadcast.
func (c *Controller) deliver(ctx context.Context, deviceID uint8, packet []byte) respond.Result {
	wait := c.correlator.WaitFor(int(deviceID))

	if addr, ok := c.addrOf(deviceID); ok {
		if err := c.sender.SendTo(addr, packet); err != nil {
			c.sender.Broadcast(packet)
		}
	} else {
		c.sender.Broadcast(packet)
	}

	return wait.Await(ctx, c.config.ResponseTimeout())
}

func (c *Controller) intake() {
	defer c.wg.Done()
	for n := range c.pool.Notifications() {
		c.dispatch(n)
	}
}

// dispatch handles one inbound frame: parse, track liveness, learn
// the id behind the address, then hand the response to the correlator.
func (c *Controller) dispatch(n transport.Notification) {
	resp, err := wire.ParseResponse(n.Data)
	if err != nil {
		c.correlator.NoteMalformed()
		if c.meter != nil {
			c.meter.MalformedResponses.Inc()
		}
		c.logMalformed(n, err)
		return
	}

	c.tracker.Touch(n.Addr)
	c.learn(resp.DeviceID, n.Addr)
	c.correlator.Record(n.Addr, resp)
	if c.meter != nil {
		c.meter.ResponsesTotal.WithLabelValues(resp.Kind()).Inc()
	}
	c.logResponse(n, resp)
}

// learn pins the id behind an address from response traffic, so links
// opened without discovery metadata become routable.
func (c *Controller) learn(deviceID int, addr string) {
	if deviceID < 1 || deviceID > 255 {
		return
	}
	id := uint8(deviceID)
	now := c.clk.Now()

	c.mu.Lock()
	rec, ok := c.devices[id]
	if !ok {
		rec = &deviceRecord{id: id}
		c.devices[id] = rec
	}
	if rec.addr != "" && rec.addr != addr && c.byAddr[rec.addr] == id {
		delete(c.byAddr, rec.addr)
	}
	rec.addr = addr
	rec.lastSeen = now
	c.byAddr[addr] = id
	c.mu.Unlock()
}

func (c *Controller) addrOf(deviceID uint8) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.devices[deviceID]
	if !ok || rec.addr == "" {
		return "", false
	}
	return rec.addr, true
}

func (c *Controller) idFor(addr string) uint8 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byAddr[addr]
}

func (c *Controller) requireRunning() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateRunning {
		return ErrNotStarted
	}
	return nil
}

func (c *Controller) ensureBrowser() (discovery.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser != nil {
		return c.browser, nil
	}
	browser, err := discovery.NewMDNSBrowser(discovery.BrowserConfig{
		BrowseTimeout: c.config.DiscoveryTimeout(),
		Interface:     c.config.Interface,
		Keywords:      c.config.Keywords,
	})
	if err != nil {
		return nil, err
	}
	c.browser = browser
	return browser, nil
}

func (c *Controller) handleLinkUp(addr string) {
	name := ""
	c.mu.RLock()
	if id, ok := c.byAddr[addr]; ok {
		if rec, ok := c.devices[id]; ok {
			name = rec.name
		}
	}
	c.mu.RUnlock()

	c.tracker.MarkConnected(addr, name)
	c.updateGauges()
	c.emitEvent(Event{Type: EventLinkUp, DeviceID: c.idFor(addr), Addr: addr, Name: name})
}

func (c *Controller) handleLinkDown(addr string, err error) {
	c.updateGauges()
	c.emitEvent(Event{Type: EventLinkDown, DeviceID: c.idFor(addr), Addr: addr, Error: err})
}

func (c *Controller) handleDeviceOnline(h health.DeviceHealth) {
	c.updateGauges()
	c.logLiveness(h.Addr, "OFFLINE", "ONLINE", "traffic resumed")
	c.emitEvent(Event{Type: EventDeviceOnline, DeviceID: c.idFor(h.Addr), Addr: h.Addr, Name: h.Name})
}

func (c *Controller) handleDeviceOffline(h health.DeviceHealth) {
	c.updateGauges()
	c.logLiveness(h.Addr, "ONLINE", "OFFLINE", fmt.Sprintf("no traffic for %s", c.config.OfflineAfter()))
	c.emitEvent(Event{Type: EventDeviceOffline, DeviceID: c.idFor(h.Addr), Addr: h.Addr, Name: h.Name})
	if c.config.DisconnectOffline {
		_ = c.pool.Disconnect(h.Addr)
	}
}

func (c *Controller) observeRound(r schedule.RoundReport) {
	if c.meter == nil {
		return
	}
	c.meter.RoundsTotal.Inc()
	c.meter.FreshSetpoints.Add(float64(r.Fresh))
	c.meter.SetpointsPending.Set(float64(c.store.PendingCount()))
}

func (c *Controller) updateGauges() {
	if c.meter == nil {
		return
	}
	c.meter.LinksOpen.Set(float64(c.pool.Count()))
	c.meter.DevicesOnline.Set(float64(c.tracker.OnlineCount()))
	c.meter.SetpointsPending.Set(float64(c.store.PendingCount()))
}

func (c *Controller) emitEvent(event Event) {
	c.mu.RLock()
	handlers := make([]EventHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.RUnlock()

	for _, handler := range handlers {
		go handler(event)
	}
}

func (c *Controller) loadState() error {
	if c.states == nil {
		return nil
	}
	state, err := c.states.Load()
	if err != nil {
		return fmt.Errorf("loading fleet state: %w", err)
	}
	if state == nil {
		return nil
	}

	c.mu.Lock()
	for _, d := range state.Devices {
		if d.DeviceID == 0 {
			continue
		}
		c.devices[d.DeviceID] = &deviceRecord{
			id:       d.DeviceID,
			name:     d.Name,
			firmware: d.Firmware,
			addr:     d.Addr,
			lastSeen: d.LastSeen,
		}
		if d.Addr != "" {
			c.byAddr[d.Addr] = d.DeviceID
		}
	}
	c.mu.Unlock()
	return nil
}

func (c *Controller) saveState() error {
	if c.states == nil {
		return nil
	}

	c.mu.RLock()
	state := &State{SavedAt: c.clk.Now()}
	for _, rec := range c.devices {
		state.Devices = append(state.Devices, KnownDevice{
			DeviceID: rec.id,
			Name:     rec.name,
			Firmware: rec.firmware,
			Addr:     rec.addr,
			LastSeen: rec.lastSeen,
		})
	}
	c.mu.RUnlock()

	sort.Slice(state.Devices, func(i, j int) bool {
		return state.Devices[i].DeviceID < state.Devices[j].DeviceID
	})
	return c.states.Save(state)
}

func (c *Controller) logResponse(n transport.Notification, resp wire.Response) {
	c.logger.Log(log.Event{
		Timestamp:    c.clk.Now(),
		ConnectionID: n.ConnID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryResponse,
		LocalRole:    log.RoleController,
		RemoteAddr:   n.Addr,
		DeviceID:     resp.DeviceID,
		Response:     &log.ResponseEvent{Payload: resp.Payload},
	})
}

func (c *Controller) logMalformed(n transport.Notification, err error) {
	c.logger.Log(log.Event{
		Timestamp:    c.clk.Now(),
		ConnectionID: n.ConnID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryError,
		LocalRole:    log.RoleController,
		RemoteAddr:   n.Addr,
		Error: &log.ErrorEventData{
			Layer:   log.LayerWire,
			Message: err.Error(),
			Context: "parse device response",
		},
	})
}

func (c *Controller) logLiveness(addr, oldState, newState, reason string) {
	c.logger.Log(log.Event{
		Timestamp:  c.clk.Now(),
		Direction:  log.DirectionIn,
		Layer:      log.LayerFleet,
		Category:   log.CategoryState,
		LocalRole:  log.RoleController,
		RemoteAddr: addr,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityLiveness,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
