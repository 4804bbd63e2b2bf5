package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/focfleet/focfleet-go/pkg/log"
)

// Pool errors.
var (
	ErrPoolClosed       = errors.New("pool closed")
	ErrAlreadyConnected = errors.New("already connected")
	ErrNotConnected     = errors.New("not connected")
	ErrConnectionClosed = errors.New("connection closed")
)

// Notification carries one inbound payload from a pooled link.
type Notification struct {
	// Addr is the address the link was dialed with.
	Addr string

	// ConnID is the unique link identifier.
	ConnID string

	// Data is the frame payload.
	Data []byte
}

// SendError records a failed write to one address.
type SendError struct {
	Addr string
	Err  error
}

func (e SendError) Error() string { return fmt.Sprintf("%s: %v", e.Addr, e.Err) }

func (e SendError) Unwrap() error { return e.Err }

// BroadcastResult reports the outcome of one fan-out write.
type BroadcastResult struct {
	// Targets is the number of links written to.
	Targets int

	// Errors holds one entry per failed link, sorted by address.
	Errors []SendError
}

// Delivered returns the number of successful writes.
func (r BroadcastResult) Delivered() int { return r.Targets - len(r.Errors) }

// Ok reports whether every write succeeded.
func (r BroadcastResult) Ok() bool { return len(r.Errors) == 0 }

// PoolConfig configures a controller-side link pool.
type PoolConfig struct {
	// MaxMessageSize is the maximum frame payload size (default: 64KB).
	MaxMessageSize uint32

	// DialTimeout bounds each dial attempt (default: 5s).
	DialTimeout time.Duration

	// WriteTimeout bounds each frame write (default: 2s).
	WriteTimeout time.Duration

	// NotifyBuffer is the notification channel capacity (default: 256).
	NotifyBuffer int

	// Redial enables backoff redial of links dropped by the network.
	Redial bool

	// RedialInitial is the first redial delay (default: 1s).
	RedialInitial time.Duration

	// RedialMax caps the redial delay (default: 30s).
	RedialMax time.Duration

	// Logger for protocol logging (optional).
	Logger log.Logger

	// OnConnect is called when a link is established, including redials.
	OnConnect func(addr string)

	// OnDisconnect is called when a link drops for a reason other than
	// an explicit Disconnect, DisconnectAll or Close.
	OnDisconnect func(addr string, err error)
}

// Pool maintains one framed TCP link per device address.
//
// All inbound payloads are fanned into a single notification channel.
// Writes go out per address or to every link at once via Broadcast.
type Pool struct {
	config PoolConfig

	mu      sync.RWMutex
	links   map[string]*link
	redials map[string]chan struct{}

	notify chan Notification
	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewPool creates an empty link pool.
func NewPool(config PoolConfig) *Pool {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 2 * time.Second
	}
	if config.NotifyBuffer == 0 {
		config.NotifyBuffer = 256
	}
	if config.RedialInitial == 0 {
		config.RedialInitial = DefaultRedialInitial
	}
	if config.RedialMax == 0 {
		config.RedialMax = DefaultRedialMax
	}

	return &Pool{
		config:  config,
		links:   make(map[string]*link),
		redials: make(map[string]chan struct{}),
		notify:  make(chan Notification, config.NotifyBuffer),
	}
}

// Notifications returns the fan-in channel of inbound payloads.
// The channel is closed by Close.
func (p *Pool) Notifications() <-chan Notification {
	return p.notify
}

// Connect dials addr and adds the link to the pool.
func (p *Pool) Connect(ctx context.Context, addr string) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	p.mu.RLock()
	_, exists := p.links[addr]
	p.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, addr)
	}

	l, err := p.dial(ctx, addr)
	if err != nil {
		return err
	}

	return p.register(l, "")
}

// dial establishes one link. The link is not yet registered.
func (p *Pool) dial(ctx context.Context, addr string) (*link, error) {
	dialer := &net.Dialer{Timeout: p.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	connID := uuid.New().String()
	framer := NewFramerWithMaxSize(conn, p.config.MaxMessageSize)
	if p.config.Logger != nil {
		framer.SetLogger(p.config.Logger, connID)
	}

	return &link{
		addr:    addr,
		id:      connID,
		conn:    conn,
		framer:  framer,
		closeCh: make(chan struct{}),
	}, nil
}

// register adds a dialed link to the pool and starts its read loop.
func (p *Pool) register(l *link, oldState string) error {
	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		l.close()
		return ErrPoolClosed
	}
	if _, ok := p.links[l.addr]; ok {
		p.mu.Unlock()
		l.close()
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, l.addr)
	}
	p.links[l.addr] = l
	p.wg.Add(1)
	p.mu.Unlock()

	p.logLinkState(l, oldState, "CONNECTED", "")
	go p.readLoop(l)

	if p.config.OnConnect != nil {
		p.config.OnConnect(l.addr)
	}
	return nil
}

// readLoop reads frames from one link until it drops or is closed.
func (p *Pool) readLoop(l *link) {
	defer p.wg.Done()

	for {
		data, err := l.framer.ReadFrame()
		if err != nil {
			p.handleLinkDrop(l, err)
			return
		}

		select {
		case p.notify <- Notification{Addr: l.addr, ConnID: l.id, Data: data}:
		case <-l.closeCh:
			return
		}
	}
}

// handleLinkDrop unregisters a link whose read failed and schedules a
// redial when enabled. Explicit closes are quiet.
func (p *Pool) handleLinkDrop(l *link, err error) {
	select {
	case <-l.closeCh:
		return
	default:
	}
	if p.closed.Load() {
		return
	}

	p.mu.Lock()
	if p.links[l.addr] == l {
		delete(p.links, l.addr)
	}
	p.mu.Unlock()
	l.close()

	p.logLinkState(l, "CONNECTED", "DISCONNECTED", err.Error())
	if p.config.OnDisconnect != nil {
		p.config.OnDisconnect(l.addr, err)
	}

	// Runs before the read loop releases its wg slot; the wait group
	// cannot drain during the handoff.
	if p.config.Redial {
		p.scheduleRedial(l.addr)
	}
}

// scheduleRedial starts a backoff redial loop for addr unless one is
// already running or the address was relinked in the meantime.
func (p *Pool) scheduleRedial(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return
	}
	if _, ok := p.redials[addr]; ok {
		return
	}
	if _, ok := p.links[addr]; ok {
		return
	}

	stop := make(chan struct{})
	p.redials[addr] = stop
	p.wg.Add(1)
	go p.redialLoop(addr, stop)
}

// redialLoop retries addr with exponential backoff until it succeeds,
// the address is disconnected or the pool closes.
func (p *Pool) redialLoop(addr string, stop chan struct{}) {
	defer p.wg.Done()

	backoff := NewBackoff(p.config.RedialInitial, p.config.RedialMax)
	for {
		timer := time.NewTimer(backoff.Next())
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		l, err := p.dial(context.Background(), addr)
		if err != nil {
			continue
		}

		p.mu.Lock()
		select {
		case <-stop:
			p.mu.Unlock()
			l.close()
			return
		default:
		}
		delete(p.redials, addr)
		if _, ok := p.links[addr]; ok {
			p.mu.Unlock()
			l.close()
			return
		}
		p.links[addr] = l
		p.wg.Add(1)
		p.mu.Unlock()

		p.logLinkState(l, "REDIALING", "CONNECTED", "")
		go p.readLoop(l)

		if p.config.OnConnect != nil {
			p.config.OnConnect(addr)
		}
		return
	}
}

// SendTo writes one frame to the link for addr.
func (p *Pool) SendTo(addr string, data []byte) error {
	p.mu.RLock()
	l, ok := p.links[addr]
	p.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, addr)
	}
	return l.send(data, p.config.WriteTimeout)
}

// Broadcast writes one frame to every link concurrently.
//
// Failures are gathered per address; a dead link never blocks or fails
// the writes to its siblings.
func (p *Pool) Broadcast(data []byte) BroadcastResult {
	p.mu.RLock()
	links := make([]*link, 0, len(p.links))
	for _, l := range p.links {
		links = append(links, l)
	}
	p.mu.RUnlock()

	result := BroadcastResult{Targets: len(links)}
	if len(links) == 0 {
		return result
	}

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
	)
	for _, l := range links {
		wg.Add(1)
		go func(l *link) {
			defer wg.Done()
			if err := l.send(data, p.config.WriteTimeout); err != nil {
				errMu.Lock()
				result.Errors = append(result.Errors, SendError{Addr: l.addr, Err: err})
				errMu.Unlock()
			}
		}(l)
	}
	wg.Wait()

	sort.Slice(result.Errors, func(i, j int) bool {
		return result.Errors[i].Addr < result.Errors[j].Addr
	})
	return result
}

// Disconnect closes the link for addr and cancels any pending redial.
func (p *Pool) Disconnect(addr string) error {
	p.mu.Lock()
	hadRedial := false
	if stop, ok := p.redials[addr]; ok {
		delete(p.redials, addr)
		close(stop)
		hadRedial = true
	}
	l, ok := p.links[addr]
	if ok {
		delete(p.links, addr)
	}
	p.mu.Unlock()

	if !ok {
		if hadRedial {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrNotConnected, addr)
	}

	l.close()
	p.logLinkState(l, "CONNECTED", "DISCONNECTED", "disconnect requested")
	return nil
}

// DisconnectAll closes every link and cancels pending redials.
// Close errors are swallowed; shutdown stays quiet.
func (p *Pool) DisconnectAll() {
	p.mu.Lock()
	links := make([]*link, 0, len(p.links))
	for _, l := range p.links {
		links = append(links, l)
	}
	p.links = make(map[string]*link)
	for addr, stop := range p.redials {
		close(stop)
		delete(p.redials, addr)
	}
	p.mu.Unlock()

	for _, l := range links {
		l.close()
		p.logLinkState(l, "CONNECTED", "DISCONNECTED", "shutdown")
	}
}

// Close shuts the pool down: all links drop, all loops stop and the
// notification channel is closed.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	p.DisconnectAll()
	p.wg.Wait()
	close(p.notify)
}

// Connected reports whether a live link exists for addr.
func (p *Pool) Connected(addr string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.links[addr]
	return ok
}

// Addrs returns the addresses of all live links, sorted.
func (p *Pool) Addrs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	addrs := make([]string, 0, len(p.links))
	for addr := range p.links {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// Count returns the number of live links.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.links)
}

// logLinkState logs a connection state transition.
func (p *Pool) logLinkState(l *link, oldState, newState, reason string) {
	if p.config.Logger == nil {
		return
	}
	p.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: l.id,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		LocalRole:    log.RoleController,
		RemoteAddr:   l.addr,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// link is one framed TCP connection to a device.
type link struct {
	addr   string
	id     string
	conn   net.Conn
	framer *Framer

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeCh   chan struct{}
}

// send writes one frame with an optional write deadline.
func (l *link) send(data []byte, timeout time.Duration) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	select {
	case <-l.closeCh:
		return ErrConnectionClosed
	default:
	}

	if timeout > 0 {
		l.conn.SetWriteDeadline(time.Now().Add(timeout))
		defer l.conn.SetWriteDeadline(time.Time{})
	}
	return l.framer.WriteFrame(data)
}

// close tears the link down. Safe to call more than once.
func (l *link) close() {
	l.closeOnce.Do(func() {
		close(l.closeCh)
		l.conn.Close()
	})
}
