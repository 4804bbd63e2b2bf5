package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/focfleet/focfleet-go/pkg/log"
)

// DefaultPort is the default command link port devices listen on.
const DefaultPort = 7632

// ListenerConfig configures a device-side listener.
type ListenerConfig struct {
	// Address to listen on (default: ":7632").
	Address string

	// MaxMessageSize is the maximum frame payload size (default: 64KB).
	MaxMessageSize uint32

	// Logger for protocol logging (optional).
	Logger log.Logger

	// OnConnect is called when a controller link is established.
	OnConnect func(s *Session)

	// OnDisconnect is called when a controller link is closed.
	OnDisconnect func(s *Session)

	// OnMessage is called for each inbound frame payload.
	OnMessage func(s *Session, msg []byte)

	// OnError is called when an accept or read fails.
	OnError func(s *Session, err error)
}

// Listener accepts framed TCP links from the fleet controller.
type Listener struct {
	config ListenerConfig
	ln     net.Listener

	mu       sync.RWMutex
	sessions map[*Session]struct{}

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewListener creates a listener. Start must be called before links are
// accepted.
func NewListener(config ListenerConfig) *Listener {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}

	return &Listener{
		config:   config,
		sessions: make(map[*Session]struct{}),
	}
}

// Start binds the listen address and begins accepting links.
func (l *Listener) Start(ctx context.Context) error {
	if l.running.Load() {
		return fmt.Errorf("listener already running")
	}

	l.ctx, l.cancel = context.WithCancel(ctx)

	ln, err := net.Listen("tcp", l.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	l.ln = ln
	l.running.Store(true)

	l.wg.Add(1)
	go l.acceptLoop()

	return nil
}

// Stop closes the listener and all accepted links.
func (l *Listener) Stop() error {
	if !l.running.Load() {
		return nil
	}

	l.running.Store(false)
	l.cancel()

	if l.ln != nil {
		l.ln.Close()
	}

	l.mu.Lock()
	for s := range l.sessions {
		s.Close()
	}
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}

// Addr returns the bound listen address.
func (l *Listener) Addr() net.Addr {
	if l.ln != nil {
		return l.ln.Addr()
	}
	return nil
}

// SessionCount returns the number of live controller links.
func (l *Listener) SessionCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sessions)
}

// acceptLoop accepts incoming links.
func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for l.running.Load() {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.running.Load() && l.config.OnError != nil {
				l.config.OnError(nil, fmt.Errorf("accept error: %w", err))
			}
			continue
		}

		l.wg.Add(1)
		go l.handleSession(conn)
	}
}

// handleSession runs one controller link to completion.
func (l *Listener) handleSession(conn net.Conn) {
	defer l.wg.Done()

	connID := uuid.New().String()
	framer := NewFramerWithMaxSize(conn, l.config.MaxMessageSize)
	if l.config.Logger != nil {
		framer.SetLogger(l.config.Logger, connID)
	}

	s := &Session{
		conn:       conn,
		framer:     framer,
		listener:   l,
		closeCh:    make(chan struct{}),
		remoteAddr: conn.RemoteAddr(),
		connID:     connID,
	}

	l.logSessionState(s, "", "CONNECTED")

	l.mu.Lock()
	l.sessions[s] = struct{}{}
	l.mu.Unlock()

	if l.config.OnConnect != nil {
		l.config.OnConnect(s)
	}

	s.readLoop()

	l.mu.Lock()
	delete(l.sessions, s)
	l.mu.Unlock()

	l.logSessionState(s, "CONNECTED", "DISCONNECTED")

	if l.config.OnDisconnect != nil {
		l.config.OnDisconnect(s)
	}
}

// logSessionState logs a link state transition.
func (l *Listener) logSessionState(s *Session, oldState, newState string) {
	if l.config.Logger == nil {
		return
	}
	l.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		LocalRole:    log.RoleDevice,
		RemoteAddr:   s.remoteAddr.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
		},
	})
}

// Session is one controller link accepted by a listener.
type Session struct {
	conn       net.Conn
	framer     *Framer
	listener   *Listener
	closeCh    chan struct{}
	closeOnce  sync.Once
	remoteAddr net.Addr
	connID     string

	writeMu sync.Mutex
}

// RemoteAddr returns the controller's address.
func (s *Session) RemoteAddr() net.Addr {
	return s.remoteAddr
}

// ConnID returns the unique link identifier.
func (s *Session) ConnID() string {
	return s.connID
}

// Send writes one frame to the controller.
func (s *Session) Send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.closeCh:
		return ErrConnectionClosed
	default:
	}

	return s.framer.WriteFrame(data)
}

// Close closes the link.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		err = s.conn.Close()
	})
	return err
}

// readLoop reads frames until the link drops or is closed.
func (s *Session) readLoop() {
	for {
		select {
		case <-s.closeCh:
			return
		case <-s.listener.ctx.Done():
			return
		default:
		}

		data, err := s.framer.ReadFrame()
		if err != nil {
			if s.listener.config.OnError != nil && s.listener.running.Load() {
				select {
				case <-s.closeCh:
					// Already closing, don't report.
				default:
					s.listener.config.OnError(s, err)
				}
			}
			return
		}

		if s.listener.config.OnMessage != nil {
			s.listener.config.OnMessage(s, data)
		}
	}
}
