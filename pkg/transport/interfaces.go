package transport

import (
	"io"
	"net"
)

// Broadcaster fans one frame out to every connected device link.
// Implemented by Pool; the scheduler depends on this interface only.
type Broadcaster interface {
	// Broadcast writes data to all links, gathering per-address errors.
	Broadcast(data []byte) BroadcastResult

	// SendTo writes data to the link for one address.
	SendTo(addr string, data []byte) error
}

// DeviceSession represents a controller link on the device side.
// Implemented by Session.
type DeviceSession interface {
	// RemoteAddr returns the controller's address.
	RemoteAddr() net.Addr

	// Send writes one frame to the controller.
	Send(data []byte) error

	// Close closes the link.
	Close() error
}

// FrameReadWriter provides length-prefixed frame I/O.
// Implemented by Framer.
type FrameReadWriter interface {
	// ReadFrame reads a length-prefixed frame.
	ReadFrame() ([]byte, error)

	// WriteFrame writes a length-prefixed frame.
	WriteFrame(data []byte) error
}

// Compile-time interface satisfaction checks.
var (
	_ Broadcaster     = (*Pool)(nil)
	_ DeviceSession   = (*Session)(nil)
	_ FrameReadWriter = (*Framer)(nil)
	_ io.Closer       = (*Session)(nil)
)
