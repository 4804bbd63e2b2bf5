// Package transport provides framed TCP links between the fleet
// controller and motor controller devices.
//
// Command packets and device response text travel as opaque payloads in
// length-prefixed frames:
//
//	┌────────────────────────────────┐
//	│  command packets / responses   │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│            TCP                 │
//	└────────────────────────────────┘
//
// # Controller Side
//
// The controller holds a Pool: one link per device address. The pool
// fans all inbound payloads into a single notification channel and
// writes outbound packets to every link concurrently, gathering write
// errors per address so one dead link never blocks its siblings.
//
// # Device Side
//
// A device runs a Listener that accepts controller links and hands
// inbound frames to callbacks. There are no transport-level control
// messages; liveness is tracked above the transport from the devices'
// own response traffic.
//
// # Redial
//
// Links dropped by the network are redialed with exponential backoff
// (1s initial, 30s cap, 25% jitter) until the address is disconnected
// explicitly or the pool closes.
package transport
