// Package device models the firmware half of the command link and hosts
// it behind a framed TCP listener for the fleet simulator.
//
// A [Model] reproduces the motor controller's packet handling. Frames
// that address the device apply one setpoint and produce the firmware's
// text acknowledgment ("<id>:SINGLE:<v>", "<id>:MULTI:<v>",
// "<id>:MULTI_STRUCT:<v>"); frames that address other devices are
// ignored without a reply. Payloads the firmware cannot decode are
// answered with "<id>:ERROR:UNKNOWN_PACKET", and the plain ASCII probe
// "HEARTBEAT" with "<id>:HEARTBEAT".
//
// A [Device] wraps a Model in a [transport.Listener], replies on the
// link each command arrived on and pushes an unsolicited heartbeat to
// every connected controller on a fixed period.
package device
