// Package fleet assembles the controller side of the system. One
// Controller owns the transport link pool, the per-device setpoint
// queues, liveness tracking, response correlation and the round
// scheduler, and exposes the operations the command-line tools are
// built from: discover, connect, load targets, run plans, probe and
// watch a control feed.
//
// The Controller is deliberately thin glue. Wire formats live in
// pkg/wire, buffering in pkg/setpoint, pacing in pkg/schedule; this
// package only decides how those parts see each other.
package fleet
