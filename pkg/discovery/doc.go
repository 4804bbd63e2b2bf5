// Package discovery announces and finds motor controllers on the
// local network using mDNS/DNS-SD.
//
// # Advertising (_focfleet._tcp)
//
// Each controller (or the simulator standing in for one) advertises a
// single service instance named "Motor-Controller-<id>". TXT records
// carry the controller id, an optional display name, and the firmware
// version:
//
//	id=3 name=Pan-Axis fw=dfoc-1.4.2
//
// One MDNSAdvertiser can carry announcements for many device ids,
// which is how a single simulator process stands in for a whole
// fleet.
//
// # Browsing
//
// The browser filters instance names against a keyword list (ESP32,
// DengFOC, DFOC, Motor and Controller by default) so unrelated
// services are never surfaced, decodes the TXT records, and
// aggregates entries seen on multiple interfaces into one result per
// instance. Scan collects results for a bounded window; FindByID
// blocks until a specific controller shows up.
package discovery
