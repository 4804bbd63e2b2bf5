// Package health tracks motor controller liveness from observed traffic.
//
// The [Tracker] never probes devices itself: any inbound response counts
// as activity, and a periodic sweep retires devices that stayed silent
// past the offline threshold. This matches fire-and-forget distribution,
// where per-packet acknowledgments don't exist and silence is the only
// failure signal.
//
// # States
//
// A device is either online or offline. Connecting or producing traffic
// makes it online; the sweep marks it offline after the threshold. There
// is no in-between state and no automatic reconnect here - the owner of
// the transport reacts to the offline callback.
package health
