// Package schedule paces setpoint distribution over a shared link that
// can address only one group of devices at a time.
//
// A Plan covers device ids 1..MaxDeviceID with contiguous groups of
// GroupSize ids. One round visits every group once, broadcasting a
// single multi-device packet per group and waiting one slot after each
// send. With G groups and a per-device target rate of t Hz, the slot is
//
//	slot = 1 / (t * G)
//
// so every device's group comes around again after G slots, exactly at
// its refresh interval. A plan without a target rate is unpaced and
// drains the queues as fast as the transport accepts writes.
//
// The Scheduler pulls one value per device per round from the setpoint
// store. Devices with an empty queue repeat their last value, so a
// paced run keeps every controller fed even when fresh data arrives
// for only a few of them. The run stops at the round cap, when no
// queued values remain after a full round, or when its context ends.
//
// Transport failures never stop a run. Each group broadcast gathers
// per-address errors from the pool and the round carries on; the
// Report tallies delivered against attempted writes instead.
package schedule
