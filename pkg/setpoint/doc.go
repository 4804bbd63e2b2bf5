// Package setpoint buffers per-device target values between the control
// feed and the scheduler.
//
// Each device id owns a FIFO queue of pending values plus the most recent
// value handed out. The [Store] decouples feed ingestion from broadcast
// pacing: the feed loads values in bursts, the scheduler drains them one
// per device per round.
//
// # Freshness
//
// Taking from a non-empty queue pops the head and reports it as fresh.
// Taking from an empty queue repeats the device's last value, keeping the
// actuation loop fed without marking the value as new work. Devices that
// never received a value report zero.
//
// # Growth
//
// The id space only grows. Loading a file with a smaller maximum id keeps
// the existing buffers and their last values intact for the session.
package setpoint
