// Package respond correlates inbound device responses with outstanding
// waits and keeps a bounded response history.
//
// Motor controllers answer out of band: a response carries only the
// device id token, never a request id. The [Correlator] therefore offers
// two wait shapes:
//
//   - targeted: satisfied only by a response whose parsed device id is
//     exactly the awaited id; responses from other devices are counted
//     but never match
//   - any: satisfied by the first response observed after the wait began,
//     used after probes and group broadcasts
//
// A wait that sees nothing within its deadline reports a timeout outcome.
// Timeouts are ordinary results, not errors - over a lossy link silence
// is an expected answer.
package respond
