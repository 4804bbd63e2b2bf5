// Package clock abstracts the time source used for slot pacing, liveness
// sweeps and feed polling, so loop timing is testable without wall-clock
// waits. Production code uses [System]; tests drive a [Fake] by hand.
package clock

import "time"

// Clock supplies the time operations the scheduling loops depend on.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// System is the real time source.
type System struct{}

// Compile-time interface satisfaction check.
var _ Clock = System{}

func (System) Now() time.Time                         { return time.Now() }
func (System) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (System) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }
