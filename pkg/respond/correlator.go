package respond

import (
	"context"
	"sync"
	"time"

	"github.com/focfleet/focfleet-go/pkg/clock"
	"github.com/focfleet/focfleet-go/pkg/wire"
)

// historyCap bounds the response history so long watch sessions don't
// grow without bound.
const historyCap = 256

// Observation is one recorded device response.
type Observation struct {
	Response wire.Response
	Addr     string
	At       time.Time
}

// Outcome classifies how a wait ended.
type Outcome uint8

const (
	// OutcomeMatched means a response satisfied the wait.
	OutcomeMatched Outcome = iota
	// OutcomeTimeout means the deadline passed without a match.
	OutcomeTimeout
	// OutcomeCancelled means the context ended or the correlator closed.
	OutcomeCancelled
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "MATCHED"
	case OutcomeTimeout:
		return "TIMEOUT"
	case OutcomeCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of a wait.
type Result struct {
	Outcome Outcome

	// Observation is valid when Outcome is OutcomeMatched.
	Observation Observation

	// WrongDevice counts responses from other devices seen while a
	// targeted wait was outstanding.
	WrongDevice int
}

// Stats summarizes response accounting for a session.
type Stats struct {
	// Recorded is the number of well-formed responses observed.
	Recorded int

	// Malformed is the number of inbound notifications dropped at parse.
	Malformed int
}

// Correlator matches inbound responses to outstanding waits. All methods
// are safe for concurrent use.
type Correlator struct {
	clock clock.Clock

	mu        sync.Mutex
	waiters   map[*Wait]struct{}
	history   []Observation
	lastFrom  map[int]Observation
	recorded  int
	malformed int
	closed    bool
}

// NewCorrelator creates a correlator using the given time source.
func NewCorrelator(clk clock.Clock) *Correlator {
	if clk == nil {
		clk = clock.System{}
	}
	return &Correlator{
		clock:    clk,
		waiters:  make(map[*Wait]struct{}),
		lastFrom: make(map[int]Observation),
	}
}

// Record feeds one parsed response into the correlator. Every outstanding
// wait is examined: targeted waits match on exact device id equality, any
// waits match every response recorded after they began.
func (c *Correlator) Record(addr string, resp wire.Response) {
	obs := Observation{Response: resp, Addr: addr, At: c.clock.Now()}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.recorded++
	c.lastFrom[resp.DeviceID] = obs
	if len(c.history) == historyCap {
		copy(c.history, c.history[1:])
		c.history[historyCap-1] = obs
	} else {
		c.history = append(c.history, obs)
	}

	for w := range c.waiters {
		if w.deviceID != 0 && w.deviceID != resp.DeviceID {
			w.wrong++
			continue
		}
		if w.deviceID == 0 && obs.At.Before(w.since) {
			continue
		}
		select {
		case w.ch <- obs:
		default:
		}
	}
}

// NoteMalformed counts an inbound notification dropped at parse time.
func (c *Correlator) NoteMalformed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.malformed++
}

// Stats returns session response accounting.
func (c *Correlator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Recorded: c.recorded, Malformed: c.malformed}
}

// Recent returns up to n recorded responses, oldest first.
func (c *Correlator) Recent(n int) []Observation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > len(c.history) {
		n = len(c.history)
	}
	out := make([]Observation, n)
	copy(out, c.history[len(c.history)-n:])
	return out
}

// LastFrom returns the most recent response from a device, if any.
func (c *Correlator) LastFrom(deviceID int) (Observation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	obs, ok := c.lastFrom[deviceID]
	return obs, ok
}

// Close cancels all outstanding waits. Subsequent Record calls are
// ignored.
func (c *Correlator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for w := range c.waiters {
		close(w.ch)
	}
	c.waiters = make(map[*Wait]struct{})
}

// Wait is one outstanding response wait. Create with WaitFor or WaitAny,
// send the request, then call Await. Cancel releases the wait if Await
// is never reached.
type Wait struct {
	c        *Correlator
	deviceID int // 0 means any device
	since    time.Time
	ch       chan Observation
	wrong    int // guarded by c.mu
}

// WaitFor registers a targeted wait for one device id.
func (c *Correlator) WaitFor(deviceID int) *Wait {
	return c.register(deviceID)
}

// WaitAny registers a wait satisfied by any response recorded from now on.
func (c *Correlator) WaitAny() *Wait {
	return c.register(0)
}

func (c *Correlator) register(deviceID int) *Wait {
	w := &Wait{
		c:        c,
		deviceID: deviceID,
		since:    c.clock.Now(),
		ch:       make(chan Observation, 1),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(w.ch)
		return w
	}
	c.waiters[w] = struct{}{}
	return w
}

// Cancel releases the wait. Safe to call after Await.
func (w *Wait) Cancel() {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	delete(w.c.waiters, w)
}

// wrongCount reads the wrong-device tally under the correlator lock.
func (w *Wait) wrongCount() int {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	return w.wrong
}

// Await blocks until a response matches, the timeout passes, or the
// context ends. The wait is released before Await returns.
func (w *Wait) Await(ctx context.Context, timeout time.Duration) Result {
	defer w.Cancel()

	select {
	case obs, ok := <-w.ch:
		if !ok {
			return Result{Outcome: OutcomeCancelled, WrongDevice: w.wrongCount()}
		}
		return Result{Outcome: OutcomeMatched, Observation: obs, WrongDevice: w.wrongCount()}
	case <-w.c.clock.After(timeout):
		return Result{Outcome: OutcomeTimeout, WrongDevice: w.wrongCount()}
	case <-ctx.Done():
		return Result{Outcome: OutcomeCancelled, WrongDevice: w.wrongCount()}
	}
}
