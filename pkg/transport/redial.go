package transport

import (
	"math/rand"
	"sync"
	"time"
)

// Redial timing defaults.
const (
	// DefaultRedialInitial is the first redial delay after a link drops.
	DefaultRedialInitial = 1 * time.Second

	// DefaultRedialMax caps the redial delay.
	DefaultRedialMax = 30 * time.Second

	// redialMultiplier is the factor by which the delay grows per attempt.
	redialMultiplier = 2.0

	// redialJitter is the maximum jitter as a fraction of the base delay.
	redialJitter = 0.25
)

// Backoff produces exponentially growing redial delays with jitter.
type Backoff struct {
	mu       sync.Mutex
	current  time.Duration
	initial  time.Duration
	max      time.Duration
	attempts int
	rng      *rand.Rand
}

// NewBackoff creates a backoff starting at initial and capped at max.
// Non-positive arguments fall back to the defaults.
func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultRedialInitial
	}
	if max <= 0 {
		max = DefaultRedialMax
	}
	return &Backoff{
		current: initial,
		initial: initial,
		max:     max,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next delay (with jitter) and advances the backoff.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.current + time.Duration(float64(b.current)*redialJitter*b.rng.Float64())

	b.attempts++
	next := time.Duration(float64(b.current) * redialMultiplier)
	if next > b.max {
		next = b.max
	}
	b.current = next

	return delay
}

// Reset restores the initial delay. Call after a successful dial.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initial
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}
