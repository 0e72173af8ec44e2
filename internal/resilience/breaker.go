// Package resilience shields the chat pipeline from failing providers. A
// [Breaker] is a three-state circuit breaker (closed, open, half-open); the
// provider wrappers in this package put one in front of each external call so
// a dead LLM, TTS, or embeddings backend fails fast instead of making every
// exchange wait out a timeout. The companion's fixed-fallback behaviour then
// takes over: an open breaker reads like any other provider error.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is open and the
// cooldown has not yet elapsed.
var ErrOpen = errors.New("resilience: breaker open")

// State is the operating mode of a [Breaker].
type State int

const (
	// Closed forwards every call.
	Closed State = iota

	// Open rejects every call with [ErrOpen] until the cooldown elapses.
	Open

	// HalfOpen lets a limited number of probe calls through. All probes
	// succeeding closes the breaker; any probe failing re-opens it.
	HalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Settings tunes a [Breaker]. Zero values take the defaults.
type Settings struct {
	// Name labels the breaker in log messages, typically the provider kind.
	Name string

	// TripAfter is the number of consecutive failures that opens the
	// breaker. Default: 5.
	TripAfter int

	// Cooldown is how long the breaker stays open before probing the
	// backend again. Default: 30s.
	Cooldown time.Duration

	// ProbeQuota is the number of half-open probe calls that must all
	// succeed before the breaker closes. Default: 3.
	ProbeQuota int
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	name       string
	tripAfter  int
	cooldown   time.Duration
	probeQuota int

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probes    int
	probeWins int

	// now is stubbed in tests.
	now func() time.Time
}

// NewBreaker creates a closed [Breaker] from s.
func NewBreaker(s Settings) *Breaker {
	if s.TripAfter <= 0 {
		s.TripAfter = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.ProbeQuota <= 0 {
		s.ProbeQuota = 3
	}
	return &Breaker{
		name:       s.Name,
		tripAfter:  s.TripAfter,
		cooldown:   s.Cooldown,
		probeQuota: s.ProbeQuota,
		now:        time.Now,
	}
}

// Do runs fn if the breaker allows it, returning [ErrOpen] otherwise. The
// call's outcome feeds the breaker's failure accounting.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.settle(err)
	return err
}

// admit decides whether a call may proceed and performs the open → half-open
// transition once the cooldown has elapsed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.state = HalfOpen
		b.probes = 0
		b.probeWins = 0
		slog.Info("breaker probing backend", "name", b.name)

	case HalfOpen:
		if b.probes >= b.probeQuota {
			// Probe budget spent; outcomes are still settling.
			return ErrOpen
		}
	}

	if b.state == HalfOpen {
		b.probes++
	}
	return nil
}

// settle feeds a call outcome back into the breaker.
func (b *Breaker) settle(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		if b.state == HalfOpen {
			// One failed probe is enough to re-open.
			b.trip()
			return
		}
		b.failures++
		if b.failures >= b.tripAfter {
			b.trip()
		}
		return
	}

	if b.state == HalfOpen {
		b.probeWins++
		if b.probeWins >= b.probeQuota {
			b.state = Closed
			b.failures = 0
			slog.Info("breaker closed after successful probes", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// trip opens the breaker. Must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = Open
	b.failures = b.tripAfter
	b.openedAt = b.now()
	slog.Warn("breaker opened", "name", b.name)
}

// State reports the breaker's current state. An open breaker whose cooldown
// has elapsed reports [HalfOpen]; the transition itself happens on the next
// [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && b.now().Sub(b.openedAt) >= b.cooldown {
		return HalfOpen
	}
	return b.state
}

// Reset forces the breaker back to [Closed] and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Closed
	b.failures = 0
	b.probes = 0
	b.probeWins = 0
	slog.Info("breaker manually reset", "name", b.name)
}
