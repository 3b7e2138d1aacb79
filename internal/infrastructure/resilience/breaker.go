// Package resilience provides a small circuit breaker used to suspend
// snapshot persistence after repeated storage failures, so a broken backend
// does not add a failing write to every command.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker is cooling down after tripping.
var ErrOpen = errors.New("circuit open")

// State of a breaker: closed passes calls through, open rejects them, and
// half-open admits a single probe after the cooldown.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Settings tunes a breaker. Zero values get sensible defaults.
type Settings struct {
	// Trip is the consecutive-failure count that opens the circuit.
	Trip int
	// Cooldown is how long the circuit stays open before a probe.
	Cooldown time.Duration
	// OnStateChange observes transitions, for logging.
	OnStateChange func(name string, from, to State)
}

// Breaker guards one operation.
type Breaker struct {
	name     string
	settings Settings

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

// New builds a breaker with defaults applied.
func New(name string, settings Settings) *Breaker {
	if settings.Trip <= 0 {
		settings.Trip = 3
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	return &Breaker{name: name, settings: settings}
}

// State returns the current state, applying the cooldown transition.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current()
}

// Do runs fn unless the circuit is open. A success in half-open state closes
// the circuit; a failure re-opens it.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.current() == Open {
		b.mu.Unlock()
		return ErrOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.transition(Closed)
		b.failures = 0
		return nil
	}
	b.failures++
	if b.state == HalfOpen || b.failures >= b.settings.Trip {
		b.transition(Open)
		b.openedAt = time.Now()
	}
	return err
}

// current applies the open -> half-open transition. Caller holds the lock.
func (b *Breaker) current() State {
	if b.state == Open && time.Since(b.openedAt) >= b.settings.Cooldown {
		b.transition(HalfOpen)
	}
	return b.state
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}
