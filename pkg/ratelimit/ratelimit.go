// Package ratelimit applies per-input rate policies to outgoing values.
//
// Each input id is limited independently: a debounce timer on one id never
// delays or flushes another id. Timers are created through an injected
// clock so tests can drive them deterministically.
//
// # Policies
//
//   - None: every value is emitted immediately.
//   - Debounce(d): bursts collapse; only the last value is emitted, d after
//     the most recent submission.
//   - Throttle(d): at most one emission per window of length d. The first
//     value of a quiet period is emitted immediately; the latest value
//     submitted during a window is emitted when the window ends.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Kind identifies a rate policy.
type Kind uint8

const (
	KindNone Kind = iota
	KindDebounce
	KindThrottle
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindDebounce:
		return "debounce"
	case KindThrottle:
		return "throttle"
	default:
		return "unknown"
	}
}

// Policy is the rate rule for one input.
type Policy struct {
	Kind  Kind
	Delay time.Duration
}

// None returns the pass-through policy.
func None() Policy { return Policy{Kind: KindNone} }

// Debounce returns a debounce policy with the given quiet period.
func Debounce(d time.Duration) Policy { return Policy{Kind: KindDebounce, Delay: d} }

// Throttle returns a throttle policy with the given window.
func Throttle(d time.Duration) Policy { return Policy{Kind: KindThrottle, Delay: d} }

// String returns e.g. "debounce(250ms)".
func (p Policy) String() string {
	if p.Kind == KindNone {
		return "none"
	}
	return fmt.Sprintf("%s(%s)", p.Kind, p.Delay)
}

// Emit receives values released by the limiter.
type Emit func(id string, value any)

// Limiter holds the per-id rate state.
//
// Values released by a timer are emitted while fireMu is held, and Cancel
// takes fireMu too: once Cancel returns, a value submitted before it is
// never emitted. Emit must not call Cancel or CancelAll.
type Limiter struct {
	fireMu  sync.Mutex // Held by timer emits; taken before mu
	mu      sync.Mutex
	clock   clock.Clock
	emit    Emit
	entries map[string]*entry
}

type entry struct {
	policy  Policy
	timer   *clock.Timer
	value   any
	pending bool
	seq     uint64
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock sets the clock used for timers. Default: the wall clock.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) {
		l.clock = c
	}
}

// New creates a Limiter that releases values to emit.
func New(emit Emit, opts ...Option) *Limiter {
	l := &Limiter{
		clock:   clock.New(),
		emit:    emit,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit offers a value for id under policy.
func (l *Limiter) Submit(id string, value any, policy Policy) {
	if policy.Kind != KindNone && policy.Delay <= 0 {
		policy = None()
	}

	l.mu.Lock()
	e := l.entries[id]
	if e != nil && e.policy != policy {
		l.stopLocked(id, e)
		e = nil
	}

	switch policy.Kind {
	case KindDebounce:
		if e == nil {
			e = &entry{policy: policy}
			l.entries[id] = e
		}
		e.value = value
		e.pending = true
		e.seq++
		if e.timer != nil {
			e.timer.Stop()
		}
		seq := e.seq
		e.timer = l.clock.AfterFunc(policy.Delay, func() { l.fireDebounce(id, e, seq) })
		l.mu.Unlock()

	case KindThrottle:
		if e != nil {
			// Window open: remember the latest value for the window end.
			e.value = value
			e.pending = true
			l.mu.Unlock()
			return
		}
		e = &entry{policy: policy}
		l.entries[id] = e
		e.timer = l.clock.AfterFunc(policy.Delay, func() { l.fireThrottle(id, e) })
		l.mu.Unlock()
		l.emit(id, value)

	default:
		l.mu.Unlock()
		l.emit(id, value)
	}
}

func (l *Limiter) fireDebounce(id string, e *entry, seq uint64) {
	l.fireMu.Lock()
	defer l.fireMu.Unlock()

	l.mu.Lock()
	// A timer that lost the race with a newer Submit is stale.
	if l.entries[id] != e || !e.pending || e.seq != seq {
		l.mu.Unlock()
		return
	}
	value := e.value
	delete(l.entries, id)
	l.mu.Unlock()

	l.emit(id, value)
}

func (l *Limiter) fireThrottle(id string, e *entry) {
	l.fireMu.Lock()
	defer l.fireMu.Unlock()

	l.mu.Lock()
	if l.entries[id] != e {
		l.mu.Unlock()
		return
	}
	if !e.pending {
		delete(l.entries, id)
		l.mu.Unlock()
		return
	}
	value := e.value
	e.value = nil
	e.pending = false
	e.timer = l.clock.AfterFunc(e.policy.Delay, func() { l.fireThrottle(id, e) })
	l.mu.Unlock()

	l.emit(id, value)
}

// Cancel drops any pending value and timer for id, waiting for a timer
// that is emitting right now. It reports whether something was pending.
func (l *Limiter) Cancel(id string) bool {
	l.fireMu.Lock()
	defer l.fireMu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entries[id]
	if e == nil {
		return false
	}
	pending := e.pending
	l.stopLocked(id, e)
	return pending
}

// CancelAll drops every pending value and timer.
func (l *Limiter) CancelAll() {
	l.fireMu.Lock()
	defer l.fireMu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, e := range l.entries {
		l.stopLocked(id, e)
	}
}

// Pending reports whether a value for id is waiting on a timer.
func (l *Limiter) Pending(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entries[id]
	return e != nil && e.pending
}

func (l *Limiter) stopLocked(id string, e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.pending = false
	delete(l.entries, id)
}
