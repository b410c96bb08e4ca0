// Package latch provides a resolve-once synchronization point.
//
// A Latch starts unresolved and is resolved at most once. Any number of
// goroutines may wait on it before or after resolution; every waiter
// observes the same value.
//
//	connected := latch.New[string]()
//	go func() { connected.Resolve("ws-1") }()
//	id, err := connected.Wait(ctx)
package latch

import (
	"context"
	"sync"
)

// Latch is a value that becomes available exactly once.
type Latch[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
}

// New creates an unresolved latch.
func New[T any]() *Latch[T] {
	return &Latch[T]{done: make(chan struct{})}
}

// Resolve sets the value and releases all waiters. Only the first call has
// an effect; it reports whether this call resolved the latch.
func (l *Latch[T]) Resolve(v T) bool {
	resolved := false
	l.once.Do(func() {
		l.value = v
		close(l.done)
		resolved = true
	})
	return resolved
}

// Done returns a channel closed once the latch is resolved.
func (l *Latch[T]) Done() <-chan struct{} {
	return l.done
}

// Resolved reports whether the latch has been resolved.
func (l *Latch[T]) Resolved() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Value returns the resolved value without blocking.
func (l *Latch[T]) Value() (T, bool) {
	select {
	case <-l.done:
		return l.value, true
	default:
		var zero T
		return zero, false
	}
}

// Wait blocks until the latch is resolved or ctx is done.
func (l *Latch[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-l.done:
		return l.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
