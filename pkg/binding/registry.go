package binding

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/olivroy/shiny/pkg/dom"
)

// Priorities for Register. Higher priorities are consulted first.
const (
	PriorityFallback  = -10
	PriorityNormal    = 0
	PriorityPreferred = 10
)

// ErrDuplicateBinding is returned when a name is registered twice.
var ErrDuplicateBinding = errors.New("binding: duplicate binding name")

// Registry is an ordered collection of adapters.
type Registry[T Matcher] struct {
	mu      sync.RWMutex
	entries []registryEntry[T]
	seq     int
}

type registryEntry[T Matcher] struct {
	name     string
	binding  T
	priority int
	seq      int
}

// NewRegistry creates an empty registry.
func NewRegistry[T Matcher]() *Registry[T] {
	return &Registry[T]{}
}

// Register adds an adapter. Adapters with a higher priority are consulted
// first; among equal priorities the most recent registration wins, so an
// explicit registration can take precedence over built-ins.
func (r *Registry[T]) Register(name string, b T, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.name == name {
			return fmt.Errorf("%w: %q", ErrDuplicateBinding, name)
		}
	}
	r.seq++
	r.entries = append(r.entries, registryEntry[T]{name: name, binding: b, priority: priority, seq: r.seq})
	sort.SliceStable(r.entries, func(i, j int) bool {
		if r.entries[i].priority != r.entries[j].priority {
			return r.entries[i].priority > r.entries[j].priority
		}
		return r.entries[i].seq > r.entries[j].seq
	})
	return nil
}

// Unregister removes an adapter by name.
func (r *Registry[T]) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.name == name {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the adapter registered under name.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.name == name {
			return e.binding, true
		}
	}
	var zero T
	return zero, false
}

// Names returns adapter names in priority order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// Len returns the number of registered adapters.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// FindFor returns the first adapter, in priority order, that matches el.
func (r *Registry[T]) FindFor(el *dom.Node) (T, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if safeMatch(e.binding, el) {
			return e.binding, e.name, true
		}
	}
	var zero T
	return zero, "", false
}

// Find returns the elements under scope governed by the named adapter,
// i.e. the elements it matches that no higher-ranked adapter claims.
func (r *Registry[T]) Find(name string, scope *dom.Node) []*dom.Node {
	var out []*dom.Node
	scope.Walk(func(n *dom.Node) bool {
		if !n.IsElement() {
			return true
		}
		if _, got, ok := r.FindFor(n); ok && got == name {
			out = append(out, n)
		}
		return true
	})
	return out
}

func safeMatch[T Matcher](b T, el *dom.Node) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return b.Match(el)
}
