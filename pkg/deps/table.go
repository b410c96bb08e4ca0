package deps

import (
	"context"
	"sort"
	"sync"

	"github.com/olivroy/shiny/pkg/protocol"
)

type state uint8

const (
	stateLoading state = iota
	stateLoaded
)

type tableEntry struct {
	version string
	state   state
	done    chan struct{}
	err     error
}

// Table is the registry of loaded dependencies, keyed by name.
type Table struct {
	mu      sync.Mutex
	entries map[string]*tableEntry
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*tableEntry)}
}

// acquisition is the outcome of a table lookup.
type acquisition uint8

const (
	// acquired: the caller owns the load and must call finish.
	acquired acquisition = iota
	// satisfied: nothing to do.
	satisfied
	// conflict: a different version is loaded or loading.
	conflict
)

type loadingKey struct{}

// withLoading marks ctx as being inside the load of name.
func withLoading(ctx context.Context, name string) context.Context {
	parent, _ := ctx.Value(loadingKey{}).(map[string]bool)
	next := make(map[string]bool, len(parent)+1)
	for k := range parent {
		next[k] = true
	}
	next[name] = true
	return context.WithValue(ctx, loadingKey{}, next)
}

func isLoading(ctx context.Context, name string) bool {
	m, _ := ctx.Value(loadingKey{}).(map[string]bool)
	return m[name]
}

// acquire resolves dep against the table, waiting for in-flight loads by
// other callers. The returned version is the one loaded or loading.
func (t *Table) acquire(ctx context.Context, dep protocol.Dependency) (acquisition, string, *tableEntry, error) {
	for {
		t.mu.Lock()
		e, ok := t.entries[dep.Name]
		if !ok {
			e = &tableEntry{version: dep.Version, state: stateLoading, done: make(chan struct{})}
			t.entries[dep.Name] = e
			t.mu.Unlock()
			return acquired, dep.Version, e, nil
		}
		if e.version != dep.Version {
			t.mu.Unlock()
			return conflict, e.version, nil, nil
		}
		if e.state == stateLoaded || isLoading(ctx, dep.Name) {
			t.mu.Unlock()
			return satisfied, e.version, nil, nil
		}
		done := e.done
		t.mu.Unlock()

		select {
		case <-done:
			// Loaded, or failed and removed; look again either way.
		case <-ctx.Done():
			return satisfied, "", nil, ctx.Err()
		}
	}
}

// finish completes a load started by acquire. A failed load is removed so
// it can be retried.
func (t *Table) finish(name string, e *tableEntry, err error) {
	t.mu.Lock()
	if err != nil {
		e.err = err
		if t.entries[name] == e {
			delete(t.entries, name)
		}
	} else {
		e.state = stateLoaded
	}
	t.mu.Unlock()
	close(e.done)
}

// MarkLoaded records dependencies that are already present, such as those
// rendered into the initial page.
func (t *Table) MarkLoaded(name, version string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	done := make(chan struct{})
	close(done)
	t.entries[name] = &tableEntry{version: version, state: stateLoaded, done: done}
}

// Loaded returns the loaded version of name.
func (t *Table) Loaded(name string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[name]
	if !ok || e.state != stateLoaded {
		return "", false
	}
	return e.version, true
}

// IsLoaded reports whether dep, at its version, is loaded.
func (t *Table) IsLoaded(dep protocol.Dependency) bool {
	v, ok := t.Loaded(dep.Name)
	return ok && v == dep.Version
}

// Names returns the loaded dependency names, sorted.
func (t *Table) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var names []string
	for name, e := range t.entries {
		if e.state == stateLoaded {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Reset forgets every loaded dependency. In-flight loads still complete
// for their current waiters.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*tableEntry)
}
