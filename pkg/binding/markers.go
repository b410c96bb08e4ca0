package binding

import (
	"sync"

	"github.com/google/uuid"

	"github.com/olivroy/shiny/pkg/dom"
)

// IDAttr holds ids the client assigns to elements that lack one.
const IDAttr = "data-shiny-id"

// Marker classes carried by bound elements.
const (
	InputClass  = "shiny-bound-input"
	OutputClass = "shiny-bound-output"
)

// Markers records which elements are bound, per kind. It is shared by
// every scanner of a client.
type Markers struct {
	mu    sync.Mutex
	kinds map[string]map[*dom.Node]any
	newID func() string
}

// NewMarkers creates an empty marker service.
func NewMarkers() *Markers {
	return &Markers{
		kinds: make(map[string]map[*dom.Node]any),
		newID: func() string { return "shiny-" + uuid.NewString() },
	}
}

// Mark records v as the bound state of el for kind. It reports false if el
// was already marked.
func (m *Markers) Mark(kind string, el *dom.Node, v any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.kinds[kind]
	if set == nil {
		set = make(map[*dom.Node]any)
		m.kinds[kind] = set
	}
	if _, ok := set[el]; ok {
		return false
	}
	set[el] = v
	return true
}

// Unmark removes el from kind and returns its state.
func (m *Markers) Unmark(kind string, el *dom.Node) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.kinds[kind][el]
	if ok {
		delete(m.kinds[kind], el)
	}
	return v, ok
}

// Lookup returns the bound state of el for kind.
func (m *Markers) Lookup(kind string, el *dom.Node) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.kinds[kind][el]
	return v, ok
}

// Count returns the number of elements bound for kind.
func (m *Markers) Count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.kinds[kind])
}

// Each calls fn for every element bound for kind. fn must not call back
// into m.
func (m *Markers) Each(kind string, fn func(el *dom.Node, v any)) {
	m.mu.Lock()
	snapshot := make(map[*dom.Node]any, len(m.kinds[kind]))
	for el, v := range m.kinds[kind] {
		snapshot[el] = v
	}
	m.mu.Unlock()

	for el, v := range snapshot {
		fn(el, v)
	}
}

// IDFor returns a stable id for an element that has none of its own. The
// id is stamped on the element so rebinding it yields the same id.
func (m *Markers) IDFor(el *dom.Node) string {
	if id, ok := el.Attr(IDAttr); ok && id != "" {
		return id
	}
	id := m.newID()
	el.SetAttr(IDAttr, id)
	return id
}
