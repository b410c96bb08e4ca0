package binding

import (
	"iter"

	"github.com/olivroy/shiny/pkg/dom"
)

// Scanner binds the elements of one kind under a subtree.
type Scanner[T Matcher] struct {
	Kind     string
	Class    string
	Registry *Registry[T]
	Markers  *Markers

	// IDOf extracts the adapter's id for an element.
	IDOf func(b T, el *dom.Node) string

	// Attach is called for each newly bound element before it is yielded.
	// An error leaves the element unbound.
	Attach func(be *BoundElement[T]) error

	// Detach is called for each element released by Unscan or Prune.
	Detach func(be *BoundElement[T])

	// OnError receives per-element failures. Scanning continues.
	OnError func(el *dom.Node, err error)
}

// NewInputScanner returns a scanner for input adapters.
func NewInputScanner(r *Registry[Input], m *Markers) *Scanner[Input] {
	return &Scanner[Input]{
		Kind:     "input",
		Class:    InputClass,
		Registry: r,
		Markers:  m,
		IDOf:     func(b Input, el *dom.Node) string { return b.ID(el) },
	}
}

// NewOutputScanner returns a scanner for output adapters.
func NewOutputScanner(r *Registry[Output], m *Markers) *Scanner[Output] {
	return &Scanner[Output]{
		Kind:     "output",
		Class:    OutputClass,
		Registry: r,
		Markers:  m,
		IDOf:     func(b Output, el *dom.Node) string { return b.ID(el) },
	}
}

// Scan yields a BoundElement for every element under root, root included,
// that a registered adapter matches and that is not already bound.
// Elements are bound lazily as the sequence is consumed; stopping early
// leaves the rest of the subtree untouched.
func (s *Scanner[T]) Scan(root *dom.Node) iter.Seq[*BoundElement[T]] {
	return func(yield func(*BoundElement[T]) bool) {
		s.walk(root, yield)
	}
}

// BindAll consumes Scan and returns every element it bound.
func (s *Scanner[T]) BindAll(root *dom.Node) []*BoundElement[T] {
	var out []*BoundElement[T]
	for be := range s.Scan(root) {
		out = append(out, be)
	}
	return out
}

func (s *Scanner[T]) walk(n *dom.Node, yield func(*BoundElement[T]) bool) bool {
	if n == nil {
		return true
	}
	if n.IsElement() {
		if be := s.bind(n); be != nil && !yield(be) {
			return false
		}
	}
	// Copy in case Attach reshapes the subtree.
	children := append([]*dom.Node(nil), n.Children...)
	for _, c := range children {
		if !s.walk(c, yield) {
			return false
		}
	}
	return true
}

func (s *Scanner[T]) bind(el *dom.Node) *BoundElement[T] {
	if _, ok := s.Markers.Lookup(s.Kind, el); ok {
		return nil
	}
	b, name, ok := s.Registry.FindFor(el)
	if !ok {
		return nil
	}

	var id string
	err := Call(name, el.ID(), "id", func() error {
		id = s.IDOf(b, el)
		return nil
	})
	if err != nil {
		s.report(el, err)
		return nil
	}
	if id == "" {
		id = s.Markers.IDFor(el)
	}

	be := &BoundElement[T]{Node: el, ID: id, Name: name, Binding: b}
	if !s.Markers.Mark(s.Kind, el, be) {
		return nil
	}
	if s.Attach != nil {
		if err := Call(name, id, "attach", func() error { return s.Attach(be) }); err != nil {
			s.Markers.Unmark(s.Kind, el)
			s.report(el, err)
			return nil
		}
	}
	if s.Class != "" {
		el.AddClass(s.Class)
	}
	return be
}

// Unscan releases the bound elements under root. root itself is released
// only when includeSelf is set.
func (s *Scanner[T]) Unscan(root *dom.Node, includeSelf bool) []*BoundElement[T] {
	var out []*BoundElement[T]
	if root == nil {
		return nil
	}
	root.Walk(func(n *dom.Node) bool {
		if n == root && !includeSelf {
			return true
		}
		if be := s.release(n); be != nil {
			out = append(out, be)
		}
		return true
	})
	return out
}

// Prune releases bound elements that are under none of roots, such as
// elements removed from the document.
func (s *Scanner[T]) Prune(roots ...*dom.Node) []*BoundElement[T] {
	var stale []*dom.Node
	s.Markers.Each(s.Kind, func(el *dom.Node, _ any) {
		for _, root := range roots {
			if root.Contains(el) {
				return
			}
		}
		stale = append(stale, el)
	})
	var out []*BoundElement[T]
	for _, el := range stale {
		if be := s.release(el); be != nil {
			out = append(out, be)
		}
	}
	return out
}

// Lookup returns the binding of el, if bound.
func (s *Scanner[T]) Lookup(el *dom.Node) (*BoundElement[T], bool) {
	v, ok := s.Markers.Lookup(s.Kind, el)
	if !ok {
		return nil, false
	}
	be, ok := v.(*BoundElement[T])
	return be, ok
}

// Bound returns every element currently bound by this scanner's kind.
func (s *Scanner[T]) Bound() []*BoundElement[T] {
	var out []*BoundElement[T]
	s.Markers.Each(s.Kind, func(_ *dom.Node, v any) {
		if be, ok := v.(*BoundElement[T]); ok {
			out = append(out, be)
		}
	})
	return out
}

func (s *Scanner[T]) release(el *dom.Node) *BoundElement[T] {
	v, ok := s.Markers.Unmark(s.Kind, el)
	if !ok {
		return nil
	}
	be, ok := v.(*BoundElement[T])
	if !ok {
		return nil
	}
	if s.Class != "" {
		el.RemoveClass(s.Class)
	}
	if s.Detach != nil {
		if err := Call(be.Name, be.ID, "detach", func() error { s.Detach(be); return nil }); err != nil {
			s.report(el, err)
		}
	}
	return be
}

func (s *Scanner[T]) report(el *dom.Node, err error) {
	if s.OnError != nil {
		s.OnError(el, err)
	}
}
