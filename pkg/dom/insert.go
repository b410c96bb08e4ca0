package dom

import "fmt"

// Where selects the insertion point of new content relative to a target.
type Where uint8

const (
	Replace     Where = iota // Replace the target's children
	BeforeBegin              // Before the target, as a sibling
	AfterBegin               // Inside the target, before its first child
	BeforeEnd                // Inside the target, after its last child
	AfterEnd                 // After the target, as a sibling
)

// String returns the string representation of the Where.
func (w Where) String() string {
	switch w {
	case Replace:
		return "replace"
	case BeforeBegin:
		return "beforeBegin"
	case AfterBegin:
		return "afterBegin"
	case BeforeEnd:
		return "beforeEnd"
	case AfterEnd:
		return "afterEnd"
	default:
		return "unknown"
	}
}

// ParseWhere parses the names returned by Where.String.
func ParseWhere(s string) (Where, error) {
	switch s {
	case "", "replace":
		return Replace, nil
	case "beforeBegin":
		return BeforeBegin, nil
	case "afterBegin":
		return AfterBegin, nil
	case "beforeEnd":
		return BeforeEnd, nil
	case "afterEnd":
		return AfterEnd, nil
	}
	return Replace, fmt.Errorf("dom: unknown insertion point %q", s)
}

// ErrNoParent is returned when sibling insertion targets a root node.
var ErrNoParent = fmt.Errorf("dom: target has no parent")

// Insert places the children of content relative to target and returns the
// inserted top-level nodes.
func Insert(target, content *Node, where Where) ([]*Node, error) {
	nodes := flatten([]*Node{content})
	switch where {
	case Replace:
		target.Empty()
		target.InsertAt(0, nodes...)
	case AfterBegin:
		target.InsertAt(0, nodes...)
	case BeforeEnd:
		target.InsertAt(len(target.Children), nodes...)
	case BeforeBegin, AfterEnd:
		parent := target.Parent
		if parent == nil {
			return nil, ErrNoParent
		}
		idx := parent.indexOf(target)
		if where == AfterEnd {
			idx++
		}
		parent.InsertAt(idx, nodes...)
	default:
		return nil, fmt.Errorf("dom: unknown insertion point %d", where)
	}
	return nodes, nil
}
