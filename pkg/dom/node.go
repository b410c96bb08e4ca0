package dom

import "strings"

// Kind is the node type discriminator.
type Kind uint8

const (
	KindElement Kind = iota // <div>, <input>, etc.
	KindText                // Plain text node
	KindComment             // <!-- comment -->
	KindFragment            // Grouping without wrapper, used as a parse root
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindComment:
		return "Comment"
	case KindFragment:
		return "Fragment"
	default:
		return "Unknown"
	}
}

// Attr is a single attribute. Order is preserved for serialization.
type Attr struct {
	Key   string
	Value string
}

// Node is a document node.
type Node struct {
	Kind     Kind
	Tag      string // Lower-case tag name for elements
	Attrs    []Attr
	Children []*Node
	Parent   *Node
	Text     string // For KindText and KindComment

	listeners map[string][]*listener
}

// Element creates an element node with the given attributes and children.
// Children may be *Node, []*Node or string (converted to text).
func Element(tag string, attrs []Attr, children ...any) *Node {
	n := &Node{Kind: KindElement, Tag: strings.ToLower(tag)}
	for _, a := range attrs {
		n.SetAttr(a.Key, a.Value)
	}
	for _, c := range children {
		switch v := c.(type) {
		case nil:
		case *Node:
			n.AppendChild(v)
		case []*Node:
			for _, cc := range v {
				n.AppendChild(cc)
			}
		case string:
			n.AppendChild(Text(v))
		}
	}
	return n
}

// Text creates a text node.
func Text(content string) *Node {
	return &Node{Kind: KindText, Text: content}
}

// Fragment creates an empty fragment node.
func Fragment(children ...*Node) *Node {
	f := &Node{Kind: KindFragment}
	for _, c := range children {
		f.AppendChild(c)
	}
	return f
}

// A is shorthand for building attribute lists: A("id", "x", "class", "y").
func A(kv ...string) []Attr {
	attrs := make([]Attr, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, Attr{Key: kv[i], Value: kv[i+1]})
	}
	return attrs
}

// IsElement reports whether n is an element node.
func (n *Node) IsElement() bool {
	return n != nil && n.Kind == KindElement
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or def if it is absent.
func (n *Node) AttrOr(key, def string) string {
	if v, ok := n.Attr(key); ok {
		return v
	}
	return def
}

// SetAttr sets an attribute, replacing any existing value.
func (n *Node) SetAttr(key, value string) {
	key = strings.ToLower(key)
	for i := range n.Attrs {
		if n.Attrs[i].Key == key {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Key: key, Value: value})
}

// RemoveAttr removes an attribute if present.
func (n *Node) RemoveAttr(key string) {
	for i := range n.Attrs {
		if n.Attrs[i].Key == key {
			n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
			return
		}
	}
}

// ID returns the element's id attribute.
func (n *Node) ID() string {
	return n.AttrOr("id", "")
}

// Classes returns the element's class list.
func (n *Node) Classes() []string {
	return strings.Fields(n.AttrOr("class", ""))
}

// HasClass reports whether the element carries the class.
func (n *Node) HasClass(class string) bool {
	for _, c := range n.Classes() {
		if c == class {
			return true
		}
	}
	return false
}

// AddClass adds a class if not already present.
func (n *Node) AddClass(class string) {
	if n.HasClass(class) {
		return
	}
	n.SetAttr("class", strings.TrimSpace(n.AttrOr("class", "")+" "+class))
}

// RemoveClass removes a class if present.
func (n *Node) RemoveClass(class string) {
	classes := n.Classes()
	out := classes[:0]
	for _, c := range classes {
		if c != class {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		n.RemoveAttr("class")
		return
	}
	n.SetAttr("class", strings.Join(out, " "))
}

// AppendChild appends c to n's children, detaching it from any previous parent.
func (n *Node) AppendChild(c *Node) {
	if c == nil {
		return
	}
	if c.Kind == KindFragment {
		for _, cc := range append([]*Node(nil), c.Children...) {
			n.AppendChild(cc)
		}
		return
	}
	c.Detach()
	c.Parent = n
	n.Children = append(n.Children, c)
}

// InsertAt inserts nodes at child index i.
func (n *Node) InsertAt(i int, nodes ...*Node) {
	flat := flatten(nodes)
	for _, c := range flat {
		if c.Parent == n {
			if idx := n.indexOf(c); idx >= 0 && idx < i {
				i--
			}
		}
		c.Detach()
		c.Parent = n
	}
	if i < 0 {
		i = 0
	}
	if i > len(n.Children) {
		i = len(n.Children)
	}
	rest := append([]*Node(nil), n.Children[i:]...)
	n.Children = append(append(n.Children[:i], flat...), rest...)
}

// RemoveChild removes c from n's children.
func (n *Node) RemoveChild(c *Node) {
	if idx := n.indexOf(c); idx >= 0 {
		n.Children = append(n.Children[:idx], n.Children[idx+1:]...)
		c.Parent = nil
	}
}

// Detach removes n from its parent.
func (n *Node) Detach() {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Empty removes all children.
func (n *Node) Empty() {
	for _, c := range n.Children {
		c.Parent = nil
	}
	n.Children = nil
}

// Contains reports whether d is n or a descendant of n.
func (n *Node) Contains(d *Node) bool {
	for p := d; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

// TextContent returns the concatenated text of n and its descendants.
func (n *Node) TextContent() string {
	var b strings.Builder
	n.Walk(func(c *Node) bool {
		if c.Kind == KindText {
			b.WriteString(c.Text)
		}
		return true
	})
	return b.String()
}

// SetTextContent replaces n's children with a single text node.
func (n *Node) SetTextContent(s string) {
	n.Empty()
	n.AppendChild(Text(s))
}

// Walk visits n and its descendants in document order. Returning false
// from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range append([]*Node(nil), n.Children...) {
		c.Walk(fn)
	}
}

func (n *Node) indexOf(c *Node) int {
	for i, cc := range n.Children {
		if cc == c {
			return i
		}
	}
	return -1
}

func flatten(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, c := range nodes {
		if c == nil {
			continue
		}
		if c.Kind == KindFragment {
			out = append(out, flatten(append([]*Node(nil), c.Children...))...)
			continue
		}
		out = append(out, c)
	}
	return out
}
