package dom

import "strings"

// Selector is a parsed selector list.
type Selector struct {
	groups []compound
}

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrCond
}

type attrCond struct {
	key      string
	value    string
	hasValue bool
}

// ParseSelector parses a comma separated list of compound selectors.
func ParseSelector(s string) (Selector, error) {
	var sel Selector
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := parseCompound(part)
		if err != nil {
			return Selector{}, err
		}
		sel.groups = append(sel.groups, c)
	}
	if len(sel.groups) == 0 {
		return Selector{}, &SelectorError{Selector: s, Reason: "empty selector"}
	}
	return sel, nil
}

// MustParseSelector is like ParseSelector but panics on error.
func MustParseSelector(s string) Selector {
	sel, err := ParseSelector(s)
	if err != nil {
		panic(err)
	}
	return sel
}

// SelectorError reports an unparseable selector.
type SelectorError struct {
	Selector string
	Reason   string
}

func (e *SelectorError) Error() string {
	return "dom: invalid selector " + `"` + e.Selector + `": ` + e.Reason
}

func parseCompound(s string) (compound, error) {
	var c compound
	i := 0
	readIdent := func() string {
		start := i
		for i < len(s) {
			ch := s[i]
			if ch == '\\' && i+1 < len(s) {
				i += 2
				continue
			}
			if ch == '.' || ch == '#' || ch == '[' || ch == ' ' {
				break
			}
			i++
		}
		return unescapeSelector(s[start:i])
	}

	if i < len(s) && s[i] != '.' && s[i] != '#' && s[i] != '[' {
		c.tag = strings.ToLower(readIdent())
		if c.tag == "*" {
			c.tag = ""
		}
	}
	for i < len(s) {
		switch s[i] {
		case '#':
			i++
			c.id = readIdent()
		case '.':
			i++
			c.classes = append(c.classes, readIdent())
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return compound{}, &SelectorError{Selector: s, Reason: "unterminated attribute"}
			}
			body := s[i+1 : i+end]
			i += end + 1
			cond := attrCond{key: strings.ToLower(strings.TrimSpace(body))}
			if eq := strings.IndexByte(body, '='); eq >= 0 {
				cond.key = strings.ToLower(strings.TrimSpace(body[:eq]))
				cond.value = strings.Trim(strings.TrimSpace(body[eq+1:]), `"'`)
				cond.hasValue = true
			}
			c.attrs = append(c.attrs, cond)
		case ' ':
			return compound{}, &SelectorError{Selector: s, Reason: "combinators are not supported"}
		default:
			return compound{}, &SelectorError{Selector: s, Reason: "unexpected character " + string(s[i])}
		}
	}
	return c, nil
}

func unescapeSelector(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Match reports whether the element matches any selector in the list.
func (sel Selector) Match(n *Node) bool {
	if !n.IsElement() {
		return false
	}
	for _, c := range sel.groups {
		if c.match(n) {
			return true
		}
	}
	return false
}

func (c compound) match(n *Node) bool {
	if c.tag != "" && c.tag != n.Tag {
		return false
	}
	if c.id != "" && c.id != n.ID() {
		return false
	}
	for _, cl := range c.classes {
		if !n.HasClass(cl) {
			return false
		}
	}
	for _, a := range c.attrs {
		v, ok := n.Attr(a.key)
		if !ok {
			return false
		}
		if a.hasValue && v != a.value {
			return false
		}
	}
	return true
}

// Matches reports whether n matches the selector string. Invalid
// selectors never match.
func (n *Node) Matches(selector string) bool {
	sel, err := ParseSelector(selector)
	if err != nil {
		return false
	}
	return sel.Match(n)
}

// QueryAll returns n and all descendants matching the selector, in
// document order.
func (n *Node) QueryAll(selector string) []*Node {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil
	}
	var out []*Node
	n.Walk(func(c *Node) bool {
		if sel.Match(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Query returns the first node matching the selector, or nil.
func (n *Node) Query(selector string) *Node {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil
	}
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if sel.Match(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// ByID returns the element with the given id, or nil.
func (n *Node) ByID(id string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if c.IsElement() && c.ID() == id {
			found = c
			return false
		}
		return true
	})
	return found
}
