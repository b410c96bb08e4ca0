package dom

import "sync"

// Document is a page: an html root with head and body elements.
type Document struct {
	mu   sync.Mutex
	Root *Node
	Head *Node
	Body *Node
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	head := Element("head", nil)
	body := Element("body", nil)
	root := Element("html", nil, head, body)
	return &Document{Root: root, Head: head, Body: body}
}

// ParseDocument creates a document whose body holds the parsed fragment.
func ParseDocument(bodyHTML string) (*Document, error) {
	doc := NewDocument()
	frag, err := ParseFragment(bodyHTML)
	if err != nil {
		return nil, err
	}
	doc.Body.AppendChild(frag)
	return doc, nil
}

// Update runs fn while holding the document lock. fn must not call Update.
func (d *Document) Update(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}
