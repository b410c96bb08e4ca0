package dom

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// voidElements never have children or a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// rawTextElements hold unescaped text content.
var rawTextElements = map[string]bool{
	"script": true, "style": true,
}

// ParseFragment parses an HTML fragment in body context and returns the
// top-level nodes wrapped in a fragment.
func ParseFragment(src string) (*Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), ctx)
	if err != nil {
		return nil, err
	}
	frag := Fragment()
	for _, hn := range nodes {
		if n := convert(hn); n != nil {
			frag.AppendChild(n)
		}
	}
	return frag, nil
}

// MustParseFragment is like ParseFragment but panics on error.
func MustParseFragment(src string) *Node {
	n, err := ParseFragment(src)
	if err != nil {
		panic(err)
	}
	return n
}

func convert(hn *html.Node) *Node {
	switch hn.Type {
	case html.TextNode:
		return Text(hn.Data)
	case html.CommentNode:
		return &Node{Kind: KindComment, Text: hn.Data}
	case html.ElementNode:
		n := &Node{Kind: KindElement, Tag: strings.ToLower(hn.Data)}
		for _, a := range hn.Attr {
			key := a.Key
			if a.Namespace != "" {
				key = a.Namespace + ":" + a.Key
			}
			n.Attrs = append(n.Attrs, Attr{Key: strings.ToLower(key), Value: a.Val})
		}
		for c := hn.FirstChild; c != nil; c = c.NextSibling {
			if cn := convert(c); cn != nil {
				n.AppendChild(cn)
			}
		}
		return n
	default:
		return nil
	}
}

// HTML serializes n (and its descendants) as HTML. Fragments serialize
// their children only.
func (n *Node) HTML() string {
	var b strings.Builder
	_ = n.Render(&b)
	return b.String()
}

// InnerHTML serializes n's children.
func (n *Node) InnerHTML() string {
	var b strings.Builder
	for _, c := range n.Children {
		_ = c.Render(&b)
	}
	return b.String()
}

// Render writes n as HTML to w.
func (n *Node) Render(w io.Writer) error {
	sw, ok := w.(io.StringWriter)
	if !ok {
		sw = &stringWriter{w}
	}
	return n.render(sw, false)
}

type stringWriter struct{ w io.Writer }

func (s *stringWriter) WriteString(str string) (int, error) {
	return s.w.Write([]byte(str))
}

func (n *Node) render(w io.StringWriter, raw bool) error {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindText:
		text := n.Text
		if !raw {
			text = escapeHTML(text)
		}
		_, err := w.WriteString(text)
		return err
	case KindComment:
		_, err := w.WriteString("<!--" + n.Text + "-->")
		return err
	case KindFragment:
		for _, c := range n.Children {
			if err := c.render(w, raw); err != nil {
				return err
			}
		}
		return nil
	}

	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(n.Tag)
	for _, a := range n.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(a.Value))
		b.WriteByte('"')
	}
	b.WriteByte('>')
	if _, err := w.WriteString(b.String()); err != nil {
		return err
	}
	if voidElements[n.Tag] {
		return nil
	}
	for _, c := range n.Children {
		if err := c.render(w, rawTextElements[n.Tag]); err != nil {
			return err
		}
	}
	_, err := w.WriteString("</" + n.Tag + ">")
	return err
}
