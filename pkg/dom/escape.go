package dom

import "strings"

// escapeHTML escapes text for safe inclusion in HTML content.
func escapeHTML(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))

	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		default:
			buf.WriteRune(r)
		}
	}

	return buf.String()
}

// escapeAttr escapes text for safe inclusion in a double-quoted attribute
// value. Whitespace that could break attribute parsing is escaped too.
func escapeAttr(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))

	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&#39;")
		case '\n':
			buf.WriteString("&#10;")
		case '\r':
			buf.WriteString("&#13;")
		case '\t':
			buf.WriteString("&#9;")
		default:
			buf.WriteRune(r)
		}
	}

	return buf.String()
}

// selectorMeta are the characters that carry meaning inside a selector.
const selectorMeta = " !\"#$%&'()*+,./:;<=>?@[\\]^`{|}~"

// EscapeSelector escapes s so it can be used as an id or class name inside
// a selector, e.g. "#" + EscapeSelector("plot.1") matches id="plot.1".
func EscapeSelector(s string) string {
	if s == "" {
		return s
	}
	var buf strings.Builder
	buf.Grow(len(s) + 4)
	for _, r := range s {
		if r < 0x80 && strings.ContainsRune(selectorMeta, r) {
			buf.WriteByte('\\')
		}
		buf.WriteRune(r)
	}
	return buf.String()
}
