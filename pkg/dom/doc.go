// Package dom provides the document model the client binds against.
//
// The client runs headless, so the page is represented as a tree of Node
// values instead of a browser DOM. The tree supports the operations the
// binding and rendering layers need: attribute access, simple selector
// matching, HTML fragment parsing and serialization, and positional
// insertion of parsed content.
//
// # Concurrency
//
// Nodes are not safe for concurrent mutation. A Document carries a mutex
// and all tree mutations reachable from more than one goroutine go through
// Document.Update.
//
// # Selectors
//
// Matches understands compound selectors built from a tag name, #id,
// .class, [attr] and [attr=value] parts, and comma separated lists of
// those. Combinators are not supported.
//
//	n.Matches("input.shiny-bound-input[type=text], textarea")
package dom
