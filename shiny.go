// Package shiny is a headless client for reactive Shiny sessions.
//
// A Client binds the input and output elements of a dom.Document, keeps a
// WebSocket session with the server alive across network loss, forwards
// input changes under their rate policies and applies the values,
// content and custom messages the server sends back.
//
// Usage:
//
//	doc, _ := dom.ParseDocument(`<input id="n" type="number" value="3">
//	<div id="out" class="shiny-text-output"></div>`)
//	c, err := shiny.New(shiny.DefaultConfig(), shiny.WithDocument(doc))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	if err := c.Start(ctx); err != nil {
//	    return err
//	}
//	if _, err := c.SessionInitialized().Wait(ctx); err != nil {
//	    return err
//	}
package shiny

import (
	"github.com/olivroy/shiny/internal/version"
	"github.com/olivroy/shiny/pkg/dom"
	"github.com/olivroy/shiny/pkg/ratelimit"
)

// DefaultVersion is the version reported when none is configured.
const DefaultVersion = "development"

// Escape backslash-escapes CSS selector metacharacters in s so it can be
// used inside an id or attribute selector.
func Escape(s string) string {
	return dom.EscapeSelector(s)
}

// CompareVersion compares two dotted version strings with op, one of
// "==", "!=", "<", "<=", ">" or ">=".
func CompareVersion(a, op, b string) (bool, error) {
	return version.Check(a, op, b)
}

// =============================================================================
// Input priorities
// =============================================================================

// Priority controls whether an input value may be suppressed.
type Priority uint8

const (
	// Deferred values are not sent again while they equal the last value
	// sent for the same id.
	Deferred Priority = iota

	// Event values are always sent, even when unchanged, as for buttons.
	Event
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	switch p {
	case Deferred:
		return "deferred"
	case Event:
		return "event"
	default:
		return "unknown"
	}
}

// InputOptions qualify one input value.
type InputOptions struct {
	Priority Priority

	// Policy rate-limits the value. The zero value sends immediately.
	Policy ratelimit.Policy

	// Type is a server-side type hint. When set the value is sent under
	// "id:type".
	Type string
}

func inputKey(id, typ string) string {
	if typ == "" {
		return id
	}
	return id + ":" + typ
}
