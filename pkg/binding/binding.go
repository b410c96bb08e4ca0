package binding

import (
	"github.com/olivroy/shiny/pkg/dom"
	"github.com/olivroy/shiny/pkg/protocol"
	"github.com/olivroy/shiny/pkg/ratelimit"
)

// Matcher decides whether an adapter governs an element.
type Matcher interface {
	Match(el *dom.Node) bool
}

// Input is the adapter contract for user-editable elements.
type Input interface {
	Matcher

	// ID returns the input id. An empty id makes the scanner assign one.
	ID(el *dom.Node) string

	// Value reads the current value.
	Value(el *dom.Node) (any, error)

	// SetValue writes a value without reporting a change.
	SetValue(el *dom.Node, v any) error

	// Subscribe registers onChange to be called whenever the value changes.
	// deferrable is false when the change should bypass the rate policy.
	Subscribe(el *dom.Node, onChange func(deferrable bool))

	// Unsubscribe removes the change callback.
	Unsubscribe(el *dom.Node)

	// RatePolicy returns the element's rate-limit rule.
	RatePolicy(el *dom.Node) ratelimit.Policy
}

// MessageReceiver is implemented by inputs that accept server messages.
type MessageReceiver interface {
	Receive(el *dom.Node, msg any) error
}

// Typer is implemented by inputs whose values need a server-side type
// hint. The id sent to the server becomes "id:type".
type Typer interface {
	Type(el *dom.Node) string
}

// Output is the adapter contract for server-rendered elements.
type Output interface {
	Matcher

	// ID returns the output id.
	ID(el *dom.Node) string

	// RenderValue applies a server value.
	RenderValue(el *dom.Node, v any) error

	// RenderError shows a visible error state.
	RenderError(el *dom.Node, err error)

	// ShowProgress toggles the recalculating state.
	ShowProgress(el *dom.Node, recalculating bool)
}

// Content is HTML with the dependencies it needs.
type Content struct {
	HTML         string
	Dependencies []protocol.Dependency
}

// ContentOutput is implemented by outputs whose values are dynamic HTML.
// Such values are routed through the dependency renderer instead of
// RenderValue.
type ContentOutput interface {
	Output
	Content(el *dom.Node, v any) (Content, error)
}

// BoundElement is an element together with the adapter governing it.
type BoundElement[T Matcher] struct {
	Node    *dom.Node
	ID      string
	Name    string // Registry name of the adapter
	Binding T
}

// Aliases for the two scanner kinds.
type (
	BoundInput  = BoundElement[Input]
	BoundOutput = BoundElement[Output]
)
