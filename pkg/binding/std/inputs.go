package std

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olivroy/shiny/pkg/dom"
	"github.com/olivroy/shiny/pkg/ratelimit"
)

// TextDebounce is the default rate policy delay of text inputs.
const TextDebounce = 250 * time.Millisecond

// TextInput binds text-like <input> elements and <textarea>.
type TextInput struct {
	subs subscriptions
}

func NewTextInput() *TextInput { return &TextInput{} }

var textTypes = map[string]bool{
	"text": true, "search": true, "email": true, "url": true,
	"password": true, "tel": true,
}

func (b *TextInput) Match(el *dom.Node) bool {
	if el.Tag == "textarea" {
		return true
	}
	return el.Tag == "input" && textTypes[inputType(el)]
}

func (b *TextInput) ID(el *dom.Node) string { return el.ID() }

func (b *TextInput) Value(el *dom.Node) (any, error) {
	if el.Tag == "textarea" {
		return el.TextContent(), nil
	}
	return el.AttrOr("value", ""), nil
}

func (b *TextInput) SetValue(el *dom.Node, v any) error {
	if el.Tag == "textarea" {
		el.SetTextContent(toString(v))
		return nil
	}
	el.SetAttr("value", toString(v))
	return nil
}

func (b *TextInput) Subscribe(el *dom.Node, onChange func(deferrable bool)) {
	b.subs.add(el, dom.EventInput, func(dom.Event) { onChange(true) })
	b.subs.add(el, dom.EventChange, func(dom.Event) { onChange(false) })
	b.subs.add(el, dom.EventKeyDown, func(ev dom.Event) {
		if ev.Key == "Enter" {
			onChange(false)
		}
	})
}

func (b *TextInput) Unsubscribe(el *dom.Node) { b.subs.clear(el) }

// RatePolicy debounces by default. A data-throttle attribute holding a
// duration selects throttling instead; a data-debounce duration overrides
// the debounce delay. "0" in either disables limiting.
func (b *TextInput) RatePolicy(el *dom.Node) ratelimit.Policy {
	if s, ok := el.Attr("data-throttle"); ok {
		if s == "0" {
			return ratelimit.None()
		}
		if d, err := time.ParseDuration(s); err == nil {
			return ratelimit.Throttle(d)
		}
	}
	if s, ok := el.Attr("data-debounce"); ok {
		if s == "0" {
			return ratelimit.None()
		}
		if d, err := time.ParseDuration(s); err == nil {
			return ratelimit.Debounce(d)
		}
	}
	return ratelimit.Debounce(TextDebounce)
}

// Receive accepts {"value": v, "label": s} updates from the server.
func (b *TextInput) Receive(el *dom.Node, msg any) error {
	m, ok := msg.(map[string]any)
	if !ok {
		return fmt.Errorf("std: text input message is %T, want object", msg)
	}
	if v, ok := m["value"]; ok {
		if err := b.SetValue(el, v); err != nil {
			return err
		}
		el.Dispatch(dom.Event{Type: dom.EventChange})
	}
	if l, ok := m["label"].(string); ok {
		el.SetAttr("aria-label", l)
	}
	return nil
}

// NumberInput binds <input type=number>. Empty inputs report nil.
type NumberInput struct {
	TextInput
}

func NewNumberInput() *NumberInput { return &NumberInput{} }

func (b *NumberInput) Match(el *dom.Node) bool {
	return el.Tag == "input" && inputType(el) == "number"
}

func (b *NumberInput) Value(el *dom.Node) (any, error) {
	s := strings.TrimSpace(el.AttrOr("value", ""))
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("std: number input: %w", err)
	}
	return f, nil
}

func (b *NumberInput) Type(*dom.Node) string { return "shiny.number" }

// Checkbox binds <input type=checkbox>. Its value is the checked state.
type Checkbox struct {
	subs subscriptions
}

func NewCheckbox() *Checkbox { return &Checkbox{} }

func (b *Checkbox) Match(el *dom.Node) bool {
	return el.Tag == "input" && inputType(el) == "checkbox"
}

func (b *Checkbox) ID(el *dom.Node) string { return el.ID() }

func (b *Checkbox) Value(el *dom.Node) (any, error) {
	_, checked := el.Attr("checked")
	return checked, nil
}

func (b *Checkbox) SetValue(el *dom.Node, v any) error {
	checked, ok := v.(bool)
	if !ok {
		return fmt.Errorf("std: checkbox value is %T, want bool", v)
	}
	if checked {
		el.SetAttr("checked", "")
	} else {
		el.RemoveAttr("checked")
	}
	return nil
}

func (b *Checkbox) Subscribe(el *dom.Node, onChange func(deferrable bool)) {
	b.subs.add(el, dom.EventChange, func(dom.Event) { onChange(false) })
}

func (b *Checkbox) Unsubscribe(el *dom.Node) { b.subs.clear(el) }

func (b *Checkbox) RatePolicy(*dom.Node) ratelimit.Policy { return ratelimit.None() }

func (b *Checkbox) Receive(el *dom.Node, msg any) error {
	m, ok := msg.(map[string]any)
	if !ok {
		return fmt.Errorf("std: checkbox message is %T, want object", msg)
	}
	if v, ok := m["value"]; ok {
		if err := b.SetValue(el, v); err != nil {
			return err
		}
		el.Dispatch(dom.Event{Type: dom.EventChange})
	}
	return nil
}

// ActionButton binds button.action-button. Its value counts clicks.
type ActionButton struct {
	subs subscriptions
}

func NewActionButton() *ActionButton { return &ActionButton{} }

func (b *ActionButton) Match(el *dom.Node) bool {
	return (el.Tag == "button" || el.Tag == "a") && el.HasClass("action-button")
}

func (b *ActionButton) ID(el *dom.Node) string { return el.ID() }

func (b *ActionButton) Value(el *dom.Node) (any, error) {
	n, _ := strconv.Atoi(el.AttrOr("data-val", "0"))
	return n, nil
}

// SetValue resets the click counter; only 0 is accepted.
func (b *ActionButton) SetValue(el *dom.Node, v any) error {
	switch v {
	case 0, float64(0):
		el.SetAttr("data-val", "0")
		return nil
	}
	return fmt.Errorf("std: action button can only be reset to 0, got %v", v)
}

func (b *ActionButton) Subscribe(el *dom.Node, onChange func(deferrable bool)) {
	b.subs.add(el, dom.EventClick, func(dom.Event) {
		n, _ := strconv.Atoi(el.AttrOr("data-val", "0"))
		el.SetAttr("data-val", strconv.Itoa(n+1))
		onChange(false)
	})
}

func (b *ActionButton) Unsubscribe(el *dom.Node) { b.subs.clear(el) }

func (b *ActionButton) RatePolicy(*dom.Node) ratelimit.Policy { return ratelimit.None() }

func (b *ActionButton) Type(*dom.Node) string { return "shiny.action" }
