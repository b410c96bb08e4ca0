package std

import (
	"fmt"
	"sync"

	"github.com/olivroy/shiny/pkg/binding"
	"github.com/olivroy/shiny/pkg/dom"
)

// Register installs the built-in adapters.
func Register(inputs *binding.Registry[binding.Input], outputs *binding.Registry[binding.Output]) error {
	for _, in := range []struct {
		name string
		b    binding.Input
	}{
		{"shiny.textInput", NewTextInput()},
		{"shiny.numberInput", NewNumberInput()},
		{"shiny.checkbox", NewCheckbox()},
		{"shiny.actionButton", NewActionButton()},
	} {
		if err := inputs.Register(in.name, in.b, binding.PriorityNormal); err != nil {
			return err
		}
	}
	if err := outputs.Register("shiny.textOutput", NewTextOutput(), binding.PriorityNormal); err != nil {
		return err
	}
	return outputs.Register("shiny.htmlOutput", NewHTMLOutput(), binding.PriorityNormal)
}

// subscriptions tracks the listeners an adapter installed per element.
type subscriptions struct {
	mu      sync.Mutex
	removes map[*dom.Node][]func()
}

func (s *subscriptions) add(el *dom.Node, typ string, fn func(dom.Event)) {
	remove := el.AddEventListener(typ, fn)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removes == nil {
		s.removes = make(map[*dom.Node][]func())
	}
	s.removes[el] = append(s.removes[el], remove)
}

func (s *subscriptions) clear(el *dom.Node) {
	s.mu.Lock()
	removes := s.removes[el]
	delete(s.removes, el)
	s.mu.Unlock()

	for _, r := range removes {
		r()
	}
}

func inputType(el *dom.Node) string {
	return el.AttrOr("type", "text")
}

func toString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}
