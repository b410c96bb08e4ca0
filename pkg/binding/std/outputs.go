package std

import (
	"fmt"

	"github.com/olivroy/shiny/pkg/binding"
	"github.com/olivroy/shiny/pkg/dom"
	"github.com/olivroy/shiny/pkg/protocol"
)

// Output state classes.
const (
	ErrorClass         = "shiny-output-error"
	RecalculatingClass = "recalculating"
)

type outputBase struct{}

func (outputBase) ID(el *dom.Node) string { return el.ID() }

func (outputBase) RenderError(el *dom.Node, err error) {
	el.AddClass(ErrorClass)
	el.SetTextContent(err.Error())
}

func (outputBase) ShowProgress(el *dom.Node, recalculating bool) {
	if recalculating {
		el.AddClass(RecalculatingClass)
	} else {
		el.RemoveClass(RecalculatingClass)
	}
}

// TextOutput binds .shiny-text-output and renders values as text.
type TextOutput struct {
	outputBase
}

func NewTextOutput() *TextOutput { return &TextOutput{} }

func (TextOutput) Match(el *dom.Node) bool { return el.HasClass("shiny-text-output") }

func (TextOutput) RenderValue(el *dom.Node, v any) error {
	el.RemoveClass(ErrorClass)
	el.SetTextContent(toString(v))
	return nil
}

// HTMLOutput binds .shiny-html-output. Its values are either an HTML
// string or an object {"html": s, "deps": [...]}.
type HTMLOutput struct {
	outputBase
}

func NewHTMLOutput() *HTMLOutput { return &HTMLOutput{} }

var _ binding.ContentOutput = (*HTMLOutput)(nil)

func (HTMLOutput) Match(el *dom.Node) bool { return el.HasClass("shiny-html-output") }

// RenderValue replaces the content without loading dependencies.
func (b HTMLOutput) RenderValue(el *dom.Node, v any) error {
	c, err := b.Content(el, v)
	if err != nil {
		return err
	}
	frag, err := dom.ParseFragment(c.HTML)
	if err != nil {
		return err
	}
	el.RemoveClass(ErrorClass)
	el.Empty()
	el.AppendChild(frag)
	return nil
}

func (HTMLOutput) Content(_ *dom.Node, v any) (binding.Content, error) {
	switch v := v.(type) {
	case nil:
		return binding.Content{}, nil
	case string:
		return binding.Content{HTML: v}, nil
	case map[string]any:
		html, _ := v["html"].(string)
		c := binding.Content{HTML: html}
		if raw, ok := v["deps"]; ok && raw != nil {
			// Round-trip through JSON to type the dependency list.
			data, err := protocol.JSON.Marshal(raw)
			if err != nil {
				return binding.Content{}, err
			}
			if err := protocol.JSON.Unmarshal(data, &c.Dependencies); err != nil {
				return binding.Content{}, fmt.Errorf("std: html output deps: %w", err)
			}
		}
		return c, nil
	default:
		return binding.Content{}, fmt.Errorf("std: html output value is %T", v)
	}
}
