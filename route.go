package shiny

import (
	"context"
	"fmt"
	"sort"

	"github.com/olivroy/shiny/internal/errors"
	"github.com/olivroy/shiny/pkg/binding"
	"github.com/olivroy/shiny/pkg/dispatch"
	"github.com/olivroy/shiny/pkg/dom"
	"github.com/olivroy/shiny/pkg/protocol"
)

// route applies one server message. The transport calls it from its read
// goroutine in receipt order, without the document lock.
func (c *Client) route(ctx context.Context, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.Values:
		for _, id := range sortedKeys(m.Invalid) {
			c.outputError(id, errors.New("E200").Wrap(m.Invalid[id]))
		}
		for _, id := range sortedKeys(m.Values) {
			c.receiveOutput(ctx, id, m.Values[id])
		}

	case *protocol.Errors:
		for _, id := range sortedKeys(m.Errors) {
			c.outputError(id, m.Errors[id])
		}

	case *protocol.Progress:
		be, ok := c.boundOutput(m.ID)
		if !ok {
			return
		}
		c.doc.Update(func() {
			err := binding.Call(be.Name, be.ID, "progress", func() error {
				be.Binding.ShowProgress(be.Node, m.Recalculating)
				return nil
			})
			if err != nil {
				c.console.Report(err)
			}
		})

	case *protocol.InputMessages:
		for _, im := range m.Messages {
			c.receiveInputMessage(im)
		}

	case *protocol.Custom:
		if err := c.dispatcher.Dispatch(ctx, dispatch.Message{Type: m.Type, Payload: m.Payload}); err != nil {
			c.logger.Warn("custom message dropped", "type", m.Type, "error", err)
		}

	case *protocol.Render:
		c.renderMessage(ctx, m)

	case *protocol.Ready:
		c.logger.Info("session ready", "session", m.SessionID)

	case *protocol.Close:
		if m.Reason == protocol.CloseError {
			c.console.Report(errors.New("E212").WithDetail(m.Message))
		}

	default:
		c.logger.Debug("message ignored", "type", msg.FrameType())
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Client) boundOutput(id string) (*binding.BoundOutput, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	be, ok := c.boundOut[id]
	return be, ok
}

func (c *Client) boundInput(id string) (*binding.BoundInput, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	be, ok := c.boundIn[id]
	return be, ok
}

// receiveOutput applies a server value, or keeps it until an output with
// that id is bound.
func (c *Client) receiveOutput(ctx context.Context, id string, v any) {
	c.mu.Lock()
	be, ok := c.boundOut[id]
	if !ok {
		c.values[id] = v
	}
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("value for unbound output kept", "id", id)
		return
	}

	if co, ok := be.Binding.(binding.ContentOutput); ok {
		c.renderContentValue(ctx, be, co, v)
		return
	}
	c.doc.Update(func() { c.applyLocked(ctx, be, v) })
}

// applyLocked renders v into a bound output. It runs with the document
// locked, so content outputs render on a separate goroutine.
func (c *Client) applyLocked(ctx context.Context, be *binding.BoundOutput, v any) {
	if co, ok := be.Binding.(binding.ContentOutput); ok {
		c.goTracked(func() { c.renderContentValue(ctx, be, co, v) })
		return
	}
	err := binding.Call(be.Name, be.ID, "render", func() error {
		return be.Binding.RenderValue(be.Node, v)
	})
	if err != nil {
		c.renderErrorLocked(be, errors.FromError(err, "E401"))
	}
}

// renderContentValue routes dynamic HTML through the dependency renderer.
func (c *Client) renderContentValue(ctx context.Context, be *binding.BoundOutput, co binding.ContentOutput, v any) {
	var content binding.Content
	var err error
	c.doc.Update(func() {
		err = binding.Call(be.Name, be.ID, "content", func() (err error) {
			content, err = co.Content(be.Node, v)
			return err
		})
	})
	if err == nil {
		err = c.renderer.RenderContentAsync(ctx, content.HTML, content.Dependencies, be.Node, dom.Replace)
	}
	if err != nil {
		c.outputError(be.ID, errors.FromError(err, "E401"))
	}
}

// outputError shows err on the output id. Errors for unbound outputs are
// only logged.
func (c *Client) outputError(id string, err error) {
	be, ok := c.boundOutput(id)
	if !ok {
		c.logger.Warn("error for unbound output", "id", id, "error", err)
		return
	}
	c.doc.Update(func() { c.renderErrorLocked(be, err) })
}

func (c *Client) renderErrorLocked(be *binding.BoundOutput, err error) {
	c.logger.Debug("output error", "id", be.ID, "error", err)
	cerr := binding.Call(be.Name, be.ID, "error", func() error {
		be.Binding.RenderError(be.Node, err)
		return nil
	})
	if cerr != nil {
		c.console.Report(cerr)
	}
}

// receiveInputMessage delivers a server message to a bound input.
func (c *Client) receiveInputMessage(im protocol.InputMessage) {
	be, ok := c.boundInput(im.ID)
	if !ok {
		c.logger.Warn("message for unbound input", "id", im.ID)
		return
	}
	recv, ok := be.Binding.(binding.MessageReceiver)
	if !ok {
		c.logger.Warn("input does not accept messages", "id", im.ID, "binding", be.Name)
		return
	}
	var err error
	c.doc.Update(func() {
		err = binding.Call(be.Name, be.ID, "receive", func() error {
			return recv.Receive(be.Node, im.Message)
		})
	})
	if err != nil {
		c.console.Report(err)
	}
}

// renderMessage inserts server-rendered content next to, or into, the
// element with the target id.
func (c *Client) renderMessage(ctx context.Context, m *protocol.Render) {
	where, err := dom.ParseWhere(m.Where)
	if err != nil {
		c.console.Report(fmt.Errorf("shiny: render %q: %w", m.Target, err))
		return
	}
	var target *dom.Node
	c.doc.Update(func() { target = c.doc.Body.ByID(m.Target) })
	if target == nil {
		c.console.Report(fmt.Errorf("shiny: render target %q not found", m.Target))
		return
	}
	if err := c.renderer.RenderContentAsync(ctx, m.HTML, m.Dependencies, target, where); err != nil {
		c.console.Report(err)
	}
}
