package shiny

import (
	"context"
	stderrors "errors"
	"reflect"

	"go.opentelemetry.io/otel/attribute"

	"github.com/olivroy/shiny/internal/errors"
	"github.com/olivroy/shiny/pkg/binding"
	"github.com/olivroy/shiny/pkg/dom"
	"github.com/olivroy/shiny/pkg/ratelimit"
)

// =============================================================================
// Binding
// =============================================================================

// BindAll binds every input and output under scope that is not bound yet.
// Newly bound inputs report their current value. A nil scope is the
// document body. Values that could not be read are returned joined; the
// rest of the scope is still bound.
func (c *Client) BindAll(ctx context.Context, scope *dom.Node) error {
	var err error
	c.doc.Update(func() { err = c.bind(ctx, c.scope(scope)) })
	return err
}

// UnbindAll releases the bound elements under scope, scope itself only
// when includeSelf is set. Pending rate-limited sends of released inputs
// are cancelled.
func (c *Client) UnbindAll(scope *dom.Node, includeSelf bool) {
	c.doc.Update(func() { c.unbind(c.scope(scope), includeSelf) })
}

// InitializeInputs binds scope, or the document body when nil, and queues
// the current value of every input. Values queued before Start are sent
// with the session handshake.
func (c *Client) InitializeInputs(ctx context.Context, scope *dom.Node) error {
	if err := c.BindAll(ctx, scope); err != nil {
		se := errors.New("E102").Wrap(err)
		c.console.Report(se)
		return se
	}
	return nil
}

func (c *Client) scope(n *dom.Node) *dom.Node {
	if n == nil {
		return c.doc.Body
	}
	return n
}

// bind runs with the document locked.
func (c *Client) bind(ctx context.Context, scope *dom.Node) error {
	if c.tracer != nil {
		_, span := c.tracer.Start(ctx, "shiny.bind", attribute.String("shiny.scope", scope.ID()))
		defer span.End()
	}

	// Content removed from the document no longer counts as bound.
	// Scopes bound outside the document stay bound until unbound.
	if !c.doc.Root.Contains(scope) {
		c.detached[scope] = struct{}{}
	}
	keep := []*dom.Node{c.doc.Root}
	for root := range c.detached {
		if c.doc.Root.Contains(root) {
			delete(c.detached, root)
			continue
		}
		keep = append(keep, root)
	}
	c.inScan.Prune(keep...)
	c.outScan.Prune(keep...)

	var errs []error
	for be := range c.inScan.Scan(scope) {
		if err := c.reportInput(be, false); err != nil {
			errs = append(errs, err)
		}
	}
	c.outScan.BindAll(scope)
	return stderrors.Join(errs...)
}

// unbind runs with the document locked.
func (c *Client) unbind(scope *dom.Node, includeSelf bool) {
	for root := range c.detached {
		if scope.Contains(root) && (includeSelf || root != scope) {
			delete(c.detached, root)
		}
	}
	c.inScan.Unscan(scope, includeSelf)
	c.outScan.Unscan(scope, includeSelf)
}

// binder lets the dependency renderer bind content it inserts. Both
// methods run with the document locked.
type binder struct{ c *Client }

func (b binder) Bind(ctx context.Context, scope *dom.Node) {
	if err := b.c.bind(ctx, scope); err != nil {
		b.c.console.Report(err)
	}
}

func (b binder) Unbind(scope *dom.Node, includeSelf bool) { b.c.unbind(scope, includeSelf) }

func (c *Client) attachInput(be *binding.BoundInput) error {
	c.mu.Lock()
	c.boundIn[be.ID] = be
	c.mu.Unlock()
	be.Binding.Subscribe(be.Node, func(deferrable bool) {
		if err := c.reportInput(be, deferrable); err != nil {
			c.console.Report(err)
		}
	})
	return nil
}

func (c *Client) detachInput(be *binding.BoundInput) {
	be.Binding.Unsubscribe(be.Node)
	c.mu.Lock()
	if c.boundIn[be.ID] == be {
		delete(c.boundIn, be.ID)
	}
	c.mu.Unlock()
	c.ForgetLastInputValue(be.ID)
}

func (c *Client) attachOutput(be *binding.BoundOutput) error {
	c.mu.Lock()
	c.boundOut[be.ID] = be
	v, ok := c.values[be.ID]
	delete(c.values, be.ID)
	c.mu.Unlock()

	if ok {
		// A value arrived before the output existed.
		c.applyLocked(context.Background(), be, v)
	}
	return nil
}

func (c *Client) detachOutput(be *binding.BoundOutput) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.boundOut[be.ID] == be {
		delete(c.boundOut, be.ID)
	}
}

func (c *Client) bindingError(el *dom.Node, err error) {
	c.logger.Warn("binding failed", "element", el.ID(), "error", err)
	c.console.Report(err)
}

// reportInput reads the value of a bound input and submits it. A change
// that cannot be deferred bypasses the element's rate policy. It runs
// with the document locked.
func (c *Client) reportInput(be *binding.BoundInput, deferrable bool) error {
	var v any
	err := binding.Call(be.Name, be.ID, "value", func() (err error) {
		v, err = be.Binding.Value(be.Node)
		return err
	})
	if err != nil {
		return errors.FromError(err, "E400")
	}

	opts := InputOptions{Policy: ratelimit.None()}
	if deferrable {
		opts.Policy = be.Binding.RatePolicy(be.Node)
	}
	if t, ok := be.Binding.(binding.Typer); ok {
		opts.Type = t.Type(be.Node)
	}
	c.SetInputValue(be.ID, v, opts)
	return nil
}

// =============================================================================
// Input values
// =============================================================================

// SetInputValue sends value for the input id under opts. Deferred values
// equal to the last value sent for id are dropped when they are released
// by the rate policy.
func (c *Client) SetInputValue(id string, value any, opts InputOptions) {
	c.limiter.Submit(id, queuedValue{
		key:      inputKey(id, opts.Type),
		value:    value,
		priority: opts.Priority,
	}, opts.Policy)
}

// OnInputChange is SetInputValue.
func (c *Client) OnInputChange(id string, value any, opts InputOptions) {
	c.SetInputValue(id, value, opts)
}

// ForgetLastInputValue clears what the client remembers about id: the
// next value is sent even if it equals the last one, and a value still
// waiting on a rate-limit timer is discarded.
func (c *Client) ForgetLastInputValue(id string) {
	c.limiter.Cancel(id)
	c.mu.Lock()
	delete(c.lastSent, id)
	c.mu.Unlock()
}

// emit receives values released by the rate limiter.
func (c *Client) emit(id string, v any) {
	q := v.(queuedValue)

	c.mu.Lock()
	last, seen := c.lastSent[id]
	if q.priority == Deferred && seen && last.key == q.key && reflect.DeepEqual(last.value, q.value) {
		c.mu.Unlock()
		c.logger.Debug("input unchanged, not sent", "id", id)
		return
	}
	c.lastSent[id] = sentValue{key: q.key, value: q.value}
	c.mu.Unlock()

	if err := c.transport.Send(q.key, q.value); err != nil {
		c.logger.Debug("input not sent", "id", id, "error", err)
	}
}
