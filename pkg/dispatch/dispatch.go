// Package dispatch delivers custom server messages to registered handlers.
//
// Handlers are kept per message type in registration order. Each dispatch
// snapshots the handler list, so adding or removing handlers while a
// message is in flight only affects later messages. Messages of one type
// run on a serial lane: every handler for a message finishes before the
// handlers for the next message of that type start. Dispatch itself never
// waits for handlers.
//
// A single legacy handler, receiving every message regardless of type, can
// be installed with SetLegacy. It runs before the typed handlers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatch: dispatcher closed")

// Handler processes the payload of one custom message type.
type Handler func(ctx context.Context, payload any) error

// LegacyHandler receives every custom message.
type LegacyHandler func(ctx context.Context, msgType string, payload any) error

// Message is one custom message.
type Message struct {
	Type    string
	Payload any
}

// HandlerError reports a failing handler.
type HandlerError struct {
	Type  string
	Index int // -1 for the legacy handler
	Err   error
}

func (e *HandlerError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("dispatch: legacy handler for %q: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("dispatch: handler %d for %q: %v", e.Index, e.Type, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithErrorHandler sets a callback for handler failures, in addition to
// logging them.
func WithErrorHandler(fn func(*HandlerError)) Option {
	return func(d *Dispatcher) { d.onError = fn }
}

// Dispatcher routes custom messages to handlers.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[string][]*entry
	legacy   LegacyHandler
	lanes    map[string]*lane
	closed   bool
	inflight int
	idle     chan struct{}

	logger  *slog.Logger
	onError func(*HandlerError)
}

type entry struct {
	fn Handler
}

type task struct {
	ctx      context.Context
	msg      Message
	legacy   LegacyHandler
	handlers []*entry
}

type lane struct {
	queue   []task
	running bool
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string][]*entry),
		lanes:    make(map[string]*lane),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle removes a registered handler.
type Handle struct {
	d   *Dispatcher
	typ string
	e   *entry
}

// Remove de-registers the handler. It reports whether the handler was
// still registered.
func (h Handle) Remove() bool {
	if h.d == nil {
		return false
	}
	h.d.mu.Lock()
	defer h.d.mu.Unlock()

	list := h.d.handlers[h.typ]
	for i, e := range list {
		if e == h.e {
			// Copy so snapshots taken by in-flight dispatches stay intact.
			next := make([]*entry, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			if len(next) == 0 {
				delete(h.d.handlers, h.typ)
			} else {
				h.d.handlers[h.typ] = next
			}
			return true
		}
	}
	return false
}

// AddHandler appends fn to the handlers for msgType.
func (d *Dispatcher) AddHandler(msgType string, fn Handler) Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := &entry{fn: fn}
	list := d.handlers[msgType]
	next := make([]*entry, len(list), len(list)+1)
	copy(next, list)
	d.handlers[msgType] = append(next, e)
	return Handle{d: d, typ: msgType, e: e}
}

// SetLegacy installs the legacy handler, replacing any previous one. A nil
// fn removes it.
func (d *Dispatcher) SetLegacy(fn LegacyHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.legacy = fn
}

// HandlerCount returns the number of typed handlers for msgType.
func (d *Dispatcher) HandlerCount(msgType string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers[msgType])
}

// Dispatch schedules msg on its type's lane and returns immediately. The
// handler list is fixed at the time of the call. A message with no
// handlers at all is reported as an error so callers can log it.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	t := task{ctx: ctx, msg: msg, legacy: d.legacy, handlers: d.handlers[msg.Type]}
	if t.legacy == nil && len(t.handlers) == 0 {
		return fmt.Errorf("dispatch: no handler for message type %q", msg.Type)
	}

	l := d.lanes[msg.Type]
	if l == nil {
		l = &lane{}
		d.lanes[msg.Type] = l
	}
	l.queue = append(l.queue, t)
	d.inflight++
	if !l.running {
		l.running = true
		go d.drain(msg.Type, l)
	}
	return nil
}

func (d *Dispatcher) drain(msgType string, l *lane) {
	for {
		d.mu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			delete(d.lanes, msgType)
			d.mu.Unlock()
			return
		}
		t := l.queue[0]
		l.queue = l.queue[1:]
		d.mu.Unlock()

		d.execute(t)

		d.mu.Lock()
		d.inflight--
		if d.inflight == 0 && d.idle != nil {
			close(d.idle)
			d.idle = nil
		}
		d.mu.Unlock()
	}
}

func (d *Dispatcher) execute(t task) {
	if t.legacy != nil {
		d.call(t, -1, func() error { return t.legacy(t.ctx, t.msg.Type, t.msg.Payload) })
	}
	for i, e := range t.handlers {
		d.call(t, i, func() error { return e.fn(t.ctx, t.msg.Payload) })
	}
}

func (d *Dispatcher) call(t task, index int, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("custom message handler panic",
				"type", t.msg.Type,
				"panic", r,
				"stack", string(debug.Stack()))
			d.fail(&HandlerError{Type: t.msg.Type, Index: index, Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	if err := fn(); err != nil {
		d.logger.Warn("custom message handler failed", "type", t.msg.Type, "error", err)
		d.fail(&HandlerError{Type: t.msg.Type, Index: index, Err: err})
	}
}

func (d *Dispatcher) fail(err *HandlerError) {
	if d.onError != nil {
		d.onError(err)
	}
}

// Wait blocks until every dispatched message has been handled or ctx is
// done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	if d.inflight == 0 {
		d.mu.Unlock()
		return nil
	}
	if d.idle == nil {
		d.idle = make(chan struct{})
	}
	idle := d.idle
	d.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further dispatches. Queued messages still run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}
