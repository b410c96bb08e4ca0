package session

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/olivroy/shiny/pkg/latch"
	"github.com/olivroy/shiny/pkg/protocol"
)

// Transport is the client side of one logical session. It survives
// network loss by reconnecting; only Close, a server Close frame or an
// exhausted reconnect policy end it.
type Transport struct {
	cfg     Config
	logger  *slog.Logger
	clock   clock.Clock
	limiter *rate.Limiter

	connected   *latch.Latch[struct{}]
	initialized *latch.Latch[string]

	// ctx lives as long as the transport.
	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
	wake    chan struct{}
	wg      sync.WaitGroup
	done    chan struct{}
	once    sync.Once

	mu              sync.Mutex
	state           State
	started         bool
	conn            Conn
	connCancel      context.CancelFunc
	reconnectCancel context.CancelFunc
	sessionID       string
	out             *outbox
	lastSeen        time.Time
	err             error
}

// New creates a Transport in the Connecting state. Nothing is dialed until
// Start.
func New(cfg Config) *Transport {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		cfg:         cfg,
		logger:      cfg.Logger.With("component", "session"),
		clock:       cfg.Clock,
		limiter:     rate.NewLimiter(cfg.SendRate, cfg.SendBurst),
		connected:   latch.New[struct{}](),
		initialized: latch.New[string](),
		ctx:         ctx,
		cancel:      cancel,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		state:       StateConnecting,
		out:         newOutbox(cfg.BufferSize),
	}
}

// Connected resolves the first time the transport opens.
func (t *Transport) Connected() *latch.Latch[struct{}] { return t.connected }

// Initialized resolves with the session id the first time the server
// reports it is ready for input.
func (t *Transport) Initialized() *latch.Latch[string] { return t.initialized }

// State returns the current state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SessionID returns the id assigned by the server, or "" before Ready.
func (t *Transport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Err returns why the transport closed. It is nil while the transport is
// live and after a plain Close.
func (t *Transport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done is closed once the transport is closed and all its goroutines
// have exited.
func (t *Transport) Done() <-chan struct{} { return t.done }

// Buffered returns the number of ids waiting to be sent.
func (t *Transport) Buffered() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out.len()
}

// transitionLocked is the only place the state changes. It returns a
// function that runs the state hook and must be called after t.mu is
// released.
func (t *Transport) transitionLocked(to State) func() {
	from := t.state
	if from == to || !canTransition(from, to) {
		return func() {}
	}
	t.state = to
	t.logger.Debug("state change", "from", from, "to", to)
	if hook := t.cfg.Hooks.OnStateChange; hook != nil {
		return func() { hook(from, to) }
	}
	return func() {}
}

// Start dials the server and sends Hello with every value already queued
// by Send. A failed first dial closes the transport.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.started {
		t.mu.Unlock()
		return ErrStarted
	}
	t.started = true
	initial := t.out.take()
	t.mu.Unlock()

	values, _ := toUpdate(initial)
	conn, err := t.dial(ctx, &protocol.Hello{Version: protocol.CurrentVersion, Values: values})
	if err != nil {
		t.mu.Lock()
		t.out.restore(initial)
		t.err = err
		notify := t.transitionLocked(StateClosed)
		t.mu.Unlock()
		t.cancel()
		notify()
		t.finish()
		return err
	}
	if !t.open(conn) {
		return ErrClosed
	}
	return nil
}

func (t *Transport) dial(ctx context.Context, hello *protocol.Hello) (Conn, error) {
	conn, err := t.cfg.Dialer.Dial(ctx, t.cfg.URL)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	data, err := protocol.Encode(t.cfg.Codec, hello)
	if err == nil {
		err = conn.WriteMessage(data)
	}
	if err != nil {
		conn.Close()
		return nil, &TransportError{Op: "hello", Err: err}
	}
	return conn, nil
}

// open installs conn and starts its goroutines. It reports false when the
// transport closed in the meantime.
func (t *Transport) open(conn Conn) bool {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		conn.Close()
		return false
	}
	ctx, cancel := context.WithCancel(t.ctx)
	t.conn = conn
	t.connCancel = cancel
	t.reconnectCancel = nil
	t.lastSeen = t.clock.Now()
	notify := t.transitionLocked(StateOpen)
	t.wg.Add(3)
	t.mu.Unlock()

	notify()
	t.connected.Resolve(struct{}{})
	go t.readLoop(ctx, conn)
	go t.writeLoop(ctx, conn)
	go t.heartbeat(ctx, conn)
	t.signal()
	return true
}

// Send queues value for id. Values sent while the transport is not open
// are buffered and flushed, latest value per id, once it opens.
func (t *Transport) Send(id string, value any) error {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return ErrClosed
	}
	evicted, dropped := t.out.put(id, value)
	open := t.state == StateOpen
	t.mu.Unlock()

	if dropped {
		t.logger.Warn("input buffer full, dropping value", "id", evicted)
		if hook := t.cfg.Hooks.OnDrop; hook != nil {
			hook(evicted)
		}
	}
	if open {
		t.signal()
	}
	return nil
}

// Pending reports whether a value for id is waiting to be sent.
func (t *Transport) Pending(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out.has(id)
}

func (t *Transport) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// write encodes and writes msg. Encoding errors are returned as is; write
// failures as *TransportError.
func (t *Transport) write(conn Conn, msg protocol.Message) error {
	data, err := protocol.Encode(t.cfg.Codec, msg)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	err = conn.WriteMessage(data)
	t.writeMu.Unlock()
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// writeLoop collects queued values into one Update frame per turn.
func (t *Transport) writeLoop(ctx context.Context, conn Conn) {
	defer t.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.wake:
		}
		if err := t.limiter.Wait(ctx); err != nil {
			return
		}

		t.mu.Lock()
		if t.conn != conn || t.state != StateOpen {
			t.mu.Unlock()
			return
		}
		batch := t.out.take()
		t.mu.Unlock()
		if len(batch) == 0 {
			continue
		}

		values, order := toUpdate(batch)
		err := t.write(conn, &protocol.Update{Values: values, Order: order})
		var te *TransportError
		switch {
		case errors.As(err, &te):
			t.mu.Lock()
			t.out.restore(batch)
			t.mu.Unlock()
			t.lose(conn, err)
			return
		case err != nil:
			t.logger.Error("encode update", "ids", order, "error", err)
			continue
		}
		if hook := t.cfg.Hooks.OnSend; hook != nil {
			hook(len(batch))
		}
	}
}

// readLoop decodes frames in receipt order. Malformed frames are logged
// and skipped.
func (t *Transport) readLoop(ctx context.Context, conn Conn) {
	defer t.wg.Done()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				t.lose(conn, &TransportError{Op: "read", Err: err})
			}
			return
		}
		t.mu.Lock()
		t.lastSeen = t.clock.Now()
		t.mu.Unlock()

		msg, frame, err := protocol.Decode(data)
		if err != nil {
			if frame != nil {
				t.logger.Warn("dropping frame", "type", frame.Type, "error", err)
			} else {
				t.logger.Error("frame decode error", "error", err)
			}
			if hook := t.cfg.Hooks.OnMalformed; hook != nil {
				hook(err)
			}
			continue
		}
		if hook := t.cfg.Hooks.OnReceive; hook != nil {
			hook(frame.Type)
		}
		if !t.handle(conn, msg) {
			return
		}
	}
}

// handle consumes control messages and routes the rest. It returns false
// when the read loop should stop.
func (t *Transport) handle(conn Conn, msg protocol.Message) bool {
	switch m := msg.(type) {
	case *protocol.Ping:
		if err := t.write(conn, &protocol.Pong{Timestamp: m.Timestamp}); err != nil {
			t.lose(conn, err)
			return false
		}
		return true

	case *protocol.Pong:
		sent := time.UnixMilli(int64(m.Timestamp))
		t.logger.Debug("received pong", "rtt", t.clock.Since(sent))
		return true

	case *protocol.Ready:
		t.mu.Lock()
		t.sessionID = m.SessionID
		t.mu.Unlock()
		t.initialized.Resolve(m.SessionID)

	case *protocol.Close:
		t.logger.Info("server closing session", "reason", m.Reason, "message", m.Message)
		t.route(msg)
		t.shutdown(ErrServerClosed)
		return false
	}

	t.route(msg)
	return true
}

func (t *Transport) route(msg protocol.Message) {
	if t.cfg.Router == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("router panic",
				"type", msg.FrameType(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	t.cfg.Router.Route(t.ctx, msg)
}

// heartbeat pings the server and drops connections that went silent.
func (t *Transport) heartbeat(ctx context.Context, conn Conn) {
	defer t.wg.Done()
	if t.cfg.HeartbeatInterval < 0 {
		return
	}

	ticker := t.clock.Ticker(t.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if timeout := t.cfg.HeartbeatTimeout; timeout > 0 {
			t.mu.Lock()
			silent := t.clock.Since(t.lastSeen)
			t.mu.Unlock()
			if silent > timeout {
				t.lose(conn, &TransportError{Op: "heartbeat", Err: ErrHeartbeatTimeout})
				return
			}
		}
		ping := &protocol.Ping{Timestamp: uint64(t.clock.Now().UnixMilli())}
		if err := t.write(conn, ping); err != nil {
			t.lose(conn, err)
			return
		}
	}
}

// LoseConnection drops the current connection as if the network failed
// and starts reconnecting. It does nothing unless the transport is open.
func (t *Transport) LoseConnection(cause error) {
	t.lose(nil, cause)
}

// lose moves an open transport to Reconnecting. conn, when set, must be
// the current connection; stale connections are ignored.
func (t *Transport) lose(conn Conn, cause error) {
	t.mu.Lock()
	if t.state != StateOpen || (conn != nil && conn != t.conn) {
		t.mu.Unlock()
		return
	}
	conn = t.conn
	cancelConn := t.connCancel
	t.conn, t.connCancel = nil, nil
	ctx, cancel := context.WithCancel(t.ctx)
	t.reconnectCancel = cancel
	notify := t.transitionLocked(StateReconnecting)
	t.wg.Add(1)
	t.mu.Unlock()

	cancelConn()
	conn.Close()
	notify()
	t.logger.Warn("connection lost", "error", cause)
	go t.reconnect(ctx, cancel, cause)
}

func (t *Transport) reconnect(ctx context.Context, cancel context.CancelFunc, cause error) {
	defer t.wg.Done()
	defer cancel()

	r := &Reconnector{
		Policy:    t.cfg.Reconnect,
		Clock:     t.clock,
		Dialog:    t.cfg.Dialog,
		Logger:    t.logger,
		OnAttempt: t.cfg.Hooks.OnReconnectAttempt,
	}
	conn, err := r.Run(ctx, cause, func(ctx context.Context) (Conn, error) {
		return t.dial(ctx, &protocol.Hello{
			Version:   protocol.CurrentVersion,
			SessionID: t.SessionID(),
			Resume:    true,
		})
	})
	if err != nil {
		if ctx.Err() == nil {
			t.shutdown(err)
		}
		return
	}
	if t.open(conn) {
		t.logger.Info("reconnected", "session", t.SessionID())
	}
}

// Close ends the session. Pending reconnect attempts are cancelled and no
// further attempts are made. Buffered values are discarded.
func (t *Transport) Close() error {
	t.shutdown(nil)
	return nil
}

// Wait blocks until the transport's goroutines have exited after Close,
// or ctx is done. It must not be called from a Router.
func (t *Transport) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transport) shutdown(cause error) {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return
	}
	t.err = cause
	conn := t.conn
	cancelConn, cancelReconnect := t.connCancel, t.reconnectCancel
	t.conn, t.connCancel, t.reconnectCancel = nil, nil, nil
	notify := t.transitionLocked(StateClosed)
	t.mu.Unlock()

	if cancelReconnect != nil {
		cancelReconnect()
	}
	if cancelConn != nil {
		cancelConn()
	}
	if conn != nil {
		conn.Close()
	}
	t.cancel()
	notify()
	if cause != nil {
		t.logger.Error("session closed", "error", cause)
	} else {
		t.logger.Info("session closed")
	}
	t.finish()
}

// finish closes done once every goroutine has exited.
func (t *Transport) finish() {
	t.once.Do(func() {
		go func() {
			t.wg.Wait()
			close(t.done)
		}()
	})
}
