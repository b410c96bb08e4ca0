package shiny

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/olivroy/shiny/internal/errors"
	"github.com/olivroy/shiny/pkg/binding"
	"github.com/olivroy/shiny/pkg/binding/std"
	"github.com/olivroy/shiny/pkg/deps"
	"github.com/olivroy/shiny/pkg/dispatch"
	"github.com/olivroy/shiny/pkg/dom"
	"github.com/olivroy/shiny/pkg/latch"
	"github.com/olivroy/shiny/pkg/present"
	"github.com/olivroy/shiny/pkg/ratelimit"
	"github.com/olivroy/shiny/pkg/session"
	"github.com/olivroy/shiny/pkg/telemetry"
)

// Client is one page's connection to a reactive server.
//
// The document lock (dom.Document.Update) guards every element the client
// binds. Adapter callbacks such as input change notifications run while
// that lock is held by whoever dispatched the event; the client never
// takes the lock from inside them.
type Client struct {
	cfg    Config
	logger *slog.Logger
	clock  clock.Clock
	doc    *dom.Document

	inputs  *binding.Registry[binding.Input]
	outputs *binding.Registry[binding.Output]
	markers *binding.Markers
	inScan  *binding.Scanner[binding.Input]
	outScan *binding.Scanner[binding.Output]

	limiter    *ratelimit.Limiter
	transport  *session.Transport
	dispatcher *dispatch.Dispatcher
	renderer   *deps.Renderer
	tracer     *telemetry.Tracer

	presenter *present.Document
	console   present.Console
	notifier  present.Notifier
	modal     present.Modal
	dialog    present.ReconnectDialog

	started   atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu       sync.Mutex
	boundIn  map[string]*binding.BoundInput
	boundOut map[string]*binding.BoundOutput
	lastSent map[string]sentValue
	values   map[string]any // Values for outputs not yet bound

	detached map[*dom.Node]struct{} // Bound scopes outside the document; guarded by the document lock
}

type sentValue struct {
	key   string
	value any
}

// queuedValue is what the rate limiter holds for one input id.
type queuedValue struct {
	key      string
	value    any
	priority Priority
}

// New builds a client. Nothing is dialed until Start.
func New(cfg Config, opts ...Option) (*Client, error) {
	s := settings{cfg: *cfg.Clone(), builtins: true}
	for _, opt := range opts {
		opt(&s)
	}
	s.cfg = s.cfg.withDefaults()
	if s.doc == nil {
		s.doc = dom.NewDocument()
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.table == nil {
		s.table = deps.NewTable()
	}
	if s.markers == nil {
		s.markers = binding.NewMarkers()
	}

	c := &Client{
		cfg:      s.cfg,
		logger:   s.cfg.Logger.With("component", "client"),
		clock:    s.clock,
		doc:      s.doc,
		inputs:   binding.NewRegistry[binding.Input](),
		outputs:  binding.NewRegistry[binding.Output](),
		markers:  s.markers,
		tracer:   s.tracer,
		console:  s.console,
		boundIn:  make(map[string]*binding.BoundInput),
		detached: make(map[*dom.Node]struct{}),
		boundOut: make(map[string]*binding.BoundOutput),
		lastSent: make(map[string]sentValue),
		values:   make(map[string]any),
	}
	if s.builtins {
		if err := std.Register(c.inputs, c.outputs); err != nil {
			return nil, err
		}
	}

	c.presenter = present.NewDocument(c.doc,
		present.WithClock(c.clock),
		present.WithLogger(s.cfg.Logger))
	c.notifier = orDefault(s.notifier, c.presenter.Notifier())
	c.modal = orDefault(s.modal, c.presenter.Modal())
	c.dialog = orDefault(s.dialog, c.presenter.ReconnectDialog())
	if c.console == nil {
		c.console = present.LogConsole{Logger: s.cfg.Logger}
	}

	c.inScan = binding.NewInputScanner(c.inputs, c.markers)
	c.inScan.Attach = c.attachInput
	c.inScan.Detach = c.detachInput
	c.inScan.OnError = c.bindingError
	c.outScan = binding.NewOutputScanner(c.outputs, c.markers)
	c.outScan.Attach = c.attachOutput
	c.outScan.Detach = c.detachOutput
	c.outScan.OnError = c.bindingError

	c.limiter = ratelimit.New(c.emit, ratelimit.WithClock(c.clock))

	c.dispatcher = dispatch.New(
		dispatch.WithLogger(s.cfg.Logger),
		dispatch.WithErrorHandler(func(err *dispatch.HandlerError) { c.console.Report(err) }),
	)

	loader, err := c.buildLoader(s)
	if err != nil {
		return nil, err
	}
	c.renderer = deps.NewRenderer(c.doc, s.table, loader,
		deps.WithBinder(binder{c}),
		deps.WithLogger(s.cfg.Logger),
		deps.WithErrorReporter(c.console.Report))

	hooks := s.hooks
	if s.metrics != nil {
		hooks = s.metrics.SessionHooks(hooks)
	}
	dialer := s.dialer
	if dialer == nil {
		dialer = session.WebSocketDialer{Header: s.cfg.Header}
	}
	c.transport = session.New(session.Config{
		URL:               s.cfg.URL,
		Codec:             s.cfg.Codec,
		Dialer:            dialer,
		Router:            session.RouterFunc(c.route),
		Dialog:            c.dialog,
		Reconnect:         s.cfg.Reconnect,
		HeartbeatInterval: s.cfg.HeartbeatInterval,
		HeartbeatTimeout:  s.cfg.HeartbeatTimeout,
		BufferSize:        s.cfg.BufferSize,
		SendRate:          s.cfg.SendRate,
		Hooks:             hooks,
		Clock:             c.clock,
		Logger:            s.cfg.Logger,
	})

	c.addBuiltinHandlers()
	return c, nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func (c *Client) buildLoader(s settings) (deps.Loader, error) {
	loader := s.loader
	if loader == nil {
		fetcher := s.fetcher
		if fetcher == nil {
			mux, err := c.defaultFetcher()
			if err != nil {
				return nil, err
			}
			fetcher = mux
		}
		loader = &deps.DocumentLoader{Doc: c.doc, Fetcher: fetcher, Runner: s.runner}
	}
	if s.metrics != nil {
		loader = s.metrics.InstrumentLoader(loader)
	}
	if s.tracer != nil {
		loader = s.tracer.TraceLoader(loader)
	}
	return loader, nil
}

func (c *Client) defaultFetcher() (*deps.Mux, error) {
	ref := c.cfg.Deps.BaseURL
	if ref == "" {
		ref = httpURL(c.cfg.URL)
	}
	base, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("shiny: dependency base url: %w", err)
	}
	mux := deps.NewMux(base)
	web := deps.HTTPFetcher{Client: &http.Client{Timeout: c.cfg.Deps.Timeout}}
	mux.Handle("http", web)
	mux.Handle("https", web)
	if c.cfg.Deps.S3Region != "" {
		mux.Handle("s3", deps.NewAnonymousS3Fetcher(c.cfg.Deps.S3Region))
	}
	return mux, nil
}

// httpURL maps a ws:// or wss:// endpoint to its HTTP origin.
func httpURL(ws string) string {
	switch {
	case strings.HasPrefix(ws, "wss://"):
		return "https://" + strings.TrimPrefix(ws, "wss://")
	case strings.HasPrefix(ws, "ws://"):
		return "http://" + strings.TrimPrefix(ws, "ws://")
	}
	return ws
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start is the initialization routine. It binds the document body, then
// dials the server with the initial input values. Failures are reported
// to the console and returned.
func (c *Client) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("E100")
	}
	if err := c.InitializeInputs(ctx, nil); err != nil {
		// Unreadable inputs are reported; the session starts without them.
		c.logger.Warn("initial inputs", "error", err)
	}
	if err := c.transport.Start(ctx); err != nil {
		se := errors.FromError(err, "E101")
		c.console.Report(se)
		return se
	}
	c.goTracked(c.watchSession)
	return nil
}

// watchSession reports a session that ended because reconnection gave up.
func (c *Client) watchSession() {
	<-c.transport.Done()
	if err := c.transport.Err(); stderrors.Is(err, session.ErrReconnectExhausted) {
		c.console.Report(errors.New("E211").Wrap(err))
	}
}

// Close ends the session, cancels pending rate-limited sends and stops
// notification timers. It does not wait for in-flight work; see Wait.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.limiter.CancelAll()
		c.transport.Close()
		c.dispatcher.Close()
		c.presenter.Stop()
	})
	return nil
}

// Wait blocks until the session and every queued custom message, render
// and background load has finished, or ctx is done. It must not be called
// from a message handler.
func (c *Client) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return stderrors.Join(
		c.transport.Wait(ctx),
		c.dispatcher.Wait(ctx),
		c.renderer.Wait(ctx),
	)
}

// Connected resolves when the session first opens.
func (c *Client) Connected() *latch.Latch[struct{}] { return c.transport.Connected() }

// SessionInitialized resolves with the session id when the server
// reports it is ready for input.
func (c *Client) SessionInitialized() *latch.Latch[string] { return c.transport.Initialized() }

// State returns the session state.
func (c *Client) State() session.State { return c.transport.State() }

// Done is closed once the session has ended.
func (c *Client) Done() <-chan struct{} { return c.transport.Done() }

// Err returns why the session ended, or nil after Close.
func (c *Client) Err() error { return c.transport.Err() }

// LoseConnection drops the current connection as if the network failed.
func (c *Client) LoseConnection(cause error) { c.transport.LoseConnection(cause) }

// InDevMode reports whether development mode is enabled.
func (c *Client) InDevMode() bool { return c.cfg.DevMode }

// Version returns the client version.
func (c *Client) Version() string { return c.cfg.Version }

// Document returns the bound document.
func (c *Client) Document() *dom.Document { return c.doc }

// InputBindings returns the input adapter registry.
func (c *Client) InputBindings() *binding.Registry[binding.Input] { return c.inputs }

// OutputBindings returns the output adapter registry.
func (c *Client) OutputBindings() *binding.Registry[binding.Output] { return c.outputs }

// Dependencies returns the loaded-dependency table.
func (c *Client) Dependencies() *deps.Table { return c.renderer.Table() }

// =============================================================================
// Presentation
// =============================================================================

// ShowReconnectDialog shows the reconnect indicator.
func (c *Client) ShowReconnectDialog(info present.ReconnectInfo) { c.dialog.Show(info) }

// HideReconnectDialog hides the reconnect indicator.
func (c *Client) HideReconnectDialog() { c.dialog.Hide() }

// Notifications returns the notification presenter.
func (c *Client) Notifications() present.Notifier { return c.notifier }

// Modal returns the modal presenter.
func (c *Client) Modal() present.Modal { return c.modal }

// goTracked runs fn on a goroutine that Wait waits for.
func (c *Client) goTracked(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}
