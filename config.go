package shiny

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/olivroy/shiny/pkg/binding"
	"github.com/olivroy/shiny/pkg/deps"
	"github.com/olivroy/shiny/pkg/dom"
	"github.com/olivroy/shiny/pkg/present"
	"github.com/olivroy/shiny/pkg/protocol"
	"github.com/olivroy/shiny/pkg/session"
	"github.com/olivroy/shiny/pkg/telemetry"
)

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the client configuration.
type Config struct {
	// URL is the server WebSocket endpoint.
	// Default: "ws://localhost:8000/websocket".
	URL string

	// Header is sent with every WebSocket handshake, typically cookies.
	Header http.Header

	// Codec encodes outgoing frames.
	// Default: protocol.JSON.
	Codec protocol.Codec

	// DevMode enables development diagnostics. It cannot change once the
	// client is built.
	DevMode bool

	// Version is the client version reported by Client.Version.
	// Default: "development".
	Version string

	// Reconnect tunes reconnection after network loss.
	Reconnect session.ReconnectPolicy

	// HeartbeatInterval is the time between pings. Negative disables them.
	// Default: 30 seconds.
	HeartbeatInterval time.Duration

	// HeartbeatTimeout drops a connection that has been silent this long.
	// Zero disables the check.
	HeartbeatTimeout time.Duration

	// BufferSize bounds the input values waiting to be sent.
	// Default: 1024.
	BufferSize int

	// SendRate limits update frames per second.
	// Default: unlimited.
	SendRate rate.Limit

	// Deps configures dependency fetching.
	Deps DepsConfig

	// Logger is the structured logger for the client.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DepsConfig configures where dependency resources are fetched from.
type DepsConfig struct {
	// BaseURL resolves relative resource URLs. Empty means relative
	// URLs are resolved against the HTTP form of Config.URL.
	BaseURL string

	// S3Region enables s3://bucket/key resources from public buckets.
	S3Region string

	// Timeout bounds a single HTTP fetch.
	// Default: 30 seconds.
	Timeout time.Duration
}

// DefaultConfig returns a Config with the defaults filled in.
func DefaultConfig() Config {
	return Config{
		URL:               "ws://localhost:8000/websocket",
		Codec:             protocol.JSON,
		Version:           DefaultVersion,
		Reconnect:         session.DefaultReconnectPolicy(),
		HeartbeatInterval: session.DefaultHeartbeatInterval,
		BufferSize:        session.DefaultBufferSize,
		SendRate:          rate.Inf,
		Deps:              DepsConfig{Timeout: 30 * time.Second},
	}
}

// Clone returns a copy of c that shares no mutable state with it.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Header = c.Header.Clone()
	return &clone
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.Codec == nil {
		c.Codec = d.Codec
	}
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Deps.Timeout <= 0 {
		c.Deps.Timeout = d.Deps.Timeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// =============================================================================
// Options
// =============================================================================

// Option customizes a Client built by New.
type Option func(*settings)

type settings struct {
	cfg Config

	doc      *dom.Document
	clock    clock.Clock
	dialer   session.Dialer
	loader   deps.Loader
	fetcher  deps.Fetcher
	runner   deps.ScriptRunner
	table    *deps.Table
	markers  *binding.Markers
	console  present.Console
	notifier present.Notifier
	modal    present.Modal
	dialog   present.ReconnectDialog
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	hooks    session.Hooks
	builtins bool
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.cfg.Logger = l }
}

// WithCodec sets the wire codec.
func WithCodec(c protocol.Codec) Option {
	return func(s *settings) { s.cfg.Codec = c }
}

// WithDevMode enables development mode.
func WithDevMode(enabled bool) Option {
	return func(s *settings) { s.cfg.DevMode = enabled }
}

// WithDocument sets the document the client binds. By default the client
// owns an empty document.
func WithDocument(doc *dom.Document) Option {
	return func(s *settings) { s.doc = doc }
}

// WithClock sets the clock driving rate limits, notification expiry and
// reconnect timers.
func WithClock(c clock.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d session.Dialer) Option {
	return func(s *settings) { s.dialer = d }
}

// WithLoader replaces the dependency loader. Fetcher and script runner
// options are ignored when a loader is set.
func WithLoader(l deps.Loader) Option {
	return func(s *settings) { s.loader = l }
}

// WithFetcher replaces the resource fetcher of the default loader.
func WithFetcher(f deps.Fetcher) Option {
	return func(s *settings) { s.fetcher = f }
}

// WithScriptRunner executes fetched scripts for the default loader.
func WithScriptRunner(r deps.ScriptRunner) Option {
	return func(s *settings) { s.runner = r }
}

// WithDependencyTable shares a loaded-dependency table between clients.
func WithDependencyTable(t *deps.Table) Option {
	return func(s *settings) { s.table = t }
}

// WithMarkers shares a bound-element marker service between clients.
func WithMarkers(m *binding.Markers) Option {
	return func(s *settings) { s.markers = m }
}

// WithConsole sets where errors the page should surface are reported.
// Default: present.LogConsole.
func WithConsole(c present.Console) Option {
	return func(s *settings) { s.console = c }
}

// WithNotifier replaces the document notification panel.
func WithNotifier(n present.Notifier) Option {
	return func(s *settings) { s.notifier = n }
}

// WithModal replaces the document modal.
func WithModal(m present.Modal) Option {
	return func(s *settings) { s.modal = m }
}

// WithReconnectDialog replaces the document reconnect indicator.
func WithReconnectDialog(d present.ReconnectDialog) Option {
	return func(s *settings) { s.dialog = d }
}

// WithMetrics records client activity in m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithTracer records spans for dependency loads, custom messages and
// binding scans.
func WithTracer(t *telemetry.Tracer) Option {
	return func(s *settings) { s.tracer = t }
}

// WithSessionHooks observes the session transport.
func WithSessionHooks(h session.Hooks) Option {
	return func(s *settings) { s.hooks = h }
}

// WithoutBuiltinBindings leaves the binding registries empty instead of
// installing the standard adapters.
func WithoutBuiltinBindings() Option {
	return func(s *settings) { s.builtins = false }
}
