package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/olivroy/shiny/pkg/present"
	"github.com/olivroy/shiny/pkg/protocol"
)

// ReconnectPolicy controls how a lost connection is retried.
type ReconnectPolicy struct {
	// InitialInterval is the delay before the first attempt.
	// Default: 500ms.
	InitialInterval time.Duration

	// Multiplier grows the delay after each failure.
	// Default: 1.5.
	Multiplier float64

	// MaxInterval caps the delay.
	// Default: 10 seconds.
	MaxInterval time.Duration

	// RandomizationFactor spreads each delay by ± this fraction.
	// Default: 0.5.
	RandomizationFactor float64

	// MaxRetries is the number of consecutive failed attempts after which
	// the transport closes. Ignored when Unlimited is set.
	// Default: 3.
	MaxRetries int

	// Unlimited retries forever.
	Unlimited bool

	// GracePeriod delays the reconnect dialog so instant reconnects do
	// not flicker.
	// Default: 250ms.
	GracePeriod time.Duration
}

// DefaultReconnectPolicy returns the default policy.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		InitialInterval:     500 * time.Millisecond,
		Multiplier:          1.5,
		MaxInterval:         10 * time.Second,
		RandomizationFactor: 0.5,
		MaxRetries:          3,
		GracePeriod:         250 * time.Millisecond,
	}
}

func (p ReconnectPolicy) withDefaults() ReconnectPolicy {
	d := DefaultReconnectPolicy()
	if p.InitialInterval <= 0 {
		p.InitialInterval = d.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = d.MaxInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.RandomizationFactor < 0 || p.RandomizationFactor >= 1 {
		p.RandomizationFactor = d.RandomizationFactor
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = d.MaxRetries
	}
	if p.GracePeriod < 0 {
		p.GracePeriod = 0
	}
	return p
}

// Router receives every server message the transport does not consume
// itself. Route is called from the read goroutine, one message at a time
// in receipt order.
type Router interface {
	Route(ctx context.Context, msg protocol.Message)
}

// RouterFunc adapts a function to Router.
type RouterFunc func(ctx context.Context, msg protocol.Message)

func (f RouterFunc) Route(ctx context.Context, msg protocol.Message) { f(ctx, msg) }

// Hooks observe transport activity. Any hook may be nil. Hooks are called
// without the transport lock held.
type Hooks struct {
	OnStateChange func(from, to State)

	// OnReceive is called for every decoded frame.
	OnReceive func(ft protocol.FrameType)

	// OnMalformed is called when a frame cannot be decoded.
	OnMalformed func(err error)

	// OnSend is called after an Update frame carrying n values is written.
	OnSend func(n int)

	// OnDrop is called when the buffer evicts the value of id.
	OnDrop func(id string)

	// OnReconnectAttempt is called after each failed reconnect attempt.
	OnReconnectAttempt func(attempt int, err error)
}

// Config configures a Transport.
type Config struct {
	// URL is the server WebSocket endpoint.
	URL string

	// Codec encodes outgoing frames.
	// Default: protocol.JSON.
	Codec protocol.Codec

	// Dialer opens connections.
	// Default: a WebSocketDialer.
	Dialer Dialer

	// Router receives server messages.
	Router Router

	// Dialog is shown while reconnecting.
	// Default: present.LogReconnectDialog.
	Dialog present.ReconnectDialog

	// Reconnect is the retry policy. Zero fields use defaults.
	Reconnect ReconnectPolicy

	// HeartbeatInterval is the time between pings. Negative disables them.
	// Default: 30 seconds.
	HeartbeatInterval time.Duration

	// HeartbeatTimeout drops a connection that has sent nothing for this
	// long. Zero disables the check.
	HeartbeatTimeout time.Duration

	// BufferSize bounds the number of distinct ids waiting to be sent.
	// When full, the oldest id is dropped.
	// Default: 1024.
	BufferSize int

	// SendRate limits Update frames per second.
	// Default: rate.Inf.
	SendRate rate.Limit

	// SendBurst is the limiter burst.
	// Default: 1.
	SendBurst int

	Hooks Hooks

	// Clock drives timers.
	// Default: the wall clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// DefaultHeartbeatInterval is the default time between pings.
const DefaultHeartbeatInterval = 30 * time.Second

// DefaultBufferSize is the default input buffer bound.
const DefaultBufferSize = 1024

func (c Config) withDefaults() Config {
	if c.Codec == nil {
		c.Codec = protocol.JSON
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Dialer == nil {
		c.Dialer = WebSocketDialer{}
	}
	if c.Dialog == nil {
		c.Dialog = present.LogReconnectDialog{Logger: c.Logger}
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.SendRate == 0 {
		c.SendRate = rate.Inf
	}
	if c.SendBurst <= 0 {
		c.SendBurst = 1
	}
	c.Reconnect = c.Reconnect.withDefaults()
	return c
}
