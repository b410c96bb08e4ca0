package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olivroy/shiny/pkg/deps"
	"github.com/olivroy/shiny/pkg/protocol"
	"github.com/olivroy/shiny/pkg/session"
)

// MetricsConfig configures Metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "shiny").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for load durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures Metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics holds the client's Prometheus collectors.
type Metrics struct {
	registry prometheus.Registerer

	messagesReceived  *prometheus.CounterVec
	malformedMessages prometheus.Counter
	inputsSent        prometheus.Counter
	updateFrames      prometheus.Counter
	inputsDropped     prometheus.Counter
	reconnectAttempts prometheus.Counter
	reconnects        prometheus.Counter
	connectionState   *prometheus.GaugeVec
	dependencyLoads   *prometheus.CounterVec
	loadDuration      prometheus.Histogram
}

// NewMetrics registers the client metrics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "shiny",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		registry: config.Registry,

		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "messages_received_total",
			Help:        "Server messages received by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		malformedMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "malformed_messages_total",
			Help:        "Server frames dropped because they could not be decoded",
			ConstLabels: config.ConstLabels,
		}),

		inputsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "inputs_sent_total",
			Help:        "Input values sent to the server",
			ConstLabels: config.ConstLabels,
		}),

		updateFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "update_frames_total",
			Help:        "Update frames written",
			ConstLabels: config.ConstLabels,
		}),

		inputsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "inputs_dropped_total",
			Help:        "Buffered input values evicted because the buffer was full",
			ConstLabels: config.ConstLabels,
		}),

		reconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "reconnect_failures_total",
			Help:        "Failed reconnection attempts",
			ConstLabels: config.ConstLabels,
		}),

		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "reconnects_total",
			Help:        "Successful reconnections",
			ConstLabels: config.ConstLabels,
		}),

		connectionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "connection_state",
			Help:        "1 for the current connection state, 0 otherwise",
			ConstLabels: config.ConstLabels,
		}, []string{"state"}),

		dependencyLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "dependency_loads_total",
			Help:        "Dependency loads by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		loadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "dependency_load_duration_seconds",
			Help:        "Dependency load duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),
	}
}

// SessionHooks returns hooks that record transport activity and then call
// the matching hook of next.
func (m *Metrics) SessionHooks(next session.Hooks) session.Hooks {
	return session.Hooks{
		OnStateChange: func(from, to session.State) {
			m.connectionState.WithLabelValues(from.String()).Set(0)
			m.connectionState.WithLabelValues(to.String()).Set(1)
			if from == session.StateReconnecting && to == session.StateOpen {
				m.reconnects.Inc()
			}
			if next.OnStateChange != nil {
				next.OnStateChange(from, to)
			}
		},
		OnReceive: func(ft protocol.FrameType) {
			m.messagesReceived.WithLabelValues(ft.String()).Inc()
			if next.OnReceive != nil {
				next.OnReceive(ft)
			}
		},
		OnMalformed: func(err error) {
			m.malformedMessages.Inc()
			if next.OnMalformed != nil {
				next.OnMalformed(err)
			}
		},
		OnSend: func(n int) {
			m.updateFrames.Inc()
			m.inputsSent.Add(float64(n))
			if next.OnSend != nil {
				next.OnSend(n)
			}
		},
		OnDrop: func(id string) {
			m.inputsDropped.Inc()
			if next.OnDrop != nil {
				next.OnDrop(id)
			}
		},
		OnReconnectAttempt: func(attempt int, err error) {
			m.reconnectAttempts.Inc()
			if next.OnReconnectAttempt != nil {
				next.OnReconnectAttempt(attempt, err)
			}
		},
	}
}

// InstrumentLoader wraps l to count loads and time them.
func (m *Metrics) InstrumentLoader(l deps.Loader) deps.Loader {
	return deps.LoaderFunc(func(ctx context.Context, dep protocol.Dependency) error {
		start := time.Now()
		err := l.Load(ctx, dep)
		m.loadDuration.Observe(time.Since(start).Seconds())
		status := "success"
		if err != nil {
			status = "error"
		}
		m.dependencyLoads.WithLabelValues(status).Inc()
		return err
	})
}

// Handler serves the metrics of the configured registry.
func (m *Metrics) Handler() http.Handler {
	if g, ok := m.registry.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}
