package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/olivroy/shiny/pkg/deps"
	"github.com/olivroy/shiny/pkg/dispatch"
	"github.com/olivroy/shiny/pkg/protocol"
)

// Default tracer name for the client.
const defaultTracerName = "shiny"

// Tracer starts client spans.
type Tracer struct {
	tracer trace.Tracer
}

// TracerOption configures a Tracer.
type TracerOption func(*tracerConfig)

type tracerConfig struct {
	name     string
	provider trace.TracerProvider
}

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracerOption {
	return func(c *tracerConfig) {
		c.name = name
	}
}

// WithTracerProvider uses p instead of the global provider.
func WithTracerProvider(p trace.TracerProvider) TracerOption {
	return func(c *tracerConfig) {
		c.provider = p
	}
}

// NewTracer returns a Tracer from the global provider unless configured
// otherwise.
func NewTracer(opts ...TracerOption) *Tracer {
	config := tracerConfig{name: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.provider == nil {
		return &Tracer{tracer: otel.Tracer(config.name)}
	}
	return &Tracer{tracer: config.provider.Tracer(config.name)}
}

// Start starts a client span.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// TraceLoader wraps l with a span per dependency load.
func (t *Tracer) TraceLoader(l deps.Loader) deps.Loader {
	return deps.LoaderFunc(func(ctx context.Context, dep protocol.Dependency) error {
		ctx, span := t.Start(ctx, "shiny.dependency.load",
			attribute.String("shiny.dependency", dep.Name),
			attribute.String("shiny.dependency_version", dep.Version),
			attribute.Int("shiny.resources", len(dep.Resources)),
		)
		defer span.End()
		return record(span, l.Load(ctx, dep))
	})
}

// TraceHandler wraps a custom message handler with a span.
func (t *Tracer) TraceHandler(msgType string, h dispatch.Handler) dispatch.Handler {
	return func(ctx context.Context, payload any) error {
		ctx, span := t.Start(ctx, "shiny.custom_message",
			attribute.String("shiny.message_type", msgType),
		)
		defer span.End()
		return record(span, h(ctx, payload))
	}
}

func record(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}
