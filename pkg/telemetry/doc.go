// Package telemetry instruments the client with Prometheus metrics and
// OpenTelemetry spans.
//
// Metrics attach to a session through hooks and to dependency loading by
// wrapping a deps.Loader:
//
//	m := telemetry.NewMetrics(telemetry.WithRegistry(reg))
//	cfg.Hooks = m.SessionHooks(cfg.Hooks)
//	loader = m.InstrumentLoader(loader)
//	http.Handle("/metrics", m.Handler())
//
// Tracing uses the global tracer provider, so spans are dropped unless the
// program installs one with otel.SetTracerProvider.
package telemetry
