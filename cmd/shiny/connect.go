package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/olivroy/shiny"
	"github.com/olivroy/shiny/internal/config"
	"github.com/olivroy/shiny/pkg/dom"
	"github.com/olivroy/shiny/pkg/protocol"
	"github.com/olivroy/shiny/pkg/session"
	"github.com/olivroy/shiny/pkg/telemetry"
)

type connectFlags struct {
	configDir   string
	url         string
	codec       string
	page        string
	dev         bool
	logLevel    string
	metricsAddr string
}

func connectCmd() *cobra.Command {
	var f connectFlags

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to a server and keep the session open",
		Long: `Connect to a reactive server and keep the session open until
interrupted or the server ends it.

Settings come from shiny.json or shiny.yaml in the config directory,
then SHINY_* environment variables, then flags.

Examples:
  shiny connect --url=ws://localhost:8000/websocket
  shiny connect --page=app.html --codec=msgpack
  shiny connect --metrics-addr=:9090 --log-level=debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVarP(&f.configDir, "config", "c", ".", "Directory holding shiny.json or shiny.yaml")
	cmd.Flags().StringVarP(&f.url, "url", "u", "", "Server WebSocket URL")
	cmd.Flags().StringVar(&f.codec, "codec", "", "Frame codec: json or msgpack")
	cmd.Flags().StringVarP(&f.page, "page", "p", "", "HTML page whose inputs and outputs are bound")
	cmd.Flags().BoolVar(&f.dev, "dev", false, "Enable development mode")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

// loadConfig reads the config directory and applies flag overrides.
func loadConfig(f connectFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configDir)
	if err != nil {
		return nil, err
	}
	if f.url != "" {
		cfg.URL = f.url
	}
	if f.codec != "" {
		cfg.Codec = f.codec
	}
	if f.dev {
		cfg.DevMode = true
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.metricsAddr != "" {
		cfg.MetricsAddr = f.metricsAddr
	}
	return cfg, cfg.Validate()
}

// clientConfig converts the file configuration into a client
// configuration. Unset fields keep the client defaults.
func clientConfig(cfg *config.Config, logger *slog.Logger) (shiny.Config, error) {
	out := shiny.DefaultConfig()
	out.URL = cfg.URL
	out.DevMode = cfg.DevMode
	out.Version = version
	out.Logger = logger

	if cfg.Codec != "" {
		codec, err := protocol.CodecByName(cfg.Codec)
		if err != nil {
			return out, err
		}
		out.Codec = codec
	}

	r := cfg.Reconnect
	p := session.DefaultReconnectPolicy()
	if r.InitialDelay > 0 {
		p.InitialInterval = r.InitialDelay.Std()
	}
	if r.MaxDelay > 0 {
		p.MaxInterval = r.MaxDelay.Std()
	}
	if r.Multiplier > 0 {
		p.Multiplier = r.Multiplier
	}
	if r.Jitter > 0 {
		p.RandomizationFactor = r.Jitter
	}
	if r.MaxRetries > 0 {
		p.MaxRetries = r.MaxRetries
	}
	if r.Grace > 0 {
		p.GracePeriod = r.Grace.Std()
	}
	p.Unlimited = r.Unlimited
	out.Reconnect = p

	out.Deps.BaseURL = cfg.Deps.BaseURL
	out.Deps.S3Region = cfg.Deps.S3Region
	if cfg.Deps.Timeout > 0 {
		out.Deps.Timeout = cfg.Deps.Timeout.Std()
	}
	return out, nil
}

// newLogger writes text to terminals and JSON everywhere else.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func loadPage(path string) (*dom.Document, error) {
	if path == "" {
		return dom.NewDocument(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return dom.ParseDocument(string(data))
}

func runConnect(ctx context.Context, f connectFlags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.LogLevel)
	ccfg, err := clientConfig(cfg, logger)
	if err != nil {
		return err
	}
	doc, err := loadPage(f.page)
	if err != nil {
		return fmt.Errorf("load page: %w", err)
	}

	opts := []shiny.Option{
		shiny.WithDocument(doc),
		shiny.WithSessionHooks(session.Hooks{
			OnStateChange: func(from, to session.State) {
				logger.Info("session state", "from", from, "to", to)
			},
		}),
	}
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics := telemetry.NewMetrics(telemetry.WithRegistry(reg))
		opts = append(opts, shiny.WithMetrics(metrics))

		srv := metricsServer(cfg.MetricsAddr, metrics)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		info("Metrics on http://%s/metrics", cfg.MetricsAddr)
	}

	c, err := shiny.New(ccfg, opts...)
	if err != nil {
		return err
	}
	defer c.Close()
	c.SetLegacyCustomMessageHandler(func(_ context.Context, msgType string, payload any) error {
		logger.Info("custom message", "type", msgType, "payload", payload)
		return nil
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		return err
	}
	success("Connected to %s", ccfg.URL)
	if id, err := c.SessionInitialized().Wait(ctx); err == nil {
		info("Session %s", id)
	}

	select {
	case <-ctx.Done():
		info("Shutting down...")
		return nil
	case <-c.Done():
		return c.Err()
	}
}

func metricsServer(addr string, m *telemetry.Metrics) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
