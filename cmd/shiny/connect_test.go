package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/olivroy/shiny/internal/config"
	"github.com/olivroy/shiny/pkg/protocol"
	"github.com/olivroy/shiny/pkg/session"
)

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "url: ws://file.example/websocket\ncodec: json\nreconnect:\n  initialDelay: 100ms\n  maxRetries: 7\n"
	if err := os.WriteFile(filepath.Join(dir, "shiny.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(connectFlags{configDir: dir, codec: "msgpack", dev: true})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.URL != "ws://file.example/websocket" {
		t.Errorf("URL = %q, want the file value", cfg.URL)
	}
	if cfg.Codec != "msgpack" || !cfg.DevMode {
		t.Errorf("codec = %q, dev = %v, want flag values", cfg.Codec, cfg.DevMode)
	}

	if _, err := loadConfig(connectFlags{configDir: dir, codec: "xml"}); err == nil {
		t.Error("unknown codec should fail validation")
	}
}

func TestClientConfig(t *testing.T) {
	cfg := config.New()
	cfg.Codec = "msgpack"
	cfg.Reconnect.InitialDelay = config.Duration(100 * time.Millisecond)
	cfg.Reconnect.MaxRetries = 7
	cfg.Reconnect.Unlimited = true
	cfg.Deps.Timeout = config.Duration(time.Second)

	out, err := clientConfig(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	if out.Codec != protocol.Msgpack {
		t.Errorf("codec = %v, want msgpack", out.Codec.Name())
	}
	def := session.DefaultReconnectPolicy()
	want := def
	want.InitialInterval = 100 * time.Millisecond
	want.MaxRetries = 7
	want.Unlimited = true
	if out.Reconnect != want {
		t.Errorf("reconnect = %+v, want %+v", out.Reconnect, want)
	}
	if out.Deps.Timeout != time.Second {
		t.Errorf("deps timeout = %v, want 1s", out.Deps.Timeout)
	}
	if out.URL != config.DefaultURL {
		t.Errorf("URL = %q, want default", out.URL)
	}
}

func TestNewLoggerWritesJSONWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if bytes.Contains(buf.Bytes(), []byte("hidden")) {
		t.Errorf("info logged at warn level: %s", out)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"msg":"shown"`)) {
		t.Errorf("want a JSON record, got %s", out)
	}
}

func TestLoadPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.html")
	if err := os.WriteFile(path, []byte(`<div id="out" class="shiny-text-output"></div>`), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := loadPage(path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Body.ByID("out") == nil {
		t.Error("page content missing")
	}
	if _, err := loadPage(filepath.Join(t.TempDir(), "missing.html")); err == nil {
		t.Error("missing page should fail")
	}
}
