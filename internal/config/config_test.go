package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/olivroy/shiny/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.URL != DefaultURL {
		t.Errorf("URL = %q, want %q", cfg.URL, DefaultURL)
	}
	if cfg.Codec != DefaultCodec {
		t.Errorf("Codec = %q, want %q", cfg.Codec, DefaultCodec)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	data := `{
  "url": "ws://example.test/websocket",
  "codec": "msgpack",
  "reconnect": {
    "initialDelay": "1s",
    "maxRetries": 5,
    "unlimited": true
  },
  "deps": {"baseURL": "http://example.test/"}
}
`
	if err := os.WriteFile(filepath.Join(dir, "shiny.json"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.URL != "ws://example.test/websocket" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.Codec != "msgpack" {
		t.Errorf("Codec = %q", cfg.Codec)
	}
	if cfg.Reconnect.InitialDelay.Std() != time.Second {
		t.Errorf("InitialDelay = %v, want 1s", cfg.Reconnect.InitialDelay)
	}
	if cfg.Reconnect.MaxRetries != 5 || !cfg.Reconnect.Unlimited {
		t.Errorf("Reconnect = %+v", cfg.Reconnect)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want default", cfg.LogLevel)
	}
	if cfg.Path() != filepath.Join(dir, "shiny.json") {
		t.Errorf("Path = %q", cfg.Path())
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	data := `url: ws://yaml.test/websocket
devMode: true
reconnect:
  grace: 100ms
  maxDelay: 30s
  jitter: 0.25
`
	if err := os.WriteFile(filepath.Join(dir, "shiny.yaml"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.DevMode || cfg.URL != "ws://yaml.test/websocket" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Reconnect.Grace.Std() != 100*time.Millisecond || cfg.Reconnect.MaxDelay.Std() != 30*time.Second {
		t.Errorf("Reconnect = %+v", cfg.Reconnect)
	}
	if cfg.Reconnect.Jitter != 0.25 {
		t.Errorf("Jitter = %v", cfg.Reconnect.Jitter)
	}
}

func TestLoadMissingUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.URL != DefaultURL {
		t.Errorf("URL = %q, want default", cfg.URL)
	}
	if cfg.Path() != "" {
		t.Errorf("Path = %q, want empty", cfg.Path())
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFile(filepath.Join(dir, "nope.json")); errors.CodeOf(err) != "E500" {
		t.Errorf("missing file error = %v, want E500", err)
	}

	bad := filepath.Join(dir, "shiny.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFile(bad)
	if errors.CodeOf(err) != "E500" || !strings.Contains(err.Error(), "Invalid configuration") {
		t.Errorf("parse error = %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SHINY_URL", "ws://env.test/websocket")
	t.Setenv("SHINY_DEV_MODE", "true")
	t.Setenv("SHINY_RECONNECT_MAX_RETRIES", "7")
	t.Setenv("SHINY_RECONNECT_GRACE", "2s")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "shiny.json"), []byte(`{"url":"ws://file.test","codec":"msgpack"}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.URL != "ws://env.test/websocket" {
		t.Errorf("URL = %q, want env override", cfg.URL)
	}
	if cfg.Codec != "msgpack" {
		t.Errorf("Codec = %q, want file value", cfg.Codec)
	}
	if !cfg.DevMode || cfg.Reconnect.MaxRetries != 7 || cfg.Reconnect.Grace.Std() != 2*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad codec", func(c *Config) { c.Codec = "xml" }, true},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"bad jitter", func(c *Config) { c.Reconnect.Jitter = 2 }, true},
		{"negative retries", func(c *Config) { c.Reconnect.MaxRetries = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.json", "out.yaml"} {
		t.Run(name, func(t *testing.T) {
			cfg := New()
			cfg.Reconnect.MaxDelay = Duration(5 * time.Second)
			path := filepath.Join(dir, name)
			if err := cfg.SaveTo(path); err != nil {
				t.Fatalf("SaveTo: %v", err)
			}
			loaded, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if loaded.Reconnect.MaxDelay.Std() != 5*time.Second {
				t.Errorf("MaxDelay = %v", loaded.Reconnect.MaxDelay)
			}
		})
	}
}
