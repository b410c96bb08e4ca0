package config

import (
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/olivroy/shiny/internal/errors"
)

// File names searched by Load, in order.
var FileNames = []string{"shiny.json", "shiny.yaml", "shiny.yml"}

const (
	// DefaultURL is the default server websocket endpoint.
	DefaultURL = "ws://localhost:8000/websocket"

	// DefaultCodec is the default wire codec.
	DefaultCodec = "json"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"
)

// Config represents the complete client configuration.
type Config struct {
	// URL is the server websocket endpoint. ENV: SHINY_URL
	URL string `json:"url,omitempty" yaml:"url,omitempty" env:"SHINY_URL"`

	// DevMode enables development diagnostics. ENV: SHINY_DEV_MODE
	DevMode bool `json:"devMode,omitempty" yaml:"devMode,omitempty" env:"SHINY_DEV_MODE"`

	// Codec is the wire codec, "json" or "msgpack". ENV: SHINY_CODEC
	Codec string `json:"codec,omitempty" yaml:"codec,omitempty" env:"SHINY_CODEC"`

	// LogLevel is one of debug, info, warn, error. ENV: SHINY_LOG_LEVEL
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty" env:"SHINY_LOG_LEVEL"`

	// MetricsAddr serves Prometheus metrics when set. ENV: SHINY_METRICS_ADDR
	MetricsAddr string `json:"metricsAddr,omitempty" yaml:"metricsAddr,omitempty" env:"SHINY_METRICS_ADDR"`

	// Reconnect tunes the reconnection backoff.
	Reconnect ReconnectConfig `json:"reconnect,omitempty" yaml:"reconnect,omitempty"`

	// Deps configures dependency fetching.
	Deps DepsConfig `json:"deps,omitempty" yaml:"deps,omitempty"`

	// path stores the file the config was loaded from.
	path string
}

// ReconnectConfig tunes the reconnection backoff. Zero values keep the
// client defaults.
type ReconnectConfig struct {
	InitialDelay Duration `json:"initialDelay,omitempty" yaml:"initialDelay,omitempty" env:"SHINY_RECONNECT_INITIAL_DELAY"`
	MaxDelay     Duration `json:"maxDelay,omitempty" yaml:"maxDelay,omitempty" env:"SHINY_RECONNECT_MAX_DELAY"`
	Multiplier   float64  `json:"multiplier,omitempty" yaml:"multiplier,omitempty" env:"SHINY_RECONNECT_MULTIPLIER"`
	Jitter       float64  `json:"jitter,omitempty" yaml:"jitter,omitempty" env:"SHINY_RECONNECT_JITTER"`
	MaxRetries   int      `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty" env:"SHINY_RECONNECT_MAX_RETRIES"`
	Unlimited    bool     `json:"unlimited,omitempty" yaml:"unlimited,omitempty" env:"SHINY_RECONNECT_UNLIMITED"`
	Grace        Duration `json:"grace,omitempty" yaml:"grace,omitempty" env:"SHINY_RECONNECT_GRACE"`
}

// DepsConfig configures where dependency resources are fetched from.
type DepsConfig struct {
	// BaseURL resolves relative resource URLs. ENV: SHINY_DEPS_BASE_URL
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty" env:"SHINY_DEPS_BASE_URL"`

	// S3Region enables s3:// resources. ENV: SHINY_DEPS_S3_REGION
	S3Region string `json:"s3Region,omitempty" yaml:"s3Region,omitempty" env:"SHINY_DEPS_S3_REGION"`

	// Timeout bounds a single resource fetch. ENV: SHINY_DEPS_TIMEOUT
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"SHINY_DEPS_TIMEOUT"`
}

// Duration is a time.Duration written as a string such as "250ms" in
// files and environment variables.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Decode implements envdecode.Decoder.
func (d *Duration) Decode(s string) error {
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.Decode(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.Decode(node.Value)
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		URL:      DefaultURL,
		Codec:    DefaultCodec,
		LogLevel: DefaultLogLevel,
	}
}

// Load reads shiny.json or shiny.yaml from dir and applies environment
// overrides. A directory without a config file yields the defaults.
func Load(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	cfg := New()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from the specified file path. The format
// follows the file extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E500").
				WithDetail("No config file at " + path)
		}
		return nil, errors.New("E500").Wrap(err)
	}

	cfg := New()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("E500").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
	}

	cfg.path = path
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays SHINY_* environment variables. Variables that are
// unset or empty leave the current value alone.
func (c *Config) ApplyEnv() error {
	err := envdecode.Decode(c)
	if err != nil && !stderrors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return errors.New("E501").Wrap(err)
	}
	return c.Validate()
}

// Save writes the configuration back to the file it was loaded from.
func (c *Config) Save() error {
	if c.path == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.path)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("E500").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E500").Wrap(err)
	}
	c.path = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Codec {
	case "", "json", "msgpack":
	default:
		return errors.New("E500").
			WithDetail("codec must be json or msgpack, got " + c.Codec)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New("E500").
			WithDetail("unknown log level " + c.LogLevel)
	}
	if r := c.Reconnect; r.Multiplier < 0 || r.Jitter < 0 || r.Jitter > 1 || r.MaxRetries < 0 {
		return errors.New("E500").
			WithDetail("reconnect multiplier, jitter and retries must be non-negative; jitter at most 1")
	}
	return nil
}
