package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ItamarWilf/PipeRT/errors"
)

// DefaultEnvPrefix prefixes every environment override.
const DefaultEnvPrefix = "PIPERT"

// Config is the complete application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	NATS     NATSConfig     `yaml:"nats"`
	Redis    RedisConfig    `yaml:"redis"`
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Topology is the declarative pipeline structure handed to
	// PipelineManager.SetupComponents as is.
	Topology map[string]any `yaml:"topology,omitempty"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// HTTPConfig configures the management API server.
type HTTPConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Addr            string        `yaml:"addr"`
	APIPrefix       string        `yaml:"api_prefix"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// NATSConfig holds the server used by NATS routines that do not name one and
// the tuning of every NATS client. Zero durations keep the client defaults.
type NATSConfig struct {
	URL              string        `yaml:"url"`
	MaxReconnects    int           `yaml:"max_reconnects"` // -1 reconnects forever
	ReconnectWait    time.Duration `yaml:"reconnect_wait"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	Timeout          time.Duration `yaml:"timeout"`
	DrainTimeout     time.Duration `yaml:"drain_timeout"`
	CircuitThreshold int32         `yaml:"circuit_threshold"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	ConnectAttempts  int           `yaml:"connect_attempts"`
}

// RedisConfig holds the server used by Redis routines that do not name one.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// PipelineConfig tunes the pipeline manager.
type PipelineConfig struct {
	QueueCapacity int           `yaml:"queue_capacity"`
	Terminals     []string      `yaml:"terminals"`
	AutoRun       bool          `yaml:"auto_run"`
	StopTimeout   time.Duration `yaml:"stop_timeout"`
	TopologyFile  string        `yaml:"topology_file,omitempty"`
	OutputDir     string        `yaml:"output_dir,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		HTTP: HTTPConfig{
			Enabled:         true,
			Addr:            ":8080",
			APIPrefix:       "/api",
			ShutdownTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		NATS: NATSConfig{
			URL:             "nats://localhost:4222",
			MaxReconnects:   -1,
			Timeout:         5 * time.Second,
			ConnectAttempts: 3,
		},
		Redis:   RedisConfig{URL: "redis://localhost:6379/0"},
		Pipeline: PipelineConfig{
			QueueCapacity: 1,
			Terminals:     []string{"VideoDisplay", "VideoWriter"},
			StopTimeout:   30 * time.Second,
		},
	}
}

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"json": true, "text": true}
)

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrInvalidConfig, fmt.Sprintf(format, args...)),
			"Config", "Validate", "check settings"))
	}

	if !validLevels[strings.ToLower(c.Log.Level)] {
		invalid("log.level %q must be one of debug, info, warn, error", c.Log.Level)
	}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		invalid("log.format %q must be json or text", c.Log.Format)
	}
	if c.HTTP.Enabled {
		if c.HTTP.Addr == "" {
			invalid("http.addr is required when http is enabled")
		}
		if !strings.HasPrefix(c.HTTP.APIPrefix, "/") {
			invalid("http.api_prefix %q must start with /", c.HTTP.APIPrefix)
		}
	}
	if c.HTTP.ShutdownTimeout < 0 {
		invalid("http.shutdown_timeout must not be negative")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		invalid("metrics.path %q must start with /", c.Metrics.Path)
	}
	if c.NATS.MaxReconnects < -1 {
		invalid("nats.max_reconnects must be -1 or more")
	}
	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"reconnect_wait", c.NATS.ReconnectWait},
		{"ping_interval", c.NATS.PingInterval},
		{"timeout", c.NATS.Timeout},
		{"drain_timeout", c.NATS.DrainTimeout},
	} {
		if d.val < 0 {
			invalid("nats.%s must not be negative", d.key)
		}
	}
	if c.NATS.CircuitThreshold < 0 || c.NATS.ConnectAttempts < 0 {
		invalid("nats.circuit_threshold and nats.connect_attempts must not be negative")
	}
	if c.NATS.MaxBackoff != 0 && c.NATS.MaxBackoff < time.Second {
		invalid("nats.max_backoff must be at least 1s")
	}
	if c.Pipeline.QueueCapacity < 0 {
		invalid("pipeline.queue_capacity must not be negative")
	}
	if c.Pipeline.StopTimeout < 0 {
		invalid("pipeline.stop_timeout must not be negative")
	}
	for _, name := range c.Pipeline.Terminals {
		if strings.TrimSpace(name) == "" {
			invalid("pipeline.terminals must not contain empty names")
			break
		}
	}

	return errors.Join(errs...)
}

// Loader loads configuration with layers and environment overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPrefix: DefaultEnvPrefix,
		lookupEnv: os.LookupEnv,
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// SetEnvPrefix changes the prefix of environment overrides.
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = prefix
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load applies defaults, every layer in order, then environment overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		data, err := safeReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		// Decoding onto the existing value only overrides the keys present.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
				"Loader", "Load", fmt.Sprintf("parse %s", path))
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if cfg.Topology == nil && cfg.Pipeline.TopologyFile != "" {
		topo, err := LoadTopologyFile(cfg.Pipeline.TopologyFile)
		if err != nil {
			return nil, err
		}
		cfg.Topology = topo
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

// applyEnvOverrides reads <prefix>_LOG_LEVEL, <prefix>_LOG_FORMAT,
// <prefix>_HTTP_ADDR, <prefix>_NATS_URL, <prefix>_REDIS_URL and
// <prefix>_AUTO_RUN.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"LOG_LEVEL":  &cfg.Log.Level,
		"LOG_FORMAT": &cfg.Log.Format,
		"HTTP_ADDR":  &cfg.HTTP.Addr,
		"NATS_URL":   &cfg.NATS.URL,
		"REDIS_URL":  &cfg.Redis.URL,
	}
	for suffix, field := range strs {
		value, ok := l.env(suffix)
		if !ok {
			continue
		}
		if err := validateEnvVar(l.envPrefix+"_"+suffix, value); err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "read environment")
		}
		*field = value
	}

	if value, ok := l.env("AUTO_RUN"); ok {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.WrapInvalid(fmt.Errorf("%s_AUTO_RUN: %w", l.envPrefix, err),
				"Loader", "applyEnvOverrides", "read environment")
		}
		cfg.Pipeline.AutoRun = b
	}
	return nil
}

func (l *Loader) env(suffix string) (string, bool) {
	value, ok := l.lookupEnv(l.envPrefix + "_" + suffix)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// LoadTopologyFile reads a declarative topology from a YAML or JSON file.
// The file may hold the structure itself or nest it under a topology key.
func LoadTopologyFile(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load topology %s: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"config", "LoadTopologyFile", fmt.Sprintf("parse %s", path))
	}
	if nested, ok := doc["topology"].(map[string]any); ok {
		return nested, nil
	}
	return doc, nil
}
