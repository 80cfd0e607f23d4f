// Package cliconfig loads the process configuration of the switchyard CLI.
package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SWITCHYARD_"

// Source kinds for the data source settings.
const (
	SourceFile = "file"
	SourceNATS = "nats"
)

// Proxy transports used by the router to reach the self-hosted store.
const (
	TransportHTTP = "http"
	TransportNATS = "nats"
)

// Config is the root configuration structure.
// It is read-only after Load returns.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Managed ManagedConfig `yaml:"managed"`
	Source  SourceConfig  `yaml:"source"`
	Router  RouterConfig  `yaml:"router"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	NATS    NATSConfig    `yaml:"nats"`
	Notify  NotifyConfig  `yaml:"notify"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ManagedConfig contains the managed store connection.
type ManagedConfig struct {
	DSN string `yaml:"-"` // env-only, never in YAML
}

// SourceConfig selects where data source settings are read from.
type SourceConfig struct {
	Kind   string `yaml:"kind"`
	Path   string `yaml:"path"`
	Bucket string `yaml:"bucket"`
	Key    string `yaml:"key"`
}

// RouterConfig contains replication settings.
type RouterConfig struct {
	ReplicationTimeout Duration `yaml:"replication_timeout"`
	MaxInFlight        int      `yaml:"max_in_flight"`
	BreakerEnabled     bool     `yaml:"breaker_enabled"`
	BreakerThreshold   int      `yaml:"breaker_threshold"`
	BreakerCooldown    Duration `yaml:"breaker_cooldown"`
}

// ProxyConfig contains query proxy server and client settings.
type ProxyConfig struct {
	Listen           string   `yaml:"listen"`
	Endpoint         string   `yaml:"endpoint"`
	Transport        string   `yaml:"transport"`
	Subject          string   `yaml:"subject"`
	Queue            string   `yaml:"queue"`
	StatementTimeout Duration `yaml:"statement_timeout"`
	RequestTimeout   Duration `yaml:"request_timeout"`
	TokenTTL         Duration `yaml:"token_ttl"`
	ShutdownTimeout  Duration `yaml:"shutdown_timeout"`
	Secret           string   `yaml:"-"` // env-only, never in YAML
	APIKey           string   `yaml:"-"` // env-only, never in YAML
}

// NATSConfig contains the NATS connection.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// NotifyConfig contains notification settings.
type NotifyConfig struct {
	Stream     bool   `yaml:"stream"`
	StreamName string `yaml:"stream_name"`
}

// MetricsConfig contains metrics settings.
type MetricsConfig struct {
	Prefix string `yaml:"prefix"`
	Listen string `yaml:"listen"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)

	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load loads configuration with precedence: defaults, YAML file, env vars.
//
// An empty path reads SWITCHYARD_CONFIG, then "switchyard.yaml". A missing
// file is not an error unless the path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = getEnv(EnvPrefix+"CONFIG", "switchyard.yaml")
		explicit = os.Getenv(EnvPrefix+"CONFIG") != ""
	}

	if err := loadYAMLFile(cfg, path, explicit); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Source: SourceConfig{
			Kind: SourceFile,
			Path: "datasource.yaml",
		},
		Router: RouterConfig{
			ReplicationTimeout: Duration(30 * time.Second),
			BreakerThreshold:   3,
			BreakerCooldown:    Duration(30 * time.Second),
		},
		Proxy: ProxyConfig{
			Listen:           ":8787",
			Transport:        TransportHTTP,
			StatementTimeout: Duration(30 * time.Second),
			RequestTimeout:   Duration(30 * time.Second),
			TokenTTL:         Duration(5 * time.Minute),
			ShutdownTimeout:  Duration(15 * time.Second),
		},
		Notify: NotifyConfig{
			StreamName: "SWITCHYARD_NOTIFICATIONS",
		},
		Metrics: MetricsConfig{
			Prefix: "switchyard",
		},
	}
}

func loadYAMLFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}

		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Log.Level, "LOG_LEVEL")

	setString(&cfg.Managed.DSN, "MANAGED_DSN")

	setString(&cfg.Source.Kind, "SOURCE_KIND")
	setString(&cfg.Source.Path, "SOURCE_PATH")
	setString(&cfg.Source.Bucket, "SOURCE_BUCKET")
	setString(&cfg.Source.Key, "SOURCE_KEY")

	setDuration(&cfg.Router.ReplicationTimeout, "REPLICATION_TIMEOUT")
	setInt(&cfg.Router.MaxInFlight, "MAX_IN_FLIGHT")
	setBool(&cfg.Router.BreakerEnabled, "BREAKER_ENABLED")
	setInt(&cfg.Router.BreakerThreshold, "BREAKER_THRESHOLD")
	setDuration(&cfg.Router.BreakerCooldown, "BREAKER_COOLDOWN")

	setString(&cfg.Proxy.Listen, "PROXY_LISTEN")
	setString(&cfg.Proxy.Endpoint, "PROXY_ENDPOINT")
	setString(&cfg.Proxy.Transport, "PROXY_TRANSPORT")
	setString(&cfg.Proxy.Subject, "PROXY_SUBJECT")
	setString(&cfg.Proxy.Queue, "PROXY_QUEUE")
	setDuration(&cfg.Proxy.StatementTimeout, "PROXY_STATEMENT_TIMEOUT")
	setDuration(&cfg.Proxy.RequestTimeout, "PROXY_REQUEST_TIMEOUT")
	setDuration(&cfg.Proxy.TokenTTL, "PROXY_TOKEN_TTL")
	setString(&cfg.Proxy.Secret, "PROXY_SECRET")
	setString(&cfg.Proxy.APIKey, "PROXY_API_KEY")

	setString(&cfg.NATS.URL, "NATS_URL")

	setBool(&cfg.Notify.Stream, "NOTIFY_STREAM")

	setString(&cfg.Metrics.Prefix, "METRICS_PREFIX")
	setString(&cfg.Metrics.Listen, "METRICS_LISTEN")
}

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	var errs []error

	switch c.Source.Kind {
	case SourceFile:
		if c.Source.Path == "" {
			errs = append(errs, errors.New("source.path is required for a file source"))
		}
	case SourceNATS:
		if c.NATS.URL == "" || c.Source.Bucket == "" {
			errs = append(errs, errors.New("nats.url and source.bucket are required for a nats source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source kind %q", c.Source.Kind))
	}

	switch c.Proxy.Transport {
	case TransportHTTP:
	case TransportNATS:
		if c.NATS.URL == "" {
			errs = append(errs, errors.New("nats.url is required for the nats proxy transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown proxy transport %q", c.Proxy.Transport))
	}

	if c.Router.MaxInFlight < 0 {
		errs = append(errs, errors.New("router.max_in_flight must not be negative"))
	}
	if c.Notify.Stream && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url is required for the notification stream"))
	}

	return errors.Join(errs...)
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func setString(dst *string, name string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = v
	}
}

func setInt(dst *int, name string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, name string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func setDuration(dst *Duration, name string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			*dst = Duration(d)
		}
	}
}
