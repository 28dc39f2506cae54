// Package config loads gate client settings.
//
// Settings come from, in increasing priority: Default(), a YAML file, the
// environment (optionally seeded from a .env file) and command-line flags.
// The store auth token is only ever read from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gate-remote/gate-go/pkg/command"
	"github.com/gate-remote/gate-go/pkg/gate"
	"github.com/gate-remote/gate-go/pkg/session"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFirebase = "firebase"
)

// DefaultAuthEnv names the environment variable holding the store token.
const DefaultAuthEnv = "GATE_STORE_AUTH"

// Validation errors.
var (
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrNoStoreURL     = errors.New("firebase backend needs a database url")
	ErrInvalidTiming  = errors.New("tick and threshold must be positive")
)

// Config is the complete client configuration.
type Config struct {
	Store     StoreConfig       `yaml:"store"`
	Gate      GateConfig        `yaml:"gate"`
	HTTP      HTTPConfig        `yaml:"http"`
	Session   SessionConfig     `yaml:"session"`
	Accounts  []session.Account `yaml:"accounts"`
	History   HistoryConfig     `yaml:"history"`
	Discovery DiscoveryConfig   `yaml:"discovery"`

	// EventLog is the .glog file for the event trace. Empty disables it.
	EventLog string `yaml:"event_log"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
}

// StoreConfig selects and configures the realtime database.
type StoreConfig struct {
	Backend        string        `yaml:"backend"`
	URL            string        `yaml:"url"`
	AuthEnv        string        `yaml:"auth_env"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Token is filled from the AuthEnv variable.
	Token string `yaml:"-"`
}

// GateConfig holds the store paths and liveness timing.
type GateConfig struct {
	StatusPath     string        `yaml:"status_path"`
	HeartbeatPath  string        `yaml:"heartbeat_path"`
	ConfidencePath string        `yaml:"confidence_path"`
	CommandsPath   string        `yaml:"commands_path"`
	Tick           time.Duration `yaml:"tick"`
	Threshold      time.Duration `yaml:"threshold"`

	// Timezone interprets heartbeats written without a zone. Empty means
	// the local zone.
	Timezone string `yaml:"timezone"`
}

// HTTPConfig configures gate-web.
type HTTPConfig struct {
	Addr         string `yaml:"addr"`
	SecureCookie bool   `yaml:"secure_cookie"`
}

// SessionConfig configures sign-in sessions.
type SessionConfig struct {
	TTL       time.Duration `yaml:"ttl"`
	StateFile string        `yaml:"state_file"`
}

// HistoryConfig configures the local command history.
type HistoryConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// DiscoveryConfig configures mDNS advertisement of gate-web.
type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:        BackendMemory,
			AuthEnv:        DefaultAuthEnv,
			RequestTimeout: 10 * time.Second,
		},
		Gate: GateConfig{
			StatusPath:     gate.DefaultStatusPath,
			HeartbeatPath:  gate.DefaultHeartbeatPath,
			ConfidencePath: gate.DefaultConfidencePath,
			CommandsPath:   command.DefaultPath,
			Tick:           gate.DefaultTick,
			Threshold:      gate.DefaultThreshold,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Session: SessionConfig{
			TTL: session.DefaultTTL,
		},
		History: HistoryConfig{
			Path:      "./gate-history.db",
			Retention: 30 * 24 * time.Hour,
		},
		Discovery: DiscoveryConfig{
			Instance: "gate-web",
		},
		LogLevel: "info",
	}
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	return cfg, nil
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv fills the store token from the environment.
func (c *Config) ApplyEnv() {
	name := c.Store.AuthEnv
	if name == "" {
		name = DefaultAuthEnv
	}
	if v, ok := os.LookupEnv(name); ok {
		c.Store.Token = strings.TrimSpace(v)
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendFirebase:
		if c.Store.URL == "" {
			return ErrNoStoreURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Store.Backend)
	}
	if c.Gate.Tick <= 0 || c.Gate.Threshold <= 0 {
		return ErrInvalidTiming
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the zone used for zone-less heartbeats.
func (c *Config) Location() (*time.Location, error) {
	if c.Gate.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Gate.Timezone)
	if err != nil {
		return nil, fmt.Errorf("gate timezone: %w", err)
	}
	return loc, nil
}

// SlogLevel maps LogLevel to a slog level. Unknown names mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadError describes a configuration file that could not be loaded.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.File == "" {
		return msg
	}
	return e.File + ": " + msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
