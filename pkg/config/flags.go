package config

import (
	"flag"
	"time"

	"github.com/joho/godotenv"
)

// Flags are the command-line settings shared by the gate binaries. Only
// flags that were given on the command line override the loaded file.
type Flags struct {
	fs *flag.FlagSet

	ConfigPath string
	EnvFile    string

	backend   string
	url       string
	addr      string
	logLevel  string
	eventLog  string
	history   string
	tick      time.Duration
	threshold time.Duration
}

// NewFlags registers the shared flags on fs.
func NewFlags(fs *flag.FlagSet) *Flags {
	def := Default()
	f := &Flags{fs: fs}
	fs.StringVar(&f.ConfigPath, "config", "", "YAML config file")
	fs.StringVar(&f.EnvFile, "env", ".env", "Environment file loaded if present")
	fs.StringVar(&f.backend, "store", def.Store.Backend, "Store backend: memory, firebase")
	fs.StringVar(&f.url, "store-url", "", "Realtime database URL")
	fs.StringVar(&f.addr, "addr", def.HTTP.Addr, "HTTP listen address")
	fs.StringVar(&f.logLevel, "log-level", def.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&f.eventLog, "event-log", "", "Event log file (.glog)")
	fs.StringVar(&f.history, "history", def.History.Path, "SQLite command history path")
	fs.DurationVar(&f.tick, "tick", def.Gate.Tick, "Liveness re-evaluation interval")
	fs.DurationVar(&f.threshold, "threshold", def.Gate.Threshold, "Heartbeat staleness limit")
	return f
}

// Load builds the configuration after the flag set has been parsed: the
// env file, then the config file, then the environment, then any flags
// set explicitly. The result is validated.
func (f *Flags) Load() (*Config, error) {
	if f.EnvFile != "" {
		// A missing env file is fine; godotenv never overrides variables
		// already set.
		_ = godotenv.Load(f.EnvFile)
	}

	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "store":
			cfg.Store.Backend = f.backend
		case "store-url":
			cfg.Store.URL = f.url
		case "addr":
			cfg.HTTP.Addr = f.addr
		case "log-level":
			cfg.LogLevel = f.logLevel
		case "event-log":
			cfg.EventLog = f.eventLog
		case "history":
			cfg.History.Path = f.history
		case "tick":
			cfg.Gate.Tick = f.tick
		case "threshold":
			cfg.Gate.Threshold = f.threshold
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
