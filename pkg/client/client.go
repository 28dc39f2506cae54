package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gate-remote/gate-go/pkg/command"
	"github.com/gate-remote/gate-go/pkg/config"
	"github.com/gate-remote/gate-go/pkg/connection"
	"github.com/gate-remote/gate-go/pkg/discovery"
	"github.com/gate-remote/gate-go/pkg/gate"
	"github.com/gate-remote/gate-go/pkg/history"
	"github.com/gate-remote/gate-go/pkg/log"
	"github.com/gate-remote/gate-go/pkg/persistence"
	"github.com/gate-remote/gate-go/pkg/rtdb"
	"github.com/gate-remote/gate-go/pkg/session"
)

// ErrClosed is returned by operations on a closed client.
var ErrClosed = errors.New("client closed")

// Options override parts of the assembly. All fields are optional.
type Options struct {
	// Logger is the operational logger.
	Logger *slog.Logger

	// Store replaces the store selected by the config.
	Store rtdb.Store

	// Provider replaces the local account provider.
	Provider session.Provider

	// Events receives the event trace in addition to the config's file.
	Events log.Logger

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// Client is the assembled application context.
type Client struct {
	cfg    *config.Config
	logger *slog.Logger

	store    rtdb.Store
	events   log.Logger
	history  *history.Store
	sessions *session.Manager
	sender   *command.Sender
	monitor  *gate.Monitor

	runID string

	mu         sync.Mutex
	advertiser *discovery.MDNSAdvertiser
	closers    []func() error
	closed     bool
	runErr     error
	runDone    chan struct{}
}

// Open builds a client from cfg and starts the gate monitor. The monitor
// runs until ctx is done or Close is called.
func Open(ctx context.Context, cfg *config.Config, opts Options) (_ *Client, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Client{
		cfg:     cfg,
		logger:  opts.Logger,
		runID:   uuid.New().String(),
		runDone: make(chan struct{}),
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	defer func() {
		if err != nil {
			_ = c.closeAll()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	if err := c.openEvents(opts.Events); err != nil {
		return nil, err
	}
	if err := c.openStore(opts.Store); err != nil {
		return nil, err
	}
	if err := c.openHistory(ctx); err != nil {
		return nil, err
	}
	if err := c.openSessions(opts.Provider, opts.Now); err != nil {
		return nil, err
	}

	c.sender = command.NewSender(command.SenderConfig{
		Store:   c.store,
		Path:    cfg.Gate.CommandsPath,
		History: c.recorder(),
		Events:  c.events,
		Logger:  c.logger.With("component", "sender"),
		Now:     opts.Now,
	})

	c.monitor, err = gate.NewMonitor(gate.MonitorConfig{
		Store:          c.store,
		Sender:         c.sender,
		StatusPath:     cfg.Gate.StatusPath,
		HeartbeatPath:  cfg.Gate.HeartbeatPath,
		ConfidencePath: cfg.Gate.ConfidencePath,
		Tick:           cfg.Gate.Tick,
		Threshold:      cfg.Gate.Threshold,
		Location:       loc,
		Events:         c.events,
		Logger:         c.logger.With("component", "monitor"),
		Now:            opts.Now,
	})
	if err != nil {
		return nil, err
	}
	c.push(c.monitor.Close)

	go func() {
		defer close(c.runDone)
		if err := c.monitor.Run(ctx); err != nil && !errors.Is(err, gate.ErrMonitorClosed) {
			c.logger.Error("gate monitor failed", "error", err)
			c.mu.Lock()
			c.runErr = err
			c.mu.Unlock()
		}
	}()

	c.logger.Info("client opened", "backend", cfg.Store.Backend, "run", c.runID)
	return c, nil
}

func (c *Client) openEvents(extra log.Logger) error {
	var loggers []log.Logger
	if extra != nil {
		loggers = append(loggers, extra)
	}
	if c.cfg.EventLog != "" {
		fl, err := log.NewFileLogger(c.cfg.EventLog)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		c.push(fl.Close)
		loggers = append(loggers, fl)
	}
	if c.cfg.SlogLevel() <= slog.LevelDebug {
		loggers = append(loggers, log.NewSlogAdapter(c.logger.With("component", "events")))
	}
	c.events = &runLogger{runID: c.runID, next: log.NewMultiLogger(loggers...)}
	return nil
}

func (c *Client) openStore(override rtdb.Store) error {
	if override != nil {
		c.store = override
		return nil
	}

	switch c.cfg.Store.Backend {
	case config.BackendFirebase:
		fs, err := rtdb.NewFirebaseStore(rtdb.FirebaseConfig{
			DatabaseURL:    c.cfg.Store.URL,
			AuthToken:      c.cfg.Store.Token,
			RequestTimeout: c.cfg.Store.RequestTimeout,
			Backoff:        connection.BackoffConfig{Jitter: connection.JitterFactor},
			Logger:         c.logger.With("component", "firebase"),
		})
		if err != nil {
			return err
		}
		c.push(fs.Close)
		c.store = fs
	default:
		ms := rtdb.NewMemoryStore()
		c.push(ms.Close)
		c.store = ms
	}
	return nil
}

func (c *Client) openHistory(ctx context.Context) error {
	if c.cfg.History.Path == "" {
		return nil
	}
	h, err := history.NewStore(c.cfg.History.Path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	c.push(h.Close)
	c.history = h

	if c.cfg.History.Retention > 0 {
		cutoff := time.Now().Add(-c.cfg.History.Retention)
		n, err := h.Prune(ctx, cutoff)
		if err != nil {
			c.logger.Warn("history prune failed", "error", err)
		} else if n > 0 {
			c.logger.Info("history pruned", "removed", n, "before", cutoff)
		}
	}
	return nil
}

func (c *Client) openSessions(provider session.Provider, now func() time.Time) error {
	if provider == nil {
		lp, err := session.NewLocalProvider(c.cfg.Accounts)
		if err != nil {
			return fmt.Errorf("accounts: %w", err)
		}
		if lp.Accounts() == 0 {
			c.logger.Warn("no accounts configured, nobody can sign in")
		}
		provider = lp
	}

	var state *persistence.SessionStateStore
	if c.cfg.Session.StateFile != "" {
		state = persistence.NewSessionStateStore(c.cfg.Session.StateFile)
	}

	m, err := session.NewManager(session.ManagerConfig{
		Provider:     provider,
		TTL:          c.cfg.Session.TTL,
		SecureCookie: c.cfg.HTTP.SecureCookie,
		State:        state,
		Events:       c.events,
		Logger:       c.logger.With("component", "session"),
		Now:          now,
	})
	if err != nil {
		return err
	}
	c.push(m.Close)
	c.sessions = m
	return nil
}

// recorder returns the history as a command.Recorder, or nil when the
// history is disabled.
func (c *Client) recorder() command.Recorder {
	if c.history == nil {
		return nil
	}
	return c.history
}

func (c *Client) push(closer func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, closer)
}

// Config returns the configuration the client was opened with.
func (c *Client) Config() *config.Config { return c.cfg }

// Store returns the realtime database.
func (c *Client) Store() rtdb.Store { return c.store }

// Sessions returns the session manager.
func (c *Client) Sessions() *session.Manager { return c.sessions }

// Sender returns the command sender.
func (c *Client) Sender() *command.Sender { return c.sender }

// Monitor returns the gate monitor.
func (c *Client) Monitor() *gate.Monitor { return c.monitor }

// History returns the command history, or nil when it is disabled.
func (c *Client) History() *history.Store { return c.history }

// Events returns the event trace.
func (c *Client) Events() log.Logger { return c.events }

// RunID identifies this process in the event trace.
func (c *Client) RunID() string { return c.runID }

// Advertise announces the HTTP front end on port over mDNS when discovery
// is enabled. Calling it again replaces the advertisement.
func (c *Client) Advertise(port uint16) error {
	if !c.cfg.Discovery.Enabled {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	adv := c.advertiser
	if adv == nil {
		cfg := discovery.DefaultAdvertiserConfig()
		cfg.Logger = c.logger.With("component", "discovery")
		adv = discovery.NewMDNSAdvertiser(cfg)
		c.advertiser = adv
		c.closers = append(c.closers, func() error {
			adv.Stop()
			return nil
		})
	}
	c.mu.Unlock()

	return adv.Advertise(discovery.Info{
		Instance: c.cfg.Discovery.Instance,
		Port:     port,
		APIPath:  discovery.DefaultAPIPath,
		Backend:  c.cfg.Store.Backend,
		ID:       c.runID,
	})
}

// Err returns the error the monitor stopped with, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runErr
}

// Close tears the client down in reverse order of construction.
// Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.closeAll()
	if c.monitor != nil {
		<-c.runDone
	}
	c.logger.Info("client closed", "run", c.runID)
	return err
}

func (c *Client) closeAll() error {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runLogger stamps events with the run ID.
type runLogger struct {
	runID string
	next  log.Logger
}

func (l *runLogger) Log(e log.Event) {
	if e.RunID == "" {
		e.RunID = l.runID
	}
	l.next.Log(e)
}
