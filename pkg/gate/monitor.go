package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gate-remote/gate-go/pkg/command"
	"github.com/gate-remote/gate-go/pkg/log"
	"github.com/gate-remote/gate-go/pkg/rtdb"
	"github.com/gate-remote/gate-go/pkg/subscription"
)

// Default store paths written by the controller.
const (
	DefaultStatusPath     = "gate-controller/status/current_status"
	DefaultHeartbeatPath  = "gate-controller/program-status"
	DefaultConfidencePath = "gate-controller/status/confidence_score"
)

// Monitor errors.
var (
	ErrAlreadyRunning = errors.New("monitor already running")
	ErrMonitorClosed  = errors.New("monitor closed")
	ErrNoSender       = errors.New("monitor has no command sender")
)

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	// Store is read for status, heartbeat and confidence. Required.
	Store rtdb.Store

	// Sender sends toggle commands. Optional; Toggle fails without it.
	Sender *command.Sender

	// Store paths. Defaults: DefaultStatusPath, DefaultHeartbeatPath,
	// DefaultConfidencePath. Set ConfidencePath to "-" to skip it.
	StatusPath     string
	HeartbeatPath  string
	ConfidencePath string

	// Tick is the liveness re-evaluation interval. Default: DefaultTick.
	Tick time.Duration

	// Threshold is the heartbeat staleness limit. Default: DefaultThreshold.
	Threshold time.Duration

	// Location interprets zone-less heartbeats. Default: local time.
	Location *time.Location

	// Events receives snapshot, liveness and error events. Optional.
	Events log.Logger

	// Logger is the operational logger. Optional.
	Logger *slog.Logger

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// Monitor keeps a View current from live store subscriptions and a tick.
//
// All Model access happens on the goroutine running Run. Subscriptions only
// signal that something changed; the loop then reads the latest snapshot.
// The published View is immutable and can be read from anywhere.
type Monitor struct {
	cfg    MonitorConfig
	logger *slog.Logger
	events log.Logger
	now    func() time.Time

	view atomic.Pointer[View]

	mu       sync.Mutex
	watchers map[chan View]struct{}
	running  bool
	closed   bool
	closedCh chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewMonitor creates a monitor. Call Run to start it.
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if cfg.Store == nil {
		return nil, errors.New("monitor: store is required")
	}
	if cfg.StatusPath == "" {
		cfg.StatusPath = DefaultStatusPath
	}
	if cfg.HeartbeatPath == "" {
		cfg.HeartbeatPath = DefaultHeartbeatPath
	}
	if cfg.ConfidencePath == "" {
		cfg.ConfidencePath = DefaultConfidencePath
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}

	m := &Monitor{
		cfg:      cfg,
		logger:   cfg.Logger,
		events:   log.OrNoop(cfg.Events),
		now:      cfg.Now,
		watchers: make(map[chan View]struct{}),
		closedCh: make(chan struct{}),
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	if m.now == nil {
		m.now = time.Now
	}

	initial := NewModel(cfg.Threshold, cfg.Location).View(m.now())
	m.view.Store(&initial)
	return m, nil
}

// View returns the latest published view.
func (m *Monitor) View() View {
	return *m.view.Load()
}

// source is one store feed of the loop.
type source struct {
	name    string
	path    string
	binding *subscription.Binding
	feed    *subscription.Feed
	wake    chan struct{}
}

func newSource(name, path string, logger *slog.Logger) *source {
	s := &source{
		name: name,
		path: path,
		wake: make(chan struct{}, 1),
	}
	s.binding = subscription.New(nil)
	s.binding.SetLogger(logger)
	return s
}

// signal wakes the loop. Signals coalesce; the loop always reads the
// latest snapshot.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *source) bind(store rtdb.Store) error {
	return s.binding.Render(func() { signal(s.wake) },
		subscription.Subscribe(store, s.path, func(f *subscription.Feed) { s.feed = f }))
}

func (s *source) latest() (rtdb.Snapshot, bool) {
	if s.feed == nil {
		return rtdb.Snapshot{}, false
	}
	return s.feed.Latest()
}

// Run subscribes to the store and processes updates until ctx is done or
// Close is called. Every subscription and the tick are released before Run
// returns.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMonitorClosed
	}
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		close(done)
	}()

	status := newSource("status", m.cfg.StatusPath, m.logger)
	heartbeat := newSource("heartbeat", m.cfg.HeartbeatPath, m.logger)
	sources := []*source{status, heartbeat}

	var confidence *source
	if m.cfg.ConfidencePath != "-" {
		confidence = newSource("confidence", m.cfg.ConfidencePath, m.logger)
		sources = append(sources, confidence)
	}

	tickWake := make(chan struct{}, 1)
	ticker := subscription.New(nil)
	ticker.SetLogger(m.logger)

	defer func() {
		ticker.Close()
		for _, s := range sources {
			s.binding.Close()
		}
	}()

	for _, s := range sources {
		if err := s.bind(m.cfg.Store); err != nil {
			return err
		}
	}
	if err := ticker.Render(func() { signal(tickWake) }, subscription.Interval(m.cfg.Tick)); err != nil {
		return err
	}

	m.logger.Info("gate monitor started",
		"status", m.cfg.StatusPath,
		"heartbeat", m.cfg.HeartbeatPath,
		"tick", m.cfg.Tick,
		"threshold", m.cfg.Threshold)

	model := NewModel(m.cfg.Threshold, m.cfg.Location)

	var confWake chan struct{}
	if confidence != nil {
		confWake = confidence.wake
	}

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("gate monitor stopped")
			return nil

		case <-status.wake:
			if snap, ok := status.latest(); ok {
				m.recordSnapshot(status, snap)
				model.ApplyStatus(snap)
			}

		case <-heartbeat.wake:
			if snap, ok := heartbeat.latest(); ok {
				m.recordSnapshot(heartbeat, snap)
				model.ApplyHeartbeat(snap, m.now())
			}

		case <-confWake:
			if snap, ok := confidence.latest(); ok {
				m.recordSnapshot(confidence, snap)
				model.ApplyConfidence(snap)
			}

		case <-tickWake:
			model.Tick(m.now())
		}

		m.publish(model)
	}
}

// recordSnapshot traces one store push. Read errors are also logged.
func (m *Monitor) recordSnapshot(s *source, snap rtdb.Snapshot) {
	at := snap.At
	if at.IsZero() {
		at = m.now()
	}

	if snap.Err != nil {
		m.logger.Warn("store read failed", "source", s.name, "path", s.path, "error", snap.Err)
		m.events.Log(log.Event{
			Timestamp: at,
			Source:    log.SourceStore,
			Category:  log.CategoryError,
			Error:     &log.ErrorEventData{Message: snap.Err.Error(), Context: s.path},
		})
		return
	}

	m.events.Log(log.Event{
		Timestamp: at,
		Source:    log.SourceStore,
		Category:  log.CategorySnapshot,
		Snapshot:  &log.SnapshotEvent{Path: s.path, Value: string(snap.Value)},
	})
}

// publish stores the model's view and notifies watchers if it changed.
func (m *Monitor) publish(model *Model) {
	now := m.now()
	next := model.View(now)
	prev := m.view.Load()
	if prev.Same(next) {
		return
	}
	m.view.Store(&next)

	if prev.Online != next.Online || prev.StatusText != next.StatusText {
		age, _ := model.HeartbeatAge(now)
		m.logger.Info("gate view changed",
			"online", next.Online, "status", next.Status, "displayed", next.StatusText)
		m.events.Log(log.Event{
			Timestamp: now,
			Source:    log.SourceMonitor,
			Category:  log.CategoryLiveness,
			Liveness: &log.LivenessEvent{
				Online:       next.Online,
				Status:       string(next.Status),
				Displayed:    next.StatusText,
				HeartbeatAge: age,
			},
		})
	}

	m.mu.Lock()
	for ch := range m.watchers {
		offer(ch, next)
	}
	m.mu.Unlock()
}

// offer replaces any undelivered view in ch with v.
func offer(ch chan View, v View) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// Watch returns a channel that receives the current view and then every
// change. A slow reader sees only the newest view. The channel is closed
// when ctx is done or the monitor is closed.
func (m *Monitor) Watch(ctx context.Context) <-chan View {
	ch := make(chan View, 1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch
	}
	ch <- m.View()
	m.watchers[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			m.removeWatcher(ch)
		case <-m.closedCh:
		}
	}()
	return ch
}

func (m *Monitor) removeWatcher(ch chan View) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.watchers[ch]; ok {
		delete(m.watchers, ch)
		close(ch)
	}
}

// Toggle sends the command that flips the gate from its current status:
// close when open or opening, open when closed or closing.
func (m *Monitor) Toggle(ctx context.Context, user command.User) (command.Envelope, error) {
	if m.cfg.Sender == nil {
		return command.Envelope{}, ErrNoSender
	}
	v := m.View()
	if v.Loading {
		return command.Envelope{}, ErrStatusUnknown
	}
	typ, err := CommandFor(v.Status)
	if err != nil {
		return command.Envelope{}, err
	}
	return m.cfg.Sender.Send(ctx, user, typ, nil)
}

// Close stops Run, waits for it to release its subscriptions, and closes
// all watch channels. Safe to call more than once.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.closedCh)
	cancel, done := m.cancel, m.done
	running := m.running
	m.mu.Unlock()

	if running && cancel != nil {
		cancel()
		<-done
	}

	m.mu.Lock()
	for ch := range m.watchers {
		delete(m.watchers, ch)
		close(ch)
	}
	m.mu.Unlock()
	return nil
}
