package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gate-remote/gate-go/pkg/command"
	"github.com/gate-remote/gate-go/pkg/log"
	"github.com/gate-remote/gate-go/pkg/rtdb"
)

// fakeClock is a settable clock for the monitor.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventSink struct {
	mu     sync.Mutex
	events []log.Event
}

func (s *eventSink) Log(e log.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *eventSink) count(cat log.Category) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Category == cat {
			n++
		}
	}
	return n
}

type monitorFixture struct {
	store   *rtdb.MemoryStore
	clock   *fakeClock
	events  *eventSink
	monitor *Monitor
	runErr  chan error
}

func startMonitor(t *testing.T) *monitorFixture {
	t.Helper()

	f := &monitorFixture{
		store:  rtdb.NewMemoryStore(),
		clock:  &fakeClock{now: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)},
		events: &eventSink{},
		runErr: make(chan error, 1),
	}

	sender := command.NewSender(command.SenderConfig{Store: f.store})
	m, err := NewMonitor(MonitorConfig{
		Store:    f.store,
		Sender:   sender,
		Tick:     5 * time.Millisecond,
		Location: time.UTC,
		Events:   f.events,
		Now:      f.clock.Now,
	})
	require.NoError(t, err)
	f.monitor = m

	go func() { f.runErr <- m.Run(context.Background()) }()

	t.Cleanup(func() {
		m.Close()
		f.store.Close()
	})
	return f
}

func (f *monitorFixture) set(t *testing.T, path string, value any) {
	t.Helper()
	require.NoError(t, f.store.Set(context.Background(), path, value))
}

func (f *monitorFixture) heartbeatAgo(t *testing.T, ago time.Duration) {
	t.Helper()
	f.set(t, DefaultHeartbeatPath, f.clock.Now().Add(-ago).Format(time.RFC3339Nano))
}

func (f *monitorFixture) waitFor(t *testing.T, cond func(View) bool) View {
	t.Helper()
	var last View
	ok := assert.Eventually(t, func() bool {
		last = f.monitor.View()
		return cond(last)
	}, 2*time.Second, 2*time.Millisecond)
	if !ok {
		t.Fatalf("view never matched, last = %+v", last)
	}
	return last
}

func TestMonitorLoadingUntilStatus(t *testing.T) {
	f := startMonitor(t)

	assert.True(t, f.monitor.View().Loading)

	f.set(t, DefaultStatusPath, "Closed")
	f.waitFor(t, func(v View) bool { return !v.Loading })
}

func TestMonitorOnlineClosed(t *testing.T) {
	f := startMonitor(t)

	f.set(t, DefaultStatusPath, "Closed")
	f.heartbeatAgo(t, 3*time.Second)

	v := f.waitFor(t, func(v View) bool { return v.Online })
	assert.Equal(t, "OPEN", v.ActionLabel)
	assert.Equal(t, "Closed", v.StatusText)
}

func TestMonitorOfflineOpen(t *testing.T) {
	f := startMonitor(t)

	f.set(t, DefaultStatusPath, "Open")
	f.heartbeatAgo(t, 10*time.Second)

	v := f.waitFor(t, func(v View) bool { return !v.Loading && !v.Heartbeat.IsZero() })
	assert.False(t, v.Online)
	assert.Equal(t, "CLOSE", v.ActionLabel)
	assert.Equal(t, "Offline", v.StatusText)
}

func TestMonitorTickTurnsOffline(t *testing.T) {
	f := startMonitor(t)

	f.set(t, DefaultStatusPath, "Closed")
	f.heartbeatAgo(t, 0)
	f.waitFor(t, func(v View) bool { return v.Online })

	// No new heartbeat; the tick notices the controller went quiet.
	f.clock.Advance(5 * time.Second)
	v := f.waitFor(t, func(v View) bool { return !v.Online })
	assert.Equal(t, "Offline", v.StatusText)

	assert.Eventually(t, func() bool { return f.events.count(log.CategoryLiveness) >= 2 },
		time.Second, 2*time.Millisecond)
}

func TestMonitorConfidence(t *testing.T) {
	f := startMonitor(t)

	f.set(t, "gate-controller/status", map[string]any{
		"current_status":   "Closing",
		"confidence_score": 0.88,
		"timestamp":        "2026-10-14T11:59:59",
	})

	v := f.waitFor(t, func(v View) bool { return v.HasConfidence && v.Status == StatusClosing })
	assert.InDelta(t, 0.88, v.Confidence, 1e-9)
}

func TestMonitorWatch(t *testing.T) {
	f := startMonitor(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch := f.monitor.Watch(ctx)

	first := <-ch
	assert.True(t, first.Loading)

	f.set(t, DefaultStatusPath, "Open")
	f.heartbeatAgo(t, time.Second)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-ch:
			if v.Online && v.Status == StatusOpen {
				cancel()
				// The channel closes once the watch ends.
				for range ch {
				}
				return
			}
		case <-deadline:
			t.Fatal("watch never delivered the online view")
		}
	}
}

func TestMonitorToggleSendsResolvedCommand(t *testing.T) {
	f := startMonitor(t)
	ctx := context.Background()

	_, err := f.monitor.Toggle(ctx, command.User{Name: "A", Email: "a@x.com", Photo: "u"})
	assert.ErrorIs(t, err, ErrStatusUnknown)

	f.set(t, DefaultStatusPath, "Closed")
	f.waitFor(t, func(v View) bool { return v.Status == StatusClosed })

	user := command.User{Name: "A", Email: "a@x.com", Photo: "u"}
	env, err := f.monitor.Toggle(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, command.TypeOpen, env.Type)

	snap, err := f.store.Get(ctx, command.DefaultPath)
	require.NoError(t, err)

	var commands map[string]struct {
		Type string       `json:"type"`
		User command.User `json:"user"`
	}
	require.NoError(t, snap.Decode(&commands))
	require.Len(t, commands, 1)
	got := commands[env.ID]
	assert.Equal(t, "open", got.Type)
	assert.Equal(t, user, got.User)
}

func TestMonitorRunOnceAndClose(t *testing.T) {
	f := startMonitor(t)
	f.waitFor(t, func(View) bool { return f.store.SubscriberCount() == 3 })

	assert.ErrorIs(t, f.monitor.Run(context.Background()), ErrAlreadyRunning)

	require.NoError(t, f.monitor.Close())
	require.NoError(t, <-f.runErr)
	assert.Equal(t, 0, f.store.SubscriberCount())

	assert.ErrorIs(t, f.monitor.Run(context.Background()), ErrMonitorClosed)
	require.NoError(t, f.monitor.Close())

	_, open := <-f.monitor.Watch(context.Background())
	assert.False(t, open)
}

func TestMonitorRunReleasesOnContextCancel(t *testing.T) {
	store := rtdb.NewMemoryStore()
	defer store.Close()

	m, err := NewMonitor(MonitorConfig{Store: store, Tick: 5 * time.Millisecond})
	require.NoError(t, err)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	assert.Eventually(t, func() bool { return store.SubscriberCount() == 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 0, store.SubscriberCount())
}

func TestNewMonitorRequiresStore(t *testing.T) {
	_, err := NewMonitor(MonitorConfig{})
	assert.Error(t, err)
}

func TestMonitorToggleWithoutSender(t *testing.T) {
	store := rtdb.NewMemoryStore()
	defer store.Close()
	m, err := NewMonitor(MonitorConfig{Store: store})
	require.NoError(t, err)
	_, err = m.Toggle(context.Background(), command.User{Name: "A"})
	assert.ErrorIs(t, err, ErrNoSender)
}
