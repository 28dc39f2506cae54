package client

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gate-remote/gate-go/pkg/command"
	"github.com/gate-remote/gate-go/pkg/config"
	"github.com/gate-remote/gate-go/pkg/gate"
	"github.com/gate-remote/gate-go/pkg/history"
	"github.com/gate-remote/gate-go/pkg/log"
	"github.com/gate-remote/gate-go/pkg/rtdb"
	"github.com/gate-remote/gate-go/pkg/session"
)

type captured struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captured) Log(e log.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captured) all() []log.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]log.Event(nil), c.events...)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.History.Path = ":memory:"
	cfg.EventLog = filepath.Join(t.TempDir(), "events.glog")
	cfg.Gate.Tick = 10 * time.Millisecond
	cfg.Accounts = []session.Account{{Email: "ada@example.com", DisplayName: "Ada", PasswordHash: string(hash)}}
	return cfg
}

func TestOpenToggleClose(t *testing.T) {
	ctx := context.Background()
	events := &captured{}

	c, err := Open(ctx, testConfig(t), Options{Events: events})
	require.NoError(t, err)
	defer c.Close()

	store := c.Store()
	require.NoError(t, store.Set(ctx, gate.DefaultStatusPath, "Closed"))
	require.NoError(t, store.Set(ctx, gate.DefaultHeartbeatPath, time.Now().Format(time.RFC3339Nano)))

	require.Eventually(t, func() bool {
		v := c.Monitor().View()
		return v.Online && v.Status == gate.StatusClosed
	}, 2*time.Second, 5*time.Millisecond)

	s, err := c.Sessions().Login(ctx, "ada@example.com", "secret")
	require.NoError(t, err)

	env, err := c.Monitor().Toggle(ctx, s.User.CommandUser())
	require.NoError(t, err)
	assert.Equal(t, command.TypeOpen, env.Type)

	snap, err := store.Get(ctx, rtdb.JoinPath(command.DefaultPath, env.ID))
	require.NoError(t, err)
	assert.True(t, snap.Exists())

	entries, err := c.History().List(ctx, history.Query{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ada@example.com", entries[0].UserEmail)

	for _, e := range events.all() {
		assert.Equal(t, c.RunID(), e.RunID)
	}

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestOpenWritesEventLog(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	c, err := Open(ctx, cfg, Options{})
	require.NoError(t, err)

	_, err = c.Sessions().Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, session.ErrInvalidCredentials)
	require.NoError(t, c.Close())

	r, err := log.NewReader(cfg.EventLog)
	require.NoError(t, err)
	defer r.Close()

	var auth int
	for {
		e, err := r.Next()
		if err != nil {
			break
		}
		if e.Category == log.CategoryAuth {
			auth++
			assert.Equal(t, log.AuthDenied, e.Auth.Action)
		}
	}
	assert.Equal(t, 1, auth)
}

func TestOpenRejectsBadAccounts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Accounts = append(cfg.Accounts, session.Account{Email: "bob@example.com", PasswordHash: "plain"})

	_, err := Open(context.Background(), cfg, Options{})
	assert.ErrorContains(t, err, "invalid password hash")
}

func TestOpenWithStoreOverride(t *testing.T) {
	store := rtdb.NewMemoryStore()
	defer store.Close()

	cfg := testConfig(t)
	cfg.History.Path = ""
	cfg.EventLog = ""

	c, err := Open(context.Background(), cfg, Options{Store: store})
	require.NoError(t, err)
	assert.Same(t, store, c.Store())
	assert.Nil(t, c.History())

	// Discovery is disabled by default.
	assert.NoError(t, c.Advertise(8080))
	require.NoError(t, c.Close())

	// The override is owned by the caller.
	assert.NoError(t, store.Set(context.Background(), "still/open", 1))
}
