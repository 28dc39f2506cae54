package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gate-remote/gate-go/pkg/log"
	"github.com/gate-remote/gate-go/pkg/persistence"
)

// DefaultTTL is how long a session lasts without an explicit setting.
const DefaultTTL = 12 * time.Hour

// DefaultCookieName names the session cookie.
const DefaultCookieName = "gate_session"

// Session errors.
var (
	ErrNoSession      = errors.New("no session")
	ErrSessionExpired = errors.New("session expired")
	ErrManagerClosed  = errors.New("session manager closed")
)

// Session is one signed-in user.
type Session struct {
	ID        string    `json:"id"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether s has run out at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Provider checks credentials. Required.
	Provider Provider

	// TTL is the session lifetime. Default: DefaultTTL.
	TTL time.Duration

	// CookieName names the session cookie. Default: DefaultCookieName.
	CookieName string

	// SecureCookie marks the cookie Secure (HTTPS only).
	SecureCookie bool

	// State persists live sessions across restarts. Optional.
	State *persistence.SessionStateStore

	// Events receives auth events. Optional.
	Events log.Logger

	// Logger is the operational logger. Optional.
	Logger *slog.Logger

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// Manager holds the live sessions.
type Manager struct {
	cfg    ManagerConfig
	events log.Logger
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a manager and restores saved sessions that have not
// expired.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Provider == nil {
		return nil, errors.New("session: provider is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}

	m := &Manager{
		cfg:      cfg,
		events:   log.OrNoop(cfg.Events),
		logger:   cfg.Logger,
		now:      cfg.Now,
		sessions: make(map[string]*Session),
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	if m.now == nil {
		m.now = time.Now
	}

	if err := m.restore(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) restore() error {
	if m.cfg.State == nil {
		return nil
	}
	state, err := m.cfg.State.Load()
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	now := m.now()
	for _, rec := range state.Sessions {
		s := &Session{
			ID:        rec.ID,
			User:      User{DisplayName: rec.DisplayName, Email: rec.Email, PhotoURL: rec.PhotoURL},
			CreatedAt: rec.CreatedAt,
			ExpiresAt: rec.ExpiresAt,
		}
		if s.ID == "" || s.Expired(now) {
			continue
		}
		m.sessions[s.ID] = s
	}
	m.logger.Debug("sessions restored", "count", len(m.sessions), "path", m.cfg.State.Path())
	return nil
}

// Login authenticates email and password and starts a session.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := m.cfg.Provider.Authenticate(ctx, email, password)
	if err != nil {
		m.logger.Info("sign-in denied", "email", email, "error", err)
		m.events.Log(log.Event{
			Timestamp: m.now(),
			Source:    log.SourceSession,
			Category:  log.CategoryAuth,
			User:      email,
			Auth:      &log.AuthEvent{Action: log.AuthDenied, Reason: err.Error()},
		})
		return nil, err
	}

	now := m.now()
	s := &Session{
		ID:        uuid.New().String(),
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.TTL),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("signed in", "email", user.Email, "session", s.ID)
	m.audit(log.AuthLogin, s)
	m.save()
	return s, nil
}

// Lookup returns the live session with id. An expired session is removed
// and reported as ErrSessionExpired.
func (m *Manager) Lookup(id string) (*Session, error) {
	if id == "" {
		return nil, ErrNoSession
	}

	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNoSession
	}
	if s.Expired(m.now()) {
		delete(m.sessions, id)
		m.mu.Unlock()
		m.audit(log.AuthExpired, s)
		m.save()
		return nil, ErrSessionExpired
	}
	m.mu.Unlock()

	copied := *s
	return &copied, nil
}

// Logout ends the session with id. Unknown ids are ignored.
func (m *Manager) Logout(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return
	}
	m.logger.Info("signed out", "email", s.User.Email, "session", id)
	m.audit(log.AuthLogout, s)
	m.save()
}

// Sweep removes expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.audit(log.AuthExpired, s)
	}
	if len(expired) > 0 {
		m.save()
	}
	return len(expired)
}

// Count returns the number of live sessions, including any that have
// expired but not been swept.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Cookie returns the cookie carrying s.
func (m *Manager) Cookie(s *Session) *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}

// ClearCookie returns a cookie that removes the session cookie.
func (m *Manager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}

// FromRequest returns the session named by the request's cookie.
func (m *Manager) FromRequest(r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	return m.Lookup(c.Value)
}

// StateOf maps a lookup result to the identity state shown by clients.
// A missing or expired session is not-authed; other errors are errors.
func StateOf(s *Session, err error) State {
	if errors.Is(err, ErrNoSession) || errors.Is(err, ErrSessionExpired) {
		return Select(nil, false, nil)
	}
	if s == nil {
		return Select(nil, false, err)
	}
	return Select(&s.User, false, err)
}

// Close saves the live sessions and stops accepting new ones.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	return m.persist()
}

func (m *Manager) audit(action log.AuthAction, s *Session) {
	m.events.Log(log.Event{
		Timestamp: m.now(),
		Source:    log.SourceSession,
		Category:  log.CategoryAuth,
		User:      s.User.Email,
		Auth:      &log.AuthEvent{Action: action, SessionID: s.ID},
	})
}

// save persists the sessions, logging failures.
func (m *Manager) save() {
	if err := m.persist(); err != nil {
		m.logger.Warn("failed to save sessions", "error", err)
	}
}

func (m *Manager) persist() error {
	if m.cfg.State == nil {
		return nil
	}

	m.mu.Lock()
	state := &persistence.SessionState{SavedAt: m.now()}
	for _, s := range m.sessions {
		state.Sessions = append(state.Sessions, persistence.SessionRecord{
			ID:          s.ID,
			DisplayName: s.User.DisplayName,
			Email:       s.User.Email,
			PhotoURL:    s.User.PhotoURL,
			CreatedAt:   s.CreatedAt,
			ExpiresAt:   s.ExpiresAt,
		})
	}
	m.mu.Unlock()

	return m.cfg.State.Save(state)
}
