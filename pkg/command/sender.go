package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gate-remote/gate-go/pkg/history"
	"github.com/gate-remote/gate-go/pkg/log"
	"github.com/gate-remote/gate-go/pkg/rtdb"
)

// Recorder stores the outcome of each command write.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// SenderConfig configures a Sender.
type SenderConfig struct {
	// Store receives the commands. Required.
	Store rtdb.Store

	// Path is the commands path. Default: DefaultPath.
	Path string

	// History records each write. Optional.
	History Recorder

	// Events receives a CategoryCommand event per write. Optional.
	Events log.Logger

	// Logger is the operational logger. Optional.
	Logger *slog.Logger

	// NewID generates command keys. Default: random UUIDv4.
	NewID func() string

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// Sender writes command envelopes to the store.
type Sender struct {
	store   rtdb.Store
	path    string
	history Recorder
	events  log.Logger
	logger  *slog.Logger
	newID   func() string
	now     func() time.Time
}

// NewSender creates a Sender.
func NewSender(cfg SenderConfig) *Sender {
	s := &Sender{
		store:   cfg.Store,
		path:    cfg.Path,
		history: cfg.History,
		events:  log.OrNoop(cfg.Events),
		logger:  cfg.Logger,
		newID:   cfg.NewID,
		now:     cfg.Now,
	}
	if s.path == "" {
		s.path = DefaultPath
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.New().String() }
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Send writes one command for user. It returns the envelope that was
// written, or the write error. Failures are logged and recorded but not
// retried.
func (s *Sender) Send(ctx context.Context, user User, typ Type, data map[string]any) (Envelope, error) {
	if _, err := ParseType(string(typ)); err != nil {
		return Envelope{}, err
	}
	if user.Empty() {
		return Envelope{}, ErrNoUser
	}
	if data == nil {
		data = map[string]any{}
	}

	env := Envelope{
		ID:   s.newID(),
		Type: typ,
		User: user,
		Data: data,
	}

	err := s.store.Set(ctx, rtdb.JoinPath(s.path, env.ID), env)
	s.report(ctx, env, err)
	return env, err
}

// report logs and records the outcome of one write.
func (s *Sender) report(ctx context.Context, env Envelope, err error) {
	now := s.now()

	entry := history.Entry{
		ID:        env.ID,
		Type:      string(env.Type),
		UserName:  env.User.Name,
		UserEmail: env.User.Email,
		Data:      env.Data,
		Outcome:   history.OutcomeSent,
		CreatedAt: now,
	}
	event := log.Event{
		Timestamp: now,
		Source:    log.SourceCommand,
		Category:  log.CategoryCommand,
		User:      env.User.Email,
		Command: &log.CommandEvent{
			ID:   env.ID,
			Type: string(env.Type),
			Data: env.Data,
		},
	}

	if err != nil {
		s.logger.Error("command write failed",
			"id", env.ID, "type", env.Type, "user", env.User.Email, "error", err)
		entry.Outcome = history.OutcomeFailed
		entry.Error = err.Error()
		event.Command.Failed = true
	} else {
		s.logger.Info("command sent", "id", env.ID, "type", env.Type, "user", env.User.Email)
	}

	s.events.Log(event)

	if s.history != nil {
		// History failures do not change the result of Send.
		if herr := s.history.Record(context.WithoutCancel(ctx), entry); herr != nil {
			s.logger.Warn("command history write failed", "id", env.ID, "error", herr)
		}
	}
}
