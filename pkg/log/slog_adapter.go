package log

import (
	"context"
	"log/slog"
	"time"
)

// SlogAdapter prints events through an slog.Logger at debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter returns an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes event as one "event" record.
func (a *SlogAdapter) Log(event Event) {
	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "event", Attrs(event)...)
}

// Attrs flattens event into slog attributes.
func Attrs(event Event) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("source", event.Source.String()),
		slog.String("category", event.Category.String()),
	}
	if event.RunID != "" {
		attrs = append(attrs, slog.String("run_id", event.RunID))
	}
	if event.User != "" {
		attrs = append(attrs, slog.String("user", event.User))
	}

	switch {
	case event.Snapshot != nil:
		attrs = append(attrs,
			slog.String("path", event.Snapshot.Path),
			slog.String("value", event.Snapshot.Value),
		)
	case event.Liveness != nil:
		attrs = append(attrs,
			slog.Bool("online", event.Liveness.Online),
			slog.String("status", event.Liveness.Status),
			slog.String("displayed", event.Liveness.Displayed),
		)
		if event.Liveness.HeartbeatAge != 0 {
			attrs = append(attrs, slog.Duration("heartbeat_age", event.Liveness.HeartbeatAge.Round(time.Millisecond)))
		}
	case event.Command != nil:
		attrs = append(attrs,
			slog.String("command_id", event.Command.ID),
			slog.String("command_type", event.Command.Type),
			slog.Bool("failed", event.Command.Failed),
		)
	case event.Auth != nil:
		attrs = append(attrs, slog.String("action", event.Auth.Action.String()))
		if event.Auth.SessionID != "" {
			attrs = append(attrs, slog.String("session_id", event.Auth.SessionID))
		}
		if event.Auth.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Auth.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs, slog.String("error", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("context", event.Error.Context))
		}
	}
	return attrs
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
