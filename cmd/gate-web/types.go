package main

import (
	"time"

	"github.com/gate-remote/gate-go/pkg/command"
	"github.com/gate-remote/gate-go/pkg/session"
)

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// InfoResponse describes the running client.
type InfoResponse struct {
	Version        string `json:"version"`
	APIVersion     string `json:"api_version"`
	RunID          string `json:"run_id"`
	Backend        string `json:"backend"`
	Online         bool   `json:"online"`
	Sessions       int    `json:"sessions"`
	Commands       int    `json:"commands"`
	FailedCommands int    `json:"failed_commands"`
}

// LoginRequest is the body of POST /api/v1/session.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse reports the current identity.
type SessionResponse struct {
	State     session.State `json:"state"`
	User      *session.User `json:"user,omitempty"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty"`
}

// CommandRequest is the body of POST /api/v1/gate/commands.
type CommandRequest struct {
	Type           string `json:"type"`
	DelayInSeconds int    `json:"delay_in_seconds,omitempty"`
}

// CommandResponse is a command as it was written.
type CommandResponse struct {
	ID   string         `json:"id"`
	Type command.Type   `json:"type"`
	User command.User   `json:"user"`
	Data map[string]any `json:"data"`
}

func commandResponse(env command.Envelope) CommandResponse {
	return CommandResponse{ID: env.ID, Type: env.Type, User: env.User, Data: env.Data}
}
