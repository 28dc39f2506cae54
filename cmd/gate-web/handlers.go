package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gate-remote/gate-go/pkg/command"
	"github.com/gate-remote/gate-go/pkg/gate"
	"github.com/gate-remote/gate-go/pkg/history"
	"github.com/gate-remote/gate-go/pkg/session"
)

// maxBodySize bounds request bodies.
const maxBodySize = 64 << 10

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *session.Session)

// requireSession rejects requests without a live session.
func (s *Server) requireSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.client.Sessions().FromRequest(r)
		if err != nil {
			// Drop the stale cookie.
			if errors.Is(err, session.ErrSessionExpired) {
				http.SetCookie(w, s.client.Sessions().ClearCookie())
			}
			writeJSONError(w, http.StatusUnauthorized, "Sign-in required", err.Error())
			return
		}
		next(w, r, sess)
	}
}

// handleSession reports, starts or ends the caller's session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sess, err := s.client.Sessions().FromRequest(r)
		writeJSON(w, http.StatusOK, sessionResponse(sess, err))

	case http.MethodPost:
		var req LoginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid JSON", err.Error())
			return
		}
		if req.Email == "" || req.Password == "" {
			writeJSONError(w, http.StatusBadRequest, "Email and password are required", "")
			return
		}

		sess, err := s.client.Sessions().Login(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, session.ErrInvalidCredentials) {
				writeJSONError(w, http.StatusUnauthorized, "Sign-in failed", err.Error())
				return
			}
			writeJSON(w, http.StatusInternalServerError, SessionResponse{State: session.StateOf(nil, err)})
			return
		}
		http.SetCookie(w, s.client.Sessions().Cookie(sess))
		writeJSON(w, http.StatusOK, sessionResponse(sess, nil))

	case http.MethodDelete:
		if sess, err := s.client.Sessions().FromRequest(r); err == nil {
			s.client.Sessions().Logout(sess.ID)
		}
		http.SetCookie(w, s.client.Sessions().ClearCookie())
		writeJSON(w, http.StatusOK, SessionResponse{State: session.StateNotAuthed})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func sessionResponse(sess *session.Session, err error) SessionResponse {
	resp := SessionResponse{State: session.StateOf(sess, err)}
	if sess != nil && err == nil {
		user := sess.User
		expires := sess.ExpiresAt
		resp.User = &user
		resp.ExpiresAt = &expires
	}
	return resp
}

// handleGate returns the current gate view.
func (s *Server) handleGate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.client.Monitor().View())
}

// handleGateStream streams the gate view as server-sent events: the
// current view first, then every change.
func (s *Server) handleGateStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	views := s.client.Monitor().Watch(r.Context())
	keepAlive := time.NewTicker(s.config.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case v, ok := <-views:
			if !ok {
				fmt.Fprintf(w, "event: done\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, _ := json.Marshal(v)
			fmt.Fprintf(w, "event: view\ndata: %s\n\n", data)
			flusher.Flush()

		case <-keepAlive.C:
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleToggle sends the command that flips the gate from its current
// status.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	env, err := s.client.Monitor().Toggle(r.Context(), sess.User.CommandUser())
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, commandResponse(env))
}

// handleCommand sends an explicit open, close or open&close command.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	typ, err := command.ParseType(req.Type)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Unknown command type", err.Error())
		return
	}

	var data map[string]any
	if typ == command.TypeCycle {
		data, err = command.CycleDataSeconds(int64(req.DelayInSeconds))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid delay", err.Error())
			return
		}
	}

	env, err := s.client.Sender().Send(r.Context(), sess.User.CommandUser(), typ, data)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, commandResponse(env))
}

// writeCommandError maps a send failure to a status. Store write failures
// are 502: the request was fine, the database was not.
func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gate.ErrStatusUnknown):
		writeJSONError(w, http.StatusConflict, "Gate status unknown", err.Error())
	case errors.Is(err, command.ErrInvalidType), errors.Is(err, command.ErrNoUser):
		writeJSONError(w, http.StatusBadRequest, "Invalid command", err.Error())
	default:
		s.logger.Warn("command write failed", "error", err)
		writeJSONError(w, http.StatusBadGateway, "Command not sent", err.Error())
	}
}

// handleCommands lists the commands sent from this client.
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h := s.client.History()
	if h == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "History disabled", "")
		return
	}

	q := history.Query{
		UserEmail: r.URL.Query().Get("user"),
		Outcome:   r.URL.Query().Get("outcome"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, "Invalid limit", v)
			return
		}
		q.Limit = n
	}

	entries, err := h.List(r.Context(), q)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Failed to read history", err.Error())
		return
	}
	if entries == nil {
		entries = []*history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
