package main

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gate-remote/gate-go/pkg/client"
	"github.com/gate-remote/gate-go/pkg/version"
)

//go:embed static/*
var staticFiles embed.FS

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Addr    string
	Version string

	// KeepAlive is the SSE comment interval. Default: 15 seconds.
	KeepAlive time.Duration
}

// Server is the HTTP front end of a gate client.
type Server struct {
	config ServerConfig
	client *client.Client
	logger *slog.Logger
	mux    *http.ServeMux
	server *http.Server
}

// NewServer creates a server for c.
func NewServer(cfg ServerConfig, c *client.Client, logger *slog.Logger) *Server {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 15 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		config: cfg,
		client: c,
		logger: logger.With("component", "http"),
		mux:    http.NewServeMux(),
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/info", s.handleInfo)

	// Identity
	s.mux.HandleFunc("/api/v1/session", s.handleSession)

	// Gate
	s.mux.HandleFunc("/api/v1/gate", s.handleGate)
	s.mux.HandleFunc("/api/v1/gate/stream", s.handleGateStream)
	s.mux.HandleFunc("/api/v1/gate/toggle", s.requireSession(s.handleToggle))
	s.mux.HandleFunc("/api/v1/gate/commands", s.requireSession(s.handleCommand))

	// Local history
	s.mux.HandleFunc("/api/v1/commands", s.requireSession(s.handleCommands))

	// Static files and SPA
	s.mux.HandleFunc("/", s.handleStatic)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	version := s.config.Version
	if version == "" {
		version = "dev"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version,
	})
}

// handleInfo returns server information.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := s.client.Config()
	resp := InfoResponse{
		Version:    s.config.Version,
		APIVersion: version.Current,
		RunID:      s.client.RunID(),
		Backend:    cfg.Store.Backend,
		Online:     s.client.Monitor().View().Online,
		Sessions:   s.client.Sessions().Count(),
	}
	if h := s.client.History(); h != nil {
		if stats, err := h.Stats(r.Context()); err == nil {
			resp.Commands = stats.Total
			resp.FailedCommands = stats.Failed
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleStatic serves static files and the SPA.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	filePath := strings.TrimPrefix(path, "/")

	file, err := staticFS.Open(filePath)
	if err != nil {
		// Fall back to index.html for SPA routing
		filePath = "index.html"
	} else {
		file.Close()
	}

	switch {
	case strings.HasSuffix(filePath, ".html"):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case strings.HasSuffix(filePath, ".css"):
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
	case strings.HasSuffix(filePath, ".js"):
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	}

	http.ServeFileFS(w, r, staticFS, filePath)
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.server.Serve(ln)
}

// Shutdown stops the gate monitor, which ends open event streams, then
// waits for the remaining requests.
func (s *Server) Shutdown(ctx context.Context) error {
	_ = s.client.Monitor().Close()
	return s.server.Shutdown(ctx)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}
