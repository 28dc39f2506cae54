// Command gate-web serves the gate remote over HTTP.
//
// It offers:
//   - REST API for the gate view, sign-in and commands
//   - Server-sent events for live view updates
//   - Simple embedded web UI
//   - SQLite history of the commands sent from this client
//
// Usage:
//
//	gate-web [flags]
//
// Flags:
//
//	-config string     YAML config file
//	-env string        Environment file loaded if present (default ".env")
//	-store string      Store backend: memory, firebase (default "memory")
//	-store-url string  Realtime database URL
//	-addr string       HTTP listen address (default ":8080")
//	-history string    SQLite command history path (default "./gate-history.db")
//	-event-log string  Event log file (.glog)
//	-tick duration     Liveness re-evaluation interval (default 100ms)
//	-threshold duration Heartbeat staleness limit (default 5s)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Serve against a Firebase database, token from GATE_STORE_AUTH
//	gate-web -store firebase -store-url https://my-gate.firebaseio.com
//
//	# Use a config file and an in-memory history
//	gate-web -config gate.yaml -history :memory:
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gate-remote/gate-go/pkg/client"
	"github.com/gate-remote/gate-go/pkg/config"
)

// Version information - set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "dev"
	GitCommit = "unknown"
)

var showVersion = flag.Bool("version", false, "Show version information")

func main() {
	os.Exit(run())
}

func run() int {
	flags := config.NewFlags(flag.CommandLine)
	flag.Parse()

	if *showVersion {
		fmt.Printf("gate-web %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
		return 0
	}

	cfg, err := flags.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Open(ctx, cfg, client.Options{Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open client: %v\n", err)
		return 1
	}
	defer c.Close()

	srv := NewServer(ServerConfig{Addr: cfg.HTTP.Addr, Version: Version}, c, logger)

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if port, err := listenPort(ln.Addr()); err == nil {
		if err := c.Advertise(port); err != nil {
			logger.Warn("mdns advertisement failed", "error", err)
		}
	}

	logger.Info("gate-web listening", "addr", ln.Addr().String(), "backend", cfg.Store.Backend)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Error: server failed: %v\n", err)
			return 1
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}
	return 0
}

func listenPort(addr net.Addr) (uint16, error) {
	_, p, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}
