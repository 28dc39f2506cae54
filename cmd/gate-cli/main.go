// Command gate-cli is an interactive console for the gate remote.
//
// It signs in against the configured accounts, shows the live gate view
// and sends open, close, toggle and open&close commands.
//
// Usage:
//
//	gate-cli [flags]
//
// Flags are shared with gate-web; see -help. Logs go to stderr through
// the console so they do not break the prompt.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gate-remote/gate-go/cmd/gate-cli/interactive"
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
		fmt.Printf("gate-cli %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
		return 0
	}

	cfg, err := flags.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	console, err := interactive.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// Log through readline to avoid interfering with input.
	logger := slog.New(slog.NewTextHandler(console.Stdout(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	c, err := client.Open(ctx, cfg, client.Options{Logger: logger})
	if err != nil {
		console.Close()
		fmt.Fprintf(os.Stderr, "Error: failed to open client: %v\n", err)
		return 1
	}
	defer c.Close()

	console.Bind(c)
	console.Run(ctx, cancel)
	return 0
}
