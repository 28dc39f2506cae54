// Package commands implements the gate-log CLI commands.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gate-remote/gate-go/pkg/log"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [run:id] SOURCE CATEGORY user
	ts := event.Timestamp.UTC().Format(timeLayout)
	fmt.Fprintf(w, "%s [run:%s] %-7s %s", ts, shortenID(event.RunID), event.Source, event.Category)
	if event.User != "" {
		fmt.Fprintf(w, " %s", event.User)
	}
	fmt.Fprintln(w)

	switch {
	case event.Snapshot != nil:
		formatSnapshotDetails(w, event.Snapshot)
	case event.Liveness != nil:
		formatLivenessDetails(w, event.Liveness)
	case event.Command != nil:
		formatCommandDetails(w, event.Command)
	case event.Auth != nil:
		formatAuthDetails(w, event.Auth)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenID returns the first 8 characters of an ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}

func formatSnapshotDetails(w io.Writer, snap *log.SnapshotEvent) {
	fmt.Fprintf(w, "  Path: %s\n", snap.Path)
	if snap.Value == "" {
		fmt.Fprintln(w, "  Value: (none)")
		return
	}
	fmt.Fprintf(w, "  Value: %s\n", snap.Value)
}

func formatLivenessDetails(w io.Writer, l *log.LivenessEvent) {
	state := "online"
	if !l.Online {
		state = "offline"
	}
	fmt.Fprintf(w, "  %s, showing %q", state, l.Displayed)
	if l.Status != "" && l.Status != l.Displayed {
		fmt.Fprintf(w, " (status %s)", l.Status)
	}
	fmt.Fprintln(w)
	if l.HeartbeatAge > 0 {
		fmt.Fprintf(w, "  Heartbeat age: %s\n", l.HeartbeatAge.Round(10*time.Millisecond))
	}
}

func formatCommandDetails(w io.Writer, c *log.CommandEvent) {
	fmt.Fprintf(w, "  %s %s", c.Type, c.ID)
	if c.Failed {
		fmt.Fprint(w, " (failed)")
	}
	fmt.Fprintln(w)
	if len(c.Data) > 0 {
		if data, err := json.Marshal(c.Data); err == nil {
			fmt.Fprintf(w, "  Data: %s\n", data)
		}
	}
}

func formatAuthDetails(w io.Writer, a *log.AuthEvent) {
	fmt.Fprintf(w, "  %s", a.Action)
	if a.SessionID != "" {
		fmt.Fprintf(w, " session %s", shortenID(a.SessionID))
	}
	fmt.Fprintln(w)
	if a.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", a.Reason)
	}
}

func formatErrorDetails(w io.Writer, e *log.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", e.Message)
	if e.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", e.Context)
	}
}

// RunView prints every event of path matching opts.
func RunView(path string, opts FilterOptions, output io.Writer) error {
	reader, err := open(path, opts)
	if err != nil {
		return err
	}
	defer reader.Close()

	return each(reader, func(event log.Event) error {
		formatEvent(output, event)
		return nil
	})
}
