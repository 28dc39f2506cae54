package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gate-remote/gate-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.glog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

var testTime = time.Date(2026, 10, 14, 7, 30, 0, 0, time.UTC)

func sampleEvents() []log.Event {
	return []log.Event{
		{
			Timestamp: testTime,
			RunID:     "run-aaaa-1111",
			Source:    log.SourceStore,
			Category:  log.CategorySnapshot,
			Snapshot:  &log.SnapshotEvent{Path: "gate-controller/status/current_status", Value: `"Closed"`},
		},
		{
			Timestamp: testTime.Add(time.Second),
			RunID:     "run-aaaa-1111",
			Source:    log.SourceMonitor,
			Category:  log.CategoryLiveness,
			Liveness:  &log.LivenessEvent{Online: true, Status: "Closed", Displayed: "Closed", HeartbeatAge: 2 * time.Second},
		},
		{
			Timestamp: testTime.Add(2 * time.Second),
			RunID:     "run-aaaa-1111",
			Source:    log.SourceSession,
			Category:  log.CategoryAuth,
			User:      "ada@example.com",
			Auth:      &log.AuthEvent{Action: log.AuthLogin, SessionID: "sess-12345678"},
		},
		{
			Timestamp: testTime.Add(3 * time.Second),
			RunID:     "run-aaaa-1111",
			Source:    log.SourceCommand,
			Category:  log.CategoryCommand,
			User:      "ada@example.com",
			Command:   &log.CommandEvent{ID: "cmd-1", Type: "open&close", Data: map[string]any{"delay_in_seconds": 90}},
		},
		{
			Timestamp: testTime.Add(4 * time.Second),
			RunID:     "run-aaaa-1111",
			Source:    log.SourceCommand,
			Category:  log.CategoryError,
			User:      "ada@example.com",
			Error:     &log.ErrorEventData{Message: "store unavailable", Context: "gate-controller/commands"},
		},
		{
			Timestamp: testTime.Add(5 * time.Second),
			RunID:     "run-bbbb-2222",
			Source:    log.SourceSession,
			Category:  log.CategoryAuth,
			User:      "eve@example.com",
			Auth:      &log.AuthEvent{Action: log.AuthDenied, Reason: "invalid credentials"},
		},
	}
}

func TestFormatSnapshotEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[0])
	output := buf.String()

	if !strings.Contains(output, "2026-10-14T07:30:00.000000Z") {
		t.Errorf("expected timestamp, got: %s", output)
	}
	if !strings.Contains(output, "[run:run-aaaa]") {
		t.Errorf("expected shortened run ID, got: %s", output)
	}
	if !strings.Contains(output, "STORE") || !strings.Contains(output, "SNAPSHOT") {
		t.Errorf("expected source and category, got: %s", output)
	}
	if !strings.Contains(output, `Value: "Closed"`) {
		t.Errorf("expected value, got: %s", output)
	}
}

func TestFormatEmptySnapshot(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, log.Event{
		Timestamp: testTime,
		Category:  log.CategorySnapshot,
		Snapshot:  &log.SnapshotEvent{Path: "gate-controller/program-status"},
	})
	output := buf.String()

	if !strings.Contains(output, "[run:-]") {
		t.Errorf("expected placeholder run ID, got: %s", output)
	}
	if !strings.Contains(output, "Value: (none)") {
		t.Errorf("expected empty value, got: %s", output)
	}
}

func TestFormatLivenessEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, log.Event{
		Timestamp: testTime,
		Source:    log.SourceMonitor,
		Category:  log.CategoryLiveness,
		Liveness:  &log.LivenessEvent{Online: false, Status: "Open", Displayed: "Offline", HeartbeatAge: 90 * time.Second},
	})
	output := buf.String()

	if !strings.Contains(output, `offline, showing "Offline" (status Open)`) {
		t.Errorf("expected liveness line, got: %s", output)
	}
	if !strings.Contains(output, "Heartbeat age: 1m30s") {
		t.Errorf("expected heartbeat age, got: %s", output)
	}
}

func TestFormatCommandEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[3])
	output := buf.String()

	if !strings.Contains(output, "ada@example.com") {
		t.Errorf("expected user, got: %s", output)
	}
	if !strings.Contains(output, "open&close cmd-1") {
		t.Errorf("expected command line, got: %s", output)
	}
	if !strings.Contains(output, `Data: {"delay_in_seconds":90}`) {
		t.Errorf("expected data, got: %s", output)
	}
}

func TestFormatFailedCommand(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, log.Event{
		Timestamp: testTime,
		Source:    log.SourceCommand,
		Category:  log.CategoryCommand,
		Command:   &log.CommandEvent{ID: "cmd-2", Type: "open", Failed: true},
	})

	if !strings.Contains(buf.String(), "open cmd-2 (failed)") {
		t.Errorf("expected failed marker, got: %s", buf.String())
	}
}

func TestFormatAuthEvents(t *testing.T) {
	events := sampleEvents()

	var buf bytes.Buffer
	formatEvent(&buf, events[2])
	if !strings.Contains(buf.String(), "LOGIN session sess-123") {
		t.Errorf("expected login line, got: %s", buf.String())
	}

	buf.Reset()
	formatEvent(&buf, events[5])
	if !strings.Contains(buf.String(), "DENIED") || !strings.Contains(buf.String(), "Reason: invalid credentials") {
		t.Errorf("expected denial, got: %s", buf.String())
	}
}

func TestFormatErrorEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[4])
	output := buf.String()

	if !strings.Contains(output, "Message: store unavailable") {
		t.Errorf("expected message, got: %s", output)
	}
	if !strings.Contains(output, "Context: gate-controller/commands") {
		t.Errorf("expected context, got: %s", output)
	}
}

func TestRunView(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, FilterOptions{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	if got := strings.Count(buf.String(), "[run:"); got != 6 {
		t.Errorf("expected 6 events, got %d", got)
	}
}

func TestRunViewFiltered(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, FilterOptions{Category: "auth"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()

	if got := strings.Count(output, "[run:"); got != 2 {
		t.Errorf("expected 2 auth events, got %d", got)
	}
	if strings.Contains(output, "SNAPSHOT") {
		t.Errorf("unexpected snapshot in output: %s", output)
	}
}

func TestRunViewMissingFile(t *testing.T) {
	var buf bytes.Buffer
	err := RunView(filepath.Join(t.TempDir(), "missing.glog"), FilterOptions{}, &buf)
	if err == nil {
		t.Error("expected error for missing file")
	}
}
