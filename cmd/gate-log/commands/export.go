package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/gate-remote/gate-go/pkg/log"
)

// record is the JSONL form of an event. Enums are written by name.
type record struct {
	Timestamp time.Time           `json:"timestamp"`
	RunID     string              `json:"runId,omitempty"`
	Source    string              `json:"source"`
	Category  string              `json:"category"`
	User      string              `json:"user,omitempty"`
	Snapshot  *log.SnapshotEvent  `json:"snapshot,omitempty"`
	Liveness  *log.LivenessEvent  `json:"liveness,omitempty"`
	Command   *log.CommandEvent   `json:"command,omitempty"`
	Auth      *authRecord         `json:"auth,omitempty"`
	Error     *log.ErrorEventData `json:"error,omitempty"`
}

type authRecord struct {
	Action    string `json:"action"`
	SessionID string `json:"sessionId,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func toRecord(e log.Event) record {
	r := record{
		Timestamp: e.Timestamp.UTC(),
		RunID:     e.RunID,
		Source:    e.Source.String(),
		Category:  e.Category.String(),
		User:      e.User,
		Snapshot:  e.Snapshot,
		Liveness:  e.Liveness,
		Command:   e.Command,
		Error:     e.Error,
	}
	if e.Auth != nil {
		r.Auth = &authRecord{
			Action:    e.Auth.Action.String(),
			SessionID: e.Auth.SessionID,
			Reason:    e.Auth.Reason,
		}
	}
	return r
}

// RunExport exports the events of path matching opts in format ("jsonl"
// or "csv") to output, or to stdout when output is empty.
func RunExport(path, format, output string, opts FilterOptions) error {
	var export func(*log.Reader, io.Writer) error
	switch format {
	case "jsonl":
		export = exportJSONL
	case "csv":
		export = exportCSV
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := open(path, opts)
	if err != nil {
		return err
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return export(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	return each(reader, func(event log.Event) error {
		if err := encoder.Encode(toRecord(event)); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return nil
	})
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"timestamp", "run_id", "source", "category", "user", "subject", "detail", "failed"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	err := each(reader, func(event log.Event) error {
		subject, detail, failed := csvDetails(event)
		row := []string{
			event.Timestamp.UTC().Format(timeLayout),
			event.RunID,
			event.Source.String(),
			event.Category.String(),
			event.User,
			subject,
			detail,
			strconv.FormatBool(failed),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// csvDetails flattens the payload into a subject and a detail column.
func csvDetails(e log.Event) (subject, detail string, failed bool) {
	switch {
	case e.Snapshot != nil:
		return e.Snapshot.Path, e.Snapshot.Value, false
	case e.Liveness != nil:
		return e.Liveness.Displayed, strconv.FormatBool(e.Liveness.Online), false
	case e.Command != nil:
		return e.Command.Type, e.Command.ID, e.Command.Failed
	case e.Auth != nil:
		return e.Auth.Action.String(), e.Auth.Reason, e.Auth.Action == log.AuthDenied
	case e.Error != nil:
		return e.Error.Context, e.Error.Message, true
	}
	return "", "", false
}
