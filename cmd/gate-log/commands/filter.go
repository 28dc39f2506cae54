package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gate-remote/gate-go/pkg/log"
)

// FilterOptions are the event selection flags shared by every command.
type FilterOptions struct {
	RunID    string
	Source   string
	Category string
	User     string
	Since    string
	Until    string
}

// Build converts the flag values into a log.Filter.
func (o FilterOptions) Build() (log.Filter, error) {
	filter := log.Filter{
		RunID: o.RunID,
		User:  o.User,
	}

	if o.Source != "" {
		s, err := parseSource(o.Source)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Source = &s
	}

	if o.Category != "" {
		c, err := parseCategory(o.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}

	if o.Since != "" {
		t, err := time.Parse(time.RFC3339, o.Since)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid since format: %w", err)
		}
		filter.Since = &t
	}

	if o.Until != "" {
		t, err := time.Parse(time.RFC3339, o.Until)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid until format: %w", err)
		}
		filter.Until = &t
	}

	return filter, nil
}

// parseSource parses a source name (case-insensitive).
func parseSource(s string) (log.Source, error) {
	if src, ok := log.ParseSource(strings.ToUpper(s)); ok {
		return src, nil
	}
	return 0, fmt.Errorf("invalid source: %s (must be store, monitor, command, or session)", s)
}

// parseCategory parses a category name (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	if c, ok := log.ParseCategory(strings.ToUpper(s)); ok {
		return c, nil
	}
	return 0, fmt.Errorf("invalid category: %s (must be snapshot, liveness, command, auth, or error)", s)
}

// open opens path with the filter built from opts.
func open(path string, opts FilterOptions) (*log.Reader, error) {
	filter, err := opts.Build()
	if err != nil {
		return nil, err
	}
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return reader, nil
}

// each calls fn for every event of reader.
func each(reader *log.Reader, fn func(log.Event) error) error {
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// RunFilter writes the events of path matching opts to output.
func RunFilter(path, output string, opts FilterOptions, w io.Writer) error {
	reader, err := open(path, opts)
	if err != nil {
		return err
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	err = each(reader, func(event log.Event) error {
		logger.Log(event)
		count++
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", count, output)
	return nil
}
