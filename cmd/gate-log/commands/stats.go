package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/gate-remote/gate-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsBySource   map[log.Source]int
	EventsByCategory map[log.Category]int
	Runs             map[string]*RunSummary
	Commands         map[string]int
	FailedCommands   int
	Logins           int
	Denied           int
	OfflineSpans     int
	Errors           int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// RunSummary holds statistics for a single client run.
type RunSummary struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Users     map[string]struct{}
}

// RunStats analyzes the events of path matching opts and prints statistics.
func RunStats(path string, opts FilterOptions, w io.Writer) error {
	reader, err := open(path, opts)
	if err != nil {
		return err
	}
	defer reader.Close()

	stats := &Stats{
		EventsBySource:   make(map[log.Source]int),
		EventsByCategory: make(map[log.Category]int),
		Runs:             make(map[string]*RunSummary),
		Commands:         make(map[string]int),
	}
	if err := each(reader, stats.add); err != nil {
		return err
	}

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) error {
	s.TotalEvents++
	s.EventsBySource[event.Source]++
	s.EventsByCategory[event.Category]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	run, ok := s.Runs[event.RunID]
	if !ok {
		run = &RunSummary{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Users:     make(map[string]struct{}),
		}
		s.Runs[event.RunID] = run
	}
	run.Events++
	if event.Timestamp.Before(run.FirstSeen) {
		run.FirstSeen = event.Timestamp
	}
	if event.Timestamp.After(run.LastSeen) {
		run.LastSeen = event.Timestamp
	}
	if event.User != "" {
		run.Users[event.User] = struct{}{}
	}

	switch {
	case event.Command != nil:
		s.Commands[event.Command.Type]++
		if event.Command.Failed {
			s.FailedCommands++
		}
	case event.Auth != nil:
		switch event.Auth.Action {
		case log.AuthLogin:
			s.Logins++
		case log.AuthDenied:
			s.Denied++
		}
	case event.Liveness != nil:
		if !event.Liveness.Online {
			s.OfflineSpans++
		}
	case event.Error != nil:
		s.Errors++
	}
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Gate Event Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Source:")
	for _, src := range []log.Source{log.SourceStore, log.SourceMonitor, log.SourceCommand, log.SourceSession} {
		if count := stats.EventsBySource[src]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", src.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategorySnapshot, log.CategoryLiveness, log.CategoryCommand, log.CategoryAuth, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Commands) > 0 {
		fmt.Fprintln(w, "Commands:")
		types := make([]string, 0, len(stats.Commands))
		for typ := range stats.Commands {
			types = append(types, typ)
		}
		sort.Strings(types)
		for _, typ := range types {
			fmt.Fprintf(w, "  %-12s %d\n", typ+":", stats.Commands[typ])
		}
		if stats.FailedCommands > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", "failed:", stats.FailedCommands)
		}
		fmt.Fprintln(w)
	}

	if stats.Logins > 0 || stats.Denied > 0 {
		fmt.Fprintf(w, "Sign-ins: %d (denied: %d)\n", stats.Logins, stats.Denied)
	}
	if stats.OfflineSpans > 0 {
		fmt.Fprintf(w, "Offline transitions: %d\n", stats.OfflineSpans)
	}

	fmt.Fprintf(w, "Runs: %d\n", len(stats.Runs))
	if len(stats.Runs) > 0 {
		type runInfo struct {
			id    string
			stats *RunSummary
		}
		runs := make([]runInfo, 0, len(stats.Runs))
		for id, rs := range stats.Runs {
			runs = append(runs, runInfo{id, rs})
		}
		sort.Slice(runs, func(i, j int) bool {
			return runs[i].stats.FirstSeen.Before(runs[j].stats.FirstSeen)
		})

		for _, r := range runs {
			duration := r.stats.LastSeen.Sub(r.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenID(r.id), r.stats.Events, duration)
			if len(r.stats.Users) > 0 {
				users := make([]string, 0, len(r.stats.Users))
				for u := range r.stats.Users {
					users = append(users, u)
				}
				sort.Strings(users)
				fmt.Fprintf(w, "           Users: %v\n", users)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
