// Command gate-log views and analyzes gate event logs.
//
// gate-web and gate-cli write an event log when started with -event-log.
//
// Usage:
//
//	gate-log <command> [flags] <file.glog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSONL or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	gate-log view gate.glog
//
//	# View only commands sent by one user
//	gate-log view --category command --user ada@example.com gate.glog
//
//	# Export to CSV
//	gate-log export --format csv -o gate.csv gate.glog
//
//	# Keep one client run
//	gate-log filter --run 2f1c09e4 -o run.glog gate.glog
//
//	# Show statistics
//	gate-log stats gate.glog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gate-remote/gate-go/cmd/gate-log/commands"
)

const usage = `gate-log - Gate Event Log Analyzer

Usage:
  gate-log <command> [flags] <file.glog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSONL or CSV format
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "gate-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// newFlagSet creates a flag set with the shared event filters.
func newFlagSet(name, synopsis, flagsLine string) (*flag.FlagSet, *commands.FilterOptions) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `gate-log %s - %s

Usage:
  gate-log %s %s<file.glog>

Flags:
`, name, synopsis, name, flagsLine)
		fs.PrintDefaults()
	}

	opts := &commands.FilterOptions{}
	fs.StringVar(&opts.RunID, "run", "", "Filter by run ID")
	fs.StringVar(&opts.Source, "source", "", "Filter by source (store, monitor, command, session)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (snapshot, liveness, command, auth, error)")
	fs.StringVar(&opts.User, "user", "", "Filter by user email")
	fs.StringVar(&opts.Since, "since", "", "Keep events at or after this time (RFC3339)")
	fs.StringVar(&opts.Until, "until", "", "Keep events before this time (RFC3339)")
	return fs, opts
}

// parse parses args and returns the log file path.
func parse(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs, opts := newFlagSet("view", "View log file in human-readable format", "[flags] ")
	path := parse(fs, args)
	fail(commands.RunView(path, *opts, os.Stdout))
}

func runExport(args []string) {
	fs, opts := newFlagSet("export", "Export log file to JSONL or CSV format", "[flags] ")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := parse(fs, args)
	fail(commands.RunExport(path, *format, *output, *opts))
}

func runFilter(args []string) {
	fs, opts := newFlagSet("filter", "Filter log file and write to new file", "-o <out.glog> [flags] ")
	output := fs.String("o", "", "Output file (required)")
	path := parse(fs, args)
	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}
	fail(commands.RunFilter(path, *output, *opts, os.Stdout))
}

func runStats(args []string) {
	fs, opts := newFlagSet("stats", "Show statistics about the log file", "[flags] ")
	path := parse(fs, args)
	fail(commands.RunStats(path, *opts, os.Stdout))
}
