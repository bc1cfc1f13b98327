// Command relay-log views and analyzes smart relay protocol log files.
//
// Log files are written by relay-device when started with -protocol-log.
//
// Usage:
//
//	relay-log <command> [flags] <file.rlog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON lines or CSV
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View only wire-layer events
//	relay-log view -layer wire device.rlog
//
//	# View MQTT traffic for the relay method
//	relay-log view -transport mqtt -method relay device.rlog
//
//	# Export to CSV
//	relay-log export -format csv -o device.csv device.rlog
//
//	# Filter by connection and save to new file
//	relay-log filter -conn-id abc12345 -o filtered.rlog device.rlog
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/smartrelay/relay-go/cmd/relay-log/commands"
)

const usage = `relay-log - Smart Relay Protocol Log Analyzer

Usage:
  relay-log <command> [flags] <file.rlog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON lines or CSV
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "relay-log <command> -help" for more information about a command.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprint(stderr, usage)
		return 1
	}

	cmd, args := args[0], args[1:]
	var err error
	switch cmd {
	case "view":
		err = runView(args, stdout, stderr)
	case "export":
		err = runExport(args, stdout, stderr)
	case "filter":
		err = runFilter(args, stdout, stderr)
	case "stats":
		err = runStats(args, stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(stderr, usage)
		return 1
	}

	switch {
	case err == nil:
		return 0
	case err == flag.ErrHelp:
		return 0
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

// newFlagSet creates a subcommand flag set with a usage header.
func newFlagSet(name, summary string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "relay-log %s - %s\n\nUsage:\n  relay-log %s [flags] <file.rlog>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}
	return fs
}

// filterFlags registers the filter flags shared by view, export and filter.
func filterFlags(fs *flag.FlagSet) *commands.FilterOptions {
	opts := &commands.FilterOptions{}
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Events at or after this time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Events before this time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, service)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (message, control, state, error, snapshot)")
	fs.StringVar(&opts.Transport, "transport", "", "Filter by transport (local, websocket, mqtt)")
	fs.StringVar(&opts.Method, "method", "", "Filter messages by method")
	return opts
}

// parseArgs parses the flags and returns the log file path.
func parseArgs(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return "", fmt.Errorf("log file path required")
	}
	return fs.Arg(0), nil
}

func runView(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("view", "View log file in human-readable format", stderr)
	opts := filterFlags(fs)

	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	filter, err := opts.Build()
	if err != nil {
		return err
	}
	return commands.RunView(path, filter, stdout)
}

func runExport(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("export", "Export log file to JSON lines or CSV", stderr)
	opts := filterFlags(fs)
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	filter, err := opts.Build()
	if err != nil {
		return err
	}
	return commands.RunExport(path, *format, *output, filter, stdout)
}

func runFilter(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("filter", "Filter log file and write to new file", stderr)
	opts := filterFlags(fs)
	output := fs.String("o", "", "Output file (required)")

	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	filter, err := opts.Build()
	if err != nil {
		return err
	}
	count, err := commands.RunFilter(path, *output, filter)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %d events to %s\n", count, *output)
	return nil
}

func runStats(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("stats", "Show statistics about the log file", stderr)
	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	return commands.RunStats(path, stdout)
}
