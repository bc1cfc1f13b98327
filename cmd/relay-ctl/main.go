// Command relay-ctl finds smart relays on the network and talks to them.
//
// Usage:
//
//	relay-ctl <command> [flags] [args]
//
// Commands:
//
//	discover                     List relays advertised via mDNS
//	state                        Print the state snapshot sent on connect
//	read <path>                  Read a property or subtree
//	write <path> <value>         Write a property
//	call <method> [key=value]... Invoke a method
//	watch                        Print notifications until interrupted
//
// Without -addr the relay is located via mDNS, by -name or the first one
// found.
//
// Examples:
//
//	# Switch the relay named "garage" on
//	relay-ctl call -name garage relay state=true
//
//	# Follow updates from a relay at a known address
//	relay-ctl watch -addr 192.168.1.40:8080
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/smartrelay/relay-go/pkg/wire"
)

const usage = `relay-ctl - Smart Relay Controller

Usage:
  relay-ctl <command> [flags] [args]

Commands:
  discover                       List relays advertised via mDNS
  state                          Print the state snapshot sent on connect
  read <path>                    Read a property or subtree
  write <path> <value>           Write a property
  call <method> [key=value]...   Invoke a method
  watch                          Print notifications until interrupted

Use "relay-ctl <command> -help" for the flags of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// command describes one subcommand: its argument synopsis, how many
// positional arguments it needs at least and at most (-1 for no limit),
// and what it does with a connected session.
type command struct {
	synopsis string
	minArgs  int
	maxArgs  int
	run      func(ctx context.Context, c *invocation) error
}

// invocation is a parsed command line.
type invocation struct {
	target  target
	limit   int
	args    []string
	stdout  io.Writer
	logger  *slog.Logger
	session *session
	connect *wire.Notification
}

var commands = map[string]command{
	"state": {"", 0, 0, func(_ context.Context, c *invocation) error {
		runState(c.connect, c.stdout)
		return nil
	}},
	"read": {"<path>", 1, 1, func(ctx context.Context, c *invocation) error {
		return runRead(ctx, c.session, c.args[0], c.stdout)
	}},
	"write": {"<path> <value>", 2, 2, func(ctx context.Context, c *invocation) error {
		return runWrite(ctx, c.session, c.args[0], c.args[1], c.stdout)
	}},
	"call": {"<method> [key=value]...", 1, -1, func(ctx context.Context, c *invocation) error {
		return runCall(ctx, c.session, c.args[0], c.args[1:], c.stdout)
	}},
	"watch": {"", 0, 0, func(ctx context.Context, c *invocation) error {
		return runWatch(ctx, c.session, c.limit, c.stdout)
	}},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprint(stderr, usage)
		return 1
	}

	name, args := args[0], args[1:]
	var err error
	switch name {
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	case "discover":
		err = runDiscoverCommand(ctx, args, stdout, stderr)
	default:
		cmd, ok := commands[name]
		if !ok {
			fmt.Fprintf(stderr, "Unknown command: %s\n", name)
			fmt.Fprint(stderr, usage)
			return 1
		}
		err = runSessionCommand(ctx, name, cmd, args, stdout, stderr)
	}

	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return 0
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func newFlagSet(name, synopsis string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage:\n  relay-ctl %s [flags] %s\n\nFlags:\n", name, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

func newLogger(verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func runDiscoverCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("discover", "", stderr)
	var t target
	t.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	_, err := runDiscover(ctx, newBrowser(t.iface, t.timeout), stdout)
	return err
}

func runSessionCommand(ctx context.Context, name string, cmd command, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet(name, cmd.synopsis, stderr)
	inv := &invocation{stdout: stdout}
	inv.target.register(fs)
	verbose := fs.Bool("v", false, "Log connection details to stderr")
	if name == "watch" {
		fs.IntVar(&inv.limit, "count", 0, "Stop after this many notifications (0 = never)")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	inv.args = fs.Args()
	if len(inv.args) < cmd.minArgs || (cmd.maxArgs >= 0 && len(inv.args) > cmd.maxArgs) {
		fs.Usage()
		return fmt.Errorf("%s: wrong number of arguments", name)
	}
	inv.logger = newLogger(*verbose, stderr)

	lookupCtx, cancel := context.WithTimeout(ctx, inv.target.timeout)
	url, err := inv.target.url(lookupCtx)
	if err != nil {
		cancel()
		return err
	}
	s, connect, err := dial(lookupCtx, url, inv.target.cbor, inv.logger)
	cancel()
	if err != nil {
		return err
	}
	defer s.Close()
	inv.session, inv.connect = s, connect
	s.client.SetTimeout(inv.target.timeout)
	return cmd.run(ctx, inv)
}
