// Package interactive provides the interactive command-line interface
// for relay-device.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/smartrelay/relay-go/pkg/document"
	"github.com/smartrelay/relay-go/pkg/inspect"
	"github.com/smartrelay/relay-go/pkg/interaction"
	"github.com/smartrelay/relay-go/pkg/log"
	"github.com/smartrelay/relay-go/pkg/service"
	"github.com/smartrelay/relay-go/pkg/settings"
	"github.com/smartrelay/relay-go/pkg/wire"
)

// Backend is the part of the service the console uses.
type Backend interface {
	Command(ctx context.Context, peer service.Peer, req *wire.Request) *wire.Response
	Snapshot() (*document.Object, error)
	Do(fn func(*settings.Settings) error) error
	Methods() []string
	AddSink(sink service.Sink) func()
}

var _ Backend = (*service.Service)(nil)

// DeviceInfo provides runtime details held outside the service.
type DeviceInfo interface {
	// ListenAddr returns the HTTP/WebSocket address.
	ListenAddr() string

	// ConnectionCount returns the number of WebSocket clients.
	ConnectionCount() int

	// Trace returns recent protocol events, oldest first, or nil when
	// tracing is off.
	Trace() []log.Event
}

// Console handles interactive mode for relay-device.
type Console struct {
	backend   Backend
	info      DeviceInfo
	formatter *inspect.Formatter
	rl        *readline.Instance
	out       io.Writer

	watch *watcher
}

// New creates a new interactive console.
func New(backend Backend, info DeviceInfo) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "relay> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	c := newConsole(backend, info, rl.Stdout())
	c.rl = rl
	return c, nil
}

func newConsole(backend Backend, info DeviceInfo, out io.Writer) *Console {
	return &Console{
		backend:   backend,
		info:      info,
		formatter: inspect.NewFormatter(),
		out:       out,
	}
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()
	defer c.stopWatch()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if !c.Execute(ctx, line) {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one command line. It returns false when the user asked to
// quit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "inspect", "i":
		c.cmdInspect(args)

	case "read", "r":
		c.cmdRead(ctx, args)

	case "write", "w":
		c.cmdWrite(ctx, args)

	case "relay":
		c.cmdRelay(ctx, args)

	case "call":
		c.cmdCall(ctx, args)

	case "state", "s":
		c.cmdState()

	case "dirty":
		c.cmdDirty()

	case "methods":
		fmt.Fprintf(c.out, "%s\n", strings.Join(c.backend.Methods(), ", "))

	case "status":
		c.cmdStatus()

	case "watch":
		c.cmdWatch(args)

	case "trace", "t":
		c.cmdTrace(args)

	case "quit", "exit", "q":
		return false

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Relay Device Commands:
  Inspection:
    inspect [path]     - Show the settings tree (or a subtree) with metadata
    state              - Show the full state including published values
    dirty              - List properties with unreported changes
    methods            - List available commands

  Control:
    read <path>        - Read a property value
    write <path> <val> - Write a property value
    relay <on|off>     - Switch the relay
    call <method>      - Invoke a command without parameters
    watch <on|off>     - Print update notifications as they are sent
    trace [count]      - Show recent protocol events

  Other:
    status             - Show listen address and connected clients
    help               - Show this help
    quit               - Exit`)
}

func (c *Console) cmdInspect(args []string) {
	var path string
	if len(args) > 0 {
		path = args[0]
	}

	err := c.backend.Do(func(s *settings.Settings) error {
		if path == "" {
			fmt.Fprint(c.out, c.formatter.FormatTree(s.Root()))
			return nil
		}
		leaves, err := inspect.NewInspector(s.Root()).Leaves(path)
		if err != nil {
			return err
		}
		fmt.Fprint(c.out, c.formatter.FormatLeaves(leaves))
		return nil
	})
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
}

func (c *Console) cmdDirty() {
	var paths []string
	_ = c.backend.Do(func(s *settings.Settings) error {
		paths = inspect.NewInspector(s.Root()).DirtyPaths()
		return nil
	})
	if len(paths) == 0 {
		fmt.Fprintln(c.out, "No pending changes")
		return
	}
	for _, p := range paths {
		fmt.Fprintf(c.out, "  %s\n", p)
	}
}

// cmdRead handles the read command.
func (c *Console) cmdRead(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: read <path>")
		fmt.Fprintln(c.out, "  Example: read test.int")
		return
	}

	params := document.New()
	_ = params.Set(interaction.ParamPath, args[0])
	result, ok := c.call(ctx, interaction.MethodRead, params)
	if !ok {
		return
	}
	v, _ := result.Get(interaction.ParamValue)
	fmt.Fprintf(c.out, "%s = %s\n", args[0], c.formatter.FormatValue(v, ""))
}

// cmdWrite handles the write command.
func (c *Console) cmdWrite(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: write <path> <value>")
		fmt.Fprintln(c.out, "  Example: write sys.name \"living room\"")
		return
	}

	params := document.New()
	_ = params.Set(interaction.ParamPath, args[0])
	if err := params.Set(interaction.ParamValue, inspect.ParseValue(strings.Join(args[1:], " "))); err != nil {
		fmt.Fprintf(c.out, "Invalid value: %v\n", err)
		return
	}
	if _, ok := c.call(ctx, interaction.MethodWrite, params); ok {
		fmt.Fprintln(c.out, "OK")
	}
}

func (c *Console) cmdRelay(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: relay <on|off>")
		return
	}

	var on bool
	switch strings.ToLower(args[0]) {
	case "on", "1", "true":
		on = true
	case "off", "0", "false":
	default:
		fmt.Fprintf(c.out, "Invalid relay state: %s\n", args[0])
		return
	}

	params := document.New()
	_ = params.Set("state", on)
	if _, ok := c.call(ctx, "relay", params); ok {
		fmt.Fprintln(c.out, "OK")
	}
}

func (c *Console) cmdCall(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: call <method>")
		return
	}
	result, ok := c.call(ctx, args[0], nil)
	if !ok {
		return
	}
	if result == nil || result.IsEmpty() {
		fmt.Fprintln(c.out, "OK")
		return
	}
	fmt.Fprint(c.out, c.formatter.FormatDocument(result))
}

func (c *Console) cmdState() {
	doc, err := c.backend.Snapshot()
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprint(c.out, c.formatter.FormatDocument(doc))
}

func (c *Console) cmdStatus() {
	if c.info == nil {
		fmt.Fprintln(c.out, "No transport")
		return
	}
	fmt.Fprintf(c.out, "Listening: %s\n", c.info.ListenAddr())
	fmt.Fprintf(c.out, "Clients:   %d\n", c.info.ConnectionCount())
}

func (c *Console) cmdWatch(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: watch <on|off>")
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		if c.watch != nil {
			fmt.Fprintln(c.out, "Already watching")
			return
		}
		c.watch = startWatcher(c.backend, c.out, c.formatter)
		fmt.Fprintln(c.out, "Watching updates")
	case "off":
		c.stopWatch()
		fmt.Fprintln(c.out, "Stopped watching")
	default:
		fmt.Fprintf(c.out, "Invalid watch state: %s\n", args[0])
	}
}

func (c *Console) stopWatch() {
	if c.watch != nil {
		c.watch.stop()
		c.watch = nil
	}
}

// call runs a command as the local peer and prints failures.
func (c *Console) call(ctx context.Context, method string, params *document.Object) (*document.Object, bool) {
	resp := c.backend.Command(ctx, service.LocalPeer, &wire.Request{ID: int64(1), Method: method, Params: params})
	if resp == nil {
		fmt.Fprintln(c.out, "Error: no response")
		return nil, false
	}
	if resp.Error != nil {
		fmt.Fprintf(c.out, "Error: %s (%d): %s\n", resp.Error.Code, int(resp.Error.Code), resp.Error.Message)
		return nil, false
	}
	return resp.Result, true
}
