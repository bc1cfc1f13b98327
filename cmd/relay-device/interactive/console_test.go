package interactive

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartrelay/relay-go/pkg/document"
	"github.com/smartrelay/relay-go/pkg/interaction"
	"github.com/smartrelay/relay-go/pkg/log"
	"github.com/smartrelay/relay-go/pkg/service"
	"github.com/smartrelay/relay-go/pkg/wire"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type fakeInfo struct {
	events []log.Event
}

func (fakeInfo) ListenAddr() string   { return "127.0.0.1:8080" }
func (fakeInfo) ConnectionCount() int { return 2 }
func (f fakeInfo) Trace() []log.Event { return f.events }

func newTestConsole(t *testing.T) (*Console, *service.Service, *syncBuffer) {
	t.Helper()
	cfg := service.DefaultConfig()
	cfg.Settings.MinInterval = 0
	svc, err := service.New(cfg)
	require.NoError(t, err)

	require.NoError(t, svc.RegisterCommand("relay", func(params *document.Object, b *document.Builder) interaction.Result {
		on, err := interaction.BoolParam(params, "state")
		if err != nil {
			return interaction.Failure(wire.InvalidParams, err)
		}
		if err := svc.Publish("relay", on); err != nil {
			return interaction.Failure(wire.InternalError, err)
		}
		return interaction.Success(nil)
	}))

	out := &syncBuffer{}
	return newConsole(svc, fakeInfo{}, out), svc, out
}

func TestConsoleReadWrite(t *testing.T) {
	c, _, out := newTestConsole(t)
	ctx := context.Background()

	assert.True(t, c.Execute(ctx, "write test.int 42"))
	assert.Equal(t, "OK\n", out.String())

	out.Reset()
	c.Execute(ctx, "read test.int")
	assert.Equal(t, "test.int = 42\n", out.String())

	out.Reset()
	c.Execute(ctx, `w sys.name "living room"`)
	c.Execute(ctx, "r sys.name")
	assert.Equal(t, "OK\nsys.name = \"living room\"\n", out.String())
}

func TestConsoleWriteErrors(t *testing.T) {
	c, _, out := newTestConsole(t)
	ctx := context.Background()

	c.Execute(ctx, "write test.int -1")
	assert.Contains(t, out.String(), "Error:")
	assert.Contains(t, out.String(), "-32602")

	out.Reset()
	c.Execute(ctx, "write sys.version 2.0")
	assert.Contains(t, out.String(), "Error:")

	out.Reset()
	c.Execute(ctx, "write test.int")
	assert.Contains(t, out.String(), "Usage: write")

	out.Reset()
	c.Execute(ctx, "read")
	assert.Contains(t, out.String(), "Usage: read")
}

func TestConsoleRelay(t *testing.T) {
	c, svc, out := newTestConsole(t)
	ctx := context.Background()

	c.Execute(ctx, "relay on")
	assert.Equal(t, "OK\n", out.String())
	v, ok := svc.Published("relay")
	require.True(t, ok)
	assert.Equal(t, true, v)

	out.Reset()
	c.Execute(ctx, "relay maybe")
	assert.Equal(t, "Invalid relay state: maybe\n", out.String())
}

func TestConsoleInspect(t *testing.T) {
	c, _, out := newTestConsole(t)
	ctx := context.Background()

	c.Execute(ctx, "inspect")
	tree := out.String()
	assert.True(t, strings.HasPrefix(tree, "sys:\n"))
	assert.Contains(t, tree, `  name = "smartrelay" (string, RW)`)
	assert.Contains(t, tree, "  uptime = 0 s (int, R, 0..)")
	assert.Contains(t, tree, `  mode = "off" (string, RW, off|on|auto)`)

	out.Reset()
	c.Execute(ctx, "inspect test.bool")
	assert.Equal(t, "  test.bool = false (bool, RW)\n", out.String())

	out.Reset()
	c.Execute(ctx, "inspect nope")
	assert.Contains(t, out.String(), "Error:")
}

func TestConsoleDirty(t *testing.T) {
	c, svc, out := newTestConsole(t)
	ctx := context.Background()

	c.Execute(ctx, "dirty")
	assert.Equal(t, "No pending changes\n", out.String())

	c.Execute(ctx, "write test.bool true")
	out.Reset()
	c.Execute(ctx, "dirty")
	assert.Equal(t, "  test.bool\n", out.String())

	svc.Tick()
	out.Reset()
	c.Execute(ctx, "dirty")
	assert.Equal(t, "No pending changes\n", out.String())
}

func TestConsoleStateAndCall(t *testing.T) {
	c, _, out := newTestConsole(t)
	ctx := context.Background()

	c.Execute(ctx, "relay off")
	out.Reset()
	c.Execute(ctx, "state")
	state := out.String()
	assert.True(t, strings.HasPrefix(state, "sys:\n  name: \"smartrelay\"\n"))
	assert.True(t, strings.HasSuffix(state, "relay: false\n"))

	out.Reset()
	c.Execute(ctx, "call nope")
	assert.Contains(t, out.String(), "-32601")

	out.Reset()
	c.Execute(ctx, "methods")
	assert.Contains(t, out.String(), "read")
	assert.Contains(t, out.String(), "relay")
}

func TestConsoleStatusAndQuit(t *testing.T) {
	c, _, out := newTestConsole(t)
	ctx := context.Background()

	c.Execute(ctx, "status")
	assert.Equal(t, "Listening: 127.0.0.1:8080\nClients:   2\n", out.String())

	out.Reset()
	assert.True(t, c.Execute(ctx, "bogus"))
	assert.Contains(t, out.String(), "Unknown command: bogus")

	assert.True(t, c.Execute(ctx, "   "))
	assert.False(t, c.Execute(ctx, "quit"))
	assert.False(t, c.Execute(ctx, "EXIT"))
}

func TestConsoleWatch(t *testing.T) {
	c, svc, out := newTestConsole(t)
	ctx := context.Background()

	c.Execute(ctx, "watch on")
	assert.Equal(t, 1, svc.SinkCount())

	c.Execute(ctx, "write test.mode auto")
	svc.Tick()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[update]\ntest:\n  mode: \"auto\"\n")
	}, 2*time.Second, 5*time.Millisecond)

	c.Execute(ctx, "watch off")
	assert.Equal(t, 0, svc.SinkCount())
	assert.Nil(t, c.watch)
}

func TestConsoleTrace(t *testing.T) {
	c, svc, out := newTestConsole(t)
	ctx := context.Background()

	c.Execute(ctx, "trace")
	assert.Equal(t, "Protocol trace is not enabled\n", out.String())

	at := time.Date(2026, 3, 1, 12, 30, 15, 250_000_000, time.UTC)
	code := wire.NoError
	events := []log.Event{
		{
			Timestamp: at, ConnectionID: "0123456789abcdef", Transport: log.TransportWebSocket,
			Direction: log.DirectionIn, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Type: log.MessageTypeRequest, ID: "7", Method: "read"},
		},
		{
			Timestamp: at, ConnectionID: "0123456789abcdef", Transport: log.TransportWebSocket,
			Direction: log.DirectionOut, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Type: log.MessageTypeResponse, ID: "7", Code: &code},
		},
		{
			Timestamp: at, Transport: log.TransportMQTT, Direction: log.DirectionOut,
			Category:    log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityBridge, OldState: "down", NewState: "up"},
		},
	}

	traced := &syncBuffer{}
	c = newConsole(svc, fakeInfo{events: events}, traced)

	c.Execute(ctx, "trace")
	lines := strings.Split(strings.TrimSpace(traced.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "12:30:15.250 WEBSOCKET IN  REQUEST read id=7 [01234567]", lines[0])
	assert.Contains(t, lines[1], "RESPONSE id=7")
	assert.Contains(t, lines[2], "State BRIDGE down->up")
	assert.NotContains(t, lines[2], "[")

	traced.Reset()
	c.Execute(ctx, "trace 1")
	assert.Equal(t, 1, strings.Count(traced.String(), "\n"))
	assert.Contains(t, traced.String(), "BRIDGE")

	traced.Reset()
	c.Execute(ctx, "t 0")
	assert.Equal(t, "Usage: trace [count]\n", traced.String())

	traced.Reset()
	c = newConsole(svc, fakeInfo{events: []log.Event{}}, traced)
	c.Execute(ctx, "trace")
	assert.Equal(t, "(no events)\n", traced.String())
}
