package interactive

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smartrelay/relay-go/pkg/log"
)

// defaultTraceLines is how many events trace prints without an argument.
const defaultTraceLines = 20

func (c *Console) cmdTrace(args []string) {
	n := defaultTraceLines
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			fmt.Fprintln(c.out, "Usage: trace [count]")
			return
		}
		n = v
	}

	events := c.info.Trace()
	if events == nil {
		fmt.Fprintln(c.out, "Protocol trace is not enabled")
		return
	}
	if len(events) > n {
		events = events[len(events)-n:]
	}
	if len(events) == 0 {
		fmt.Fprintln(c.out, "(no events)")
		return
	}
	for _, e := range events {
		fmt.Fprintln(c.out, traceLine(e))
	}
}

// traceLine renders an event on one line: time, transport, direction,
// kind and the most useful details.
func traceLine(e log.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-9s %-3s %s", e.Timestamp.Format("15:04:05.000"),
		e.Transport.String(), e.Direction.String(), e.Kind())

	switch {
	case e.Message != nil:
		m := e.Message
		if m.Method != "" {
			fmt.Fprintf(&b, " %s", m.Method)
		}
		if m.ID != "" {
			fmt.Fprintf(&b, " id=%s", m.ID)
		}
		if m.Code != nil {
			fmt.Fprintf(&b, " %s", m.Code.String())
		}
	case e.StateChange != nil:
		fmt.Fprintf(&b, " %s %s->%s", e.StateChange.Entity.String(), e.StateChange.OldState, e.StateChange.NewState)
	case e.Snapshot != nil:
		fmt.Fprintf(&b, " %s", e.Snapshot.Reason)
	case e.Error != nil:
		fmt.Fprintf(&b, " %s", e.Error.Message)
	case e.Frame != nil:
		fmt.Fprintf(&b, " %d bytes", e.Frame.Size)
	}
	if e.ConnectionID != "" {
		fmt.Fprintf(&b, " [%s]", shortID(e.ConnectionID))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
