package commands

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/smartrelay/relay-go/pkg/log"
)

// RunView prints every event matching filter in human-readable form.
func RunView(path string, filter log.Filter, output io.Writer) error {
	return forEach(path, filter, func(event log.Event) error {
		formatEvent(output, event)
		return nil
	})
}

// field is one indented "Label: value" line under an event header.
type field struct {
	label, value string
}

// formatEvent writes a header line followed by the event's fields and a
// blank line:
//
//	2026-01-28T10:15:32.123456Z [conn:abc12345] WEBSOCKET IN  WIRE REQUEST
//	  Method: read
func formatEvent(w io.Writer, event log.Event) {
	layer := event.Layer.String()
	if event.Category == log.CategoryControl {
		layer = "CTRL"
	}
	fmt.Fprintf(w, "%s [conn:%s] %-9s %-3s %s %s\n",
		event.Timestamp.UTC().Format(timestampLayout), shortenConnID(event.ConnectionID),
		event.Transport.String(), event.Direction.String(), layer, event.Kind())

	var fields []field
	if event.RemoteAddr != "" {
		fields = append(fields, field{"Remote", event.RemoteAddr})
	}
	fields = append(fields, eventFields(event)...)
	for _, f := range fields {
		fmt.Fprintf(w, "  %s: %s\n", f.label, f.value)
	}
	fmt.Fprintln(w)
}

func eventFields(event log.Event) []field {
	var fs []field
	add := func(label, value string) {
		if value != "" {
			fs = append(fs, field{label, value})
		}
	}

	switch {
	case event.Frame != nil:
		add("Size", strconv.Itoa(event.Frame.Size)+" bytes")
		add("Data", frameData(event.Frame))

	case event.Message != nil:
		m := event.Message
		add("ID", m.ID)
		add("Method", m.Method)
		if m.Type == log.MessageTypeResponse && m.Code != nil {
			add("Code", fmt.Sprintf("%s (%d)", m.Code.String(), int(*m.Code)))
		}
		if m.Type == log.MessageTypeResponse && m.ProcessingTime != nil {
			add("Duration", formatDuration(*m.ProcessingTime))
		}
		if m.Payload != nil {
			add("Payload", jsonText(m.Payload))
		}

	case event.StateChange != nil:
		sc := event.StateChange
		add("Entity", sc.Entity.String())
		if sc.OldState == "" {
			add("Transition", "-> "+sc.NewState)
		} else {
			add("Transition", sc.OldState+" -> "+sc.NewState)
		}
		add("Reason", sc.Reason)

	case event.ControlMsg != nil:
		if code := event.ControlMsg.CloseCode; code != nil {
			add("CloseCode", strconv.Itoa(*code))
		}

	case event.Snapshot != nil:
		add("Reason", event.Snapshot.Reason)
		add("State", jsonText(event.Snapshot.State))

	case event.Error != nil:
		e := event.Error
		add("Layer", e.Layer.String())
		add("Message", e.Message)
		if e.Code != nil {
			add("Code", strconv.Itoa(*e.Code))
		}
		add("Context", e.Context)
	}
	return fs
}

// frameData shows JSON frames as text and anything else as hex.
func frameData(frame *log.FrameEvent) string {
	if len(frame.Data) == 0 {
		return ""
	}
	s := hex.EncodeToString(frame.Data)
	if json.Valid(frame.Data) {
		s = string(frame.Data)
	}
	if frame.Truncated {
		s += " (truncated)"
	}
	return s
}

func jsonText(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// formatDuration prints d with three decimals in the largest unit below it.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%.3fus", float64(d)/float64(time.Microsecond))
	case d < time.Second:
		return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}
