package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartrelay/relay-go/pkg/log"
	"github.com/smartrelay/relay-go/pkg/wire"
)

var testTime = time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.rlog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()
	return path
}

// exchange returns a request/response pair for method on conn.
func exchange(conn string, transport log.Transport, id, method string, code wire.ErrorCode, elapsed time.Duration) []log.Event {
	return []log.Event{
		{
			Timestamp:    testTime,
			ConnectionID: conn,
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Transport:    transport,
			Message: &log.MessageEvent{
				Type:    log.MessageTypeRequest,
				ID:      id,
				Method:  method,
				Payload: map[string]any{"path": "test.int"},
			},
		},
		{
			Timestamp:    testTime.Add(elapsed),
			ConnectionID: conn,
			Direction:    log.DirectionOut,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Transport:    transport,
			Message: &log.MessageEvent{
				Type:           log.MessageTypeResponse,
				ID:             id,
				Code:           &code,
				ProcessingTime: &elapsed,
			},
		},
	}
}

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	events, err := log.ReadAll(path, log.Filter{})
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return events
}

func TestFormatFrameEvent(t *testing.T) {
	event := log.Event{
		Timestamp:    testTime,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionOut,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Transport:    log.TransportWebSocket,
		RemoteAddr:   "192.168.1.20:51234",
		Frame: &log.FrameEvent{
			Size: 27,
			Data: []byte(`{"jsonrpc":"2.0","id":1}`),
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.123456Z",
		"[conn:abc12345]",
		"WEBSOCKET",
		"OUT",
		"TRANSPORT Frame",
		"Remote: 192.168.1.20:51234",
		"Size: 27 bytes",
		`Data: {"jsonrpc":"2.0","id":1}`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestFormatBinaryFrameAsHex(t *testing.T) {
	event := log.Event{
		Timestamp: testTime,
		Layer:     log.LayerTransport,
		Frame:     &log.FrameEvent{Size: 4096, Data: []byte{0xa1, 0x01, 0x02}, Truncated: true},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)

	if !strings.Contains(buf.String(), "Data: a10102 (truncated)") {
		t.Errorf("expected hex data, got:\n%s", buf.String())
	}
}

func TestFormatResponseEvent(t *testing.T) {
	code := wire.InvalidParams
	elapsed := 1500 * time.Microsecond
	event := log.Event{
		Timestamp:    testTime,
		ConnectionID: "conn-1",
		Direction:    log.DirectionOut,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Transport:    log.TransportMQTT,
		Message: &log.MessageEvent{
			Type:           log.MessageTypeResponse,
			ID:             "7",
			Code:           &code,
			Payload:        "value out of range",
			ProcessingTime: &elapsed,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"MQTT",
		"WIRE RESPONSE",
		"ID: 7",
		"Code: INVALID_PARAMS (-32602)",
		"Duration: 1.500ms",
		`Payload: "value out of range"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestFormatStateAndSnapshot(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, log.Event{
		Timestamp: testTime,
		Layer:     log.LayerService,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityBridge,
			OldState: "DISCONNECTED",
			NewState: "CONNECTED",
			Reason:   "broker reachable",
		},
	})
	formatEvent(&buf, log.Event{
		Timestamp: testTime,
		Layer:     log.LayerService,
		Category:  log.CategorySnapshot,
		Snapshot: &log.SnapshotEvent{
			Reason: "connect",
			State:  map[string]any{"relay": true},
		},
	})
	output := buf.String()

	for _, want := range []string{
		"Entity: BRIDGE",
		"DISCONNECTED -> CONNECTED",
		"Reason: broker reachable",
		"SERVICE Snapshot",
		"Reason: connect",
		`State: {"relay":true}`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestFormatControlUsesCtrlLabel(t *testing.T) {
	closeCode := 1000
	var buf bytes.Buffer
	formatEvent(&buf, log.Event{
		Timestamp:  testTime,
		Layer:      log.LayerTransport,
		Category:   log.CategoryControl,
		ControlMsg: &log.ControlMsgEvent{Type: log.ControlMsgClose, CloseCode: &closeCode},
	})

	if !strings.Contains(buf.String(), "CTRL CLOSE") {
		t.Errorf("expected CTRL CLOSE, got:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "CloseCode: 1000") {
		t.Errorf("expected close code, got:\n%s", buf.String())
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Nanosecond, "0.500us"},
		{1500 * time.Microsecond, "1.500ms"},
		{2 * time.Second, "2.000s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestRunViewAppliesFilter(t *testing.T) {
	events := append(
		exchange("conn-ws", log.TransportWebSocket, "1", "read", wire.NoError, time.Millisecond),
		exchange("conn-mqtt", log.TransportMQTT, "2", "relay", wire.NoError, time.Millisecond)...,
	)
	path := createTestLogFile(t, events)

	filter, err := FilterOptions{Transport: "mqtt", Direction: "in"}.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var buf bytes.Buffer
	if err := RunView(path, filter, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()

	if strings.Count(output, "[conn:") != 1 {
		t.Errorf("expected exactly one event, got:\n%s", output)
	}
	if !strings.Contains(output, "Method: relay") {
		t.Errorf("expected relay request, got:\n%s", output)
	}
}

func TestRunViewMissingFile(t *testing.T) {
	err := RunView(filepath.Join(t.TempDir(), "missing.rlog"), log.Filter{}, io.Discard)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExportToJSONL(t *testing.T) {
	path := createTestLogFile(t, exchange("abc12345", log.TransportWebSocket, "42", "read", wire.NoError, time.Millisecond))

	var buf bytes.Buffer
	if err := RunExport(path, "jsonl", "", log.Filter{}, &buf); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1 is not JSON: %v", err)
	}
	if first["ConnectionID"] != "abc12345" {
		t.Errorf("ConnectionID = %v, want abc12345", first["ConnectionID"])
	}
	msg, ok := first["Message"].(map[string]any)
	if !ok {
		t.Fatalf("Message missing: %v", first)
	}
	if msg["Method"] != "read" {
		t.Errorf("Method = %v, want read", msg["Method"])
	}
	payload, ok := msg["Payload"].(map[string]any)
	if !ok || payload["path"] != "test.int" {
		t.Errorf("Payload = %v, want path test.int", msg["Payload"])
	}
}

func TestExportToCSVFile(t *testing.T) {
	path := createTestLogFile(t, exchange("abc12345", log.TransportMQTT, "9", "write", wire.InvalidParams, time.Millisecond))
	outPath := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", outPath, log.Filter{}, io.Discard); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if got := strings.Join(records[0], ","); got != "timestamp,connection_id,transport,direction,layer,category,type,id,method,code" {
		t.Errorf("header = %s", got)
	}

	req := records[1]
	if req[2] != "MQTT" || req[3] != "IN" || req[6] != "REQUEST" || req[7] != "9" || req[8] != "write" {
		t.Errorf("request row = %v", req)
	}
	resp := records[2]
	if resp[6] != "RESPONSE" || resp[9] != "-32602" {
		t.Errorf("response row = %v", resp)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, nil)
	err := RunExport(path, "xml", "", log.Filter{}, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("expected unknown format error, got %v", err)
	}
}

func TestFilterByConnectionID(t *testing.T) {
	events := []log.Event{
		{Timestamp: testTime, ConnectionID: "conn-1", Category: log.CategoryMessage},
		{Timestamp: testTime, ConnectionID: "conn-2", Category: log.CategoryMessage},
		{Timestamp: testTime, ConnectionID: "conn-1", Category: log.CategoryMessage},
	}
	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.rlog")

	count, err := RunFilter(path, outPath, log.Filter{ConnectionID: "conn-1"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	got := readAll(t, outPath)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	for _, e := range got {
		if e.ConnectionID != "conn-1" {
			t.Errorf("unexpected connection %s", e.ConnectionID)
		}
	}
}

func TestFilterByTimeRange(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: base, Category: log.CategoryMessage},
		{Timestamp: base.Add(time.Hour), Category: log.CategoryMessage},
		{Timestamp: base.Add(2 * time.Hour), Category: log.CategoryMessage},
	}
	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.rlog")

	filter, err := FilterOptions{
		TimeStart: base.Add(30 * time.Minute).Format(time.RFC3339),
		TimeEnd:   base.Add(90 * time.Minute).Format(time.RFC3339),
	}.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if _, err := RunFilter(path, outPath, filter); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	got := readAll(t, outPath)
	if len(got) != 1 || !got[0].Timestamp.Equal(base.Add(time.Hour)) {
		t.Errorf("expected only the 11:00 event, got %v", got)
	}
}

func TestFilterRequiresOutput(t *testing.T) {
	path := createTestLogFile(t, nil)
	if _, err := RunFilter(path, "", log.Filter{}); err == nil {
		t.Error("expected error without output path")
	}
}

func TestFilterOptionsErrors(t *testing.T) {
	tests := []FilterOptions{
		{Layer: "session"},
		{Direction: "sideways"},
		{Category: "noise"},
		{Transport: "serial"},
		{TimeStart: "yesterday"},
		{TimeEnd: "2026-13-01"},
	}
	for _, opts := range tests {
		if _, err := opts.Build(); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}

func TestFilterOptionsBuild(t *testing.T) {
	filter, err := FilterOptions{
		ConnID:    "c1",
		Layer:     "WIRE",
		Direction: "out",
		Category:  "snapshot",
		Transport: "ws",
		Method:    "relay",
	}.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if filter.ConnectionID != "c1" || filter.Method != "relay" {
		t.Errorf("unexpected filter %+v", filter)
	}
	if filter.Layer == nil || *filter.Layer != log.LayerWire {
		t.Error("layer not set to WIRE")
	}
	if filter.Direction == nil || *filter.Direction != log.DirectionOut {
		t.Error("direction not set to OUT")
	}
	if filter.Category == nil || *filter.Category != log.CategorySnapshot {
		t.Error("category not set to SNAPSHOT")
	}
	if filter.Transport == nil || *filter.Transport != log.TransportWebSocket {
		t.Error("transport not set to WEBSOCKET")
	}
}

func TestCollectStats(t *testing.T) {
	var events []log.Event
	events = append(events, exchange("conn-aaaa-bbbb", log.TransportWebSocket, "1", "read", wire.NoError, 2*time.Millisecond)...)
	events = append(events, exchange("conn-aaaa-bbbb", log.TransportWebSocket, "2", "write", wire.InvalidParams, 4*time.Millisecond)...)
	events = append(events, exchange("conn-cccc-dddd", log.TransportMQTT, "1", "read", wire.NoError, 4*time.Millisecond)...)
	events = append(events,
		log.Event{
			Timestamp:    testTime,
			ConnectionID: "conn-aaaa-bbbb",
			Direction:    log.DirectionOut,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Transport:    log.TransportWebSocket,
			Message:      &log.MessageEvent{Type: log.MessageTypeNotification, Method: "update"},
		},
		log.Event{
			Timestamp:    testTime,
			ConnectionID: "conn-aaaa-bbbb",
			Layer:        log.LayerService,
			Category:     log.CategorySnapshot,
			Transport:    log.TransportWebSocket,
			Snapshot:     &log.SnapshotEvent{Reason: "connect", State: map[string]any{}},
		},
		log.Event{
			Timestamp:    testTime,
			ConnectionID: "conn-cccc-dddd",
			Layer:        log.LayerTransport,
			Category:     log.CategoryError,
			Transport:    log.TransportMQTT,
			Error:        &log.ErrorEventData{Message: "broker lost"},
		},
	)
	path := createTestLogFile(t, events)

	stats, err := CollectStats(path)
	if err != nil {
		t.Fatalf("CollectStats failed: %v", err)
	}

	if stats.TotalEvents != len(events) {
		t.Errorf("TotalEvents = %d, want %d", stats.TotalEvents, len(events))
	}
	if len(stats.Connections) != 2 {
		t.Errorf("Connections = %d, want 2", len(stats.Connections))
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if n := stats.EventsByTransport[log.TransportMQTT]; n != 3 {
		t.Errorf("MQTT events = %d, want 3", n)
	}

	read := stats.Methods["read"]
	if read == nil || read.Requests != 2 || read.Responses != 2 || read.Failures != 0 {
		t.Fatalf("read stats = %+v", read)
	}
	if read.AverageTime() != 3*time.Millisecond {
		t.Errorf("read average = %v, want 3ms", read.AverageTime())
	}
	write := stats.Methods["write"]
	if write == nil || write.Failures != 1 {
		t.Errorf("write stats = %+v", write)
	}
	update := stats.Methods["update"]
	if update == nil || update.Notifications != 1 {
		t.Errorf("update stats = %+v", update)
	}
	if snaps := stats.Connections["conn-aaaa-bbbb"].Snapshots; snaps != 1 {
		t.Errorf("snapshots = %d, want 1", snaps)
	}
}

func TestRunStatsOutput(t *testing.T) {
	events := exchange("conn-aaaa-bbbb", log.TransportWebSocket, "1", "relay", wire.NoError, time.Millisecond)
	events[0].RemoteAddr = "10.0.0.5:40000"
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"=== Smart Relay Protocol Log Statistics ===",
		"Total Events: 2",
		"WIRE:",
		"MESSAGE:",
		"WEBSOCKET:",
		"relay:",
		"requests=1 failures=0 notifications=0 avg=1.000ms",
		"Connections: 1",
		"[conn-aaa] WEBSOCKET, 2 events",
		"Remote: 10.0.0.5:40000",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
	if strings.Contains(output, "Errors:") {
		t.Errorf("unexpected errors line:\n%s", output)
	}
}

func TestRunStatsEmptyLog(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("expected zero events, got:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Time Range") {
		t.Errorf("empty log should have no time range:\n%s", buf.String())
	}
}
