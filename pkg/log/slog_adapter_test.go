package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func captureSlog(t *testing.T, level slog.Level, events ...Event) []map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level}))
	a := NewSlogAdapter(logger)
	for _, e := range events {
		a.Log(e)
	}

	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("bad record %q: %v", line, err)
		}
		records = append(records, rec)
	}
	return records
}

func TestSlogAdapterAttributes(t *testing.T) {
	events := session()
	records := captureSlog(t, slog.LevelDebug, events...)
	if len(records) != len(events) {
		t.Fatalf("got %d records, want %d", len(records), len(events))
	}

	snap := records[0]
	if snap["msg"] != "protocol Snapshot" || snap["reason"] != "connect" || snap["remote"] != "10.0.0.9:5000" {
		t.Errorf("snapshot record = %v", snap)
	}

	req := records[1]
	if req["method"] != "write" || req["id"] != "1" || req["transport"] != "WEBSOCKET" || req["direction"] != "IN" {
		t.Errorf("request record = %v", req)
	}

	resp := records[2]
	if resp["code"] != "NO_ERROR" || resp["elapsed"] == nil {
		t.Errorf("response record = %v", resp)
	}

	ctrl := records[4]
	if ctrl["msg"] != "protocol CLOSE" || ctrl["close_code"] != float64(1001) {
		t.Errorf("control record = %v", ctrl)
	}

	errRec := records[5]
	if errRec["level"] != "WARN" || errRec["error"] != "connection lost" || errRec["context"] != "publish" {
		t.Errorf("error record = %v", errRec)
	}
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	records := captureSlog(t, slog.LevelInfo, session()...)
	if len(records) != 1 {
		t.Fatalf("at info level only the error should be logged, got %d records", len(records))
	}
	if records[0]["msg"] != "protocol Error" {
		t.Errorf("record = %v", records[0])
	}
}
