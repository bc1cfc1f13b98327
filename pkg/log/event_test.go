package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/smartrelay/relay-go/pkg/wire"
)

func TestEnumNames(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerWire.String(), "WIRE"},
		{LayerService.String(), "SERVICE"},
		{Layer(3).String(), "UNKNOWN"},
		{CategoryMessage.String(), "MESSAGE"},
		{CategoryControl.String(), "CONTROL"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{CategorySnapshot.String(), "SNAPSHOT"},
		{TransportLocal.String(), "LOCAL"},
		{TransportWebSocket.String(), "WEBSOCKET"},
		{TransportMQTT.String(), "MQTT"},
		{Transport(7).String(), "UNKNOWN"},
		{MessageTypeNotification.String(), "NOTIFICATION"},
		{StateEntityBridge.String(), "BRIDGE"},
		{ControlMsgClose.String(), "CLOSE"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestEventKind(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{Event{Frame: &FrameEvent{}}, "Frame"},
		{Event{Message: &MessageEvent{Type: MessageTypeResponse}}, "RESPONSE"},
		{Event{StateChange: &StateChangeEvent{}}, "State"},
		{Event{ControlMsg: &ControlMsgEvent{Type: ControlMsgPing}}, "PING"},
		{Event{Snapshot: &SnapshotEvent{}}, "Snapshot"},
		{Event{Error: &ErrorEventData{}}, "Error"},
		{Event{}, "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.event.Kind(); got != tt.want {
			t.Errorf("Kind() = %q, want %q", got, tt.want)
		}
	}
}

// session is a short WebSocket exchange: connect snapshot, a write and its
// response, the resulting update, then a close.
func session() []Event {
	ts := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	code := wire.NoError
	elapsed := 420 * time.Microsecond
	closeCode := 1001
	return []Event{
		{
			Timestamp: ts, ConnectionID: "ws-1", Direction: DirectionOut, Layer: LayerService,
			Category: CategorySnapshot, Transport: TransportWebSocket, RemoteAddr: "10.0.0.9:5000",
			Snapshot: &SnapshotEvent{Reason: "connect", State: map[string]any{"relay": false}},
		},
		{
			Timestamp: ts.Add(time.Second), ConnectionID: "ws-1", Direction: DirectionIn, Layer: LayerWire,
			Category: CategoryMessage, Transport: TransportWebSocket,
			Message: &MessageEvent{Type: MessageTypeRequest, ID: "1", Method: "write",
				Payload: map[string]any{"path": "test.bool", "value": true}},
		},
		{
			Timestamp: ts.Add(time.Second + elapsed), ConnectionID: "ws-1", Direction: DirectionOut, Layer: LayerWire,
			Category: CategoryMessage, Transport: TransportWebSocket,
			Message: &MessageEvent{Type: MessageTypeResponse, ID: "1", Code: &code, ProcessingTime: &elapsed},
		},
		{
			Timestamp: ts.Add(2 * time.Second), ConnectionID: "ws-1", Direction: DirectionOut, Layer: LayerWire,
			Category: CategoryMessage, Transport: TransportWebSocket,
			Message: &MessageEvent{Type: MessageTypeNotification, Method: "update"},
		},
		{
			Timestamp: ts.Add(3 * time.Second), ConnectionID: "ws-1", Direction: DirectionIn, Layer: LayerTransport,
			Category: CategoryControl, Transport: TransportWebSocket,
			ControlMsg: &ControlMsgEvent{Type: ControlMsgClose, CloseCode: &closeCode},
		},
		{
			Timestamp: ts.Add(4 * time.Second), ConnectionID: "mqtt", Layer: LayerTransport,
			Category: CategoryError, Transport: TransportMQTT,
			Error: &ErrorEventData{Layer: LayerTransport, Message: "connection lost", Context: "publish"},
		},
	}
}

func TestEventCBORRoundTrip(t *testing.T) {
	for _, in := range session() {
		data, err := EncodeEvent(in)
		if err != nil {
			t.Fatalf("EncodeEvent(%s): %v", in.Kind(), err)
		}
		out, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("DecodeEvent(%s): %v", in.Kind(), err)
		}

		if !out.Timestamp.Equal(in.Timestamp) {
			t.Errorf("%s: Timestamp = %v, want %v", in.Kind(), out.Timestamp, in.Timestamp)
		}
		if out.ConnectionID != in.ConnectionID || out.Transport != in.Transport ||
			out.Layer != in.Layer || out.Category != in.Category || out.Direction != in.Direction {
			t.Errorf("%s: header mismatch: %+v", in.Kind(), out)
		}
		if out.Kind() != in.Kind() {
			t.Errorf("Kind = %s, want %s", out.Kind(), in.Kind())
		}
	}
}

func TestEventCBORPayloadDetails(t *testing.T) {
	events := session()

	data, _ := EncodeEvent(events[1])
	req, err := DecodeEvent(data)
	if err != nil {
		t.Fatal(err)
	}
	payload, ok := req.Message.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload decoded as %T, want map[string]any", req.Message.Payload)
	}
	if payload["path"] != "test.bool" || payload["value"] != true {
		t.Errorf("payload = %v", payload)
	}

	data, _ = EncodeEvent(events[2])
	resp, err := DecodeEvent(data)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Message.Code == nil || *resp.Message.Code != wire.NoError {
		t.Errorf("Code = %v", resp.Message.Code)
	}
	if resp.Message.ProcessingTime == nil || *resp.Message.ProcessingTime != 420*time.Microsecond {
		t.Errorf("ProcessingTime = %v", resp.Message.ProcessingTime)
	}

	data, _ = EncodeEvent(events[4])
	ctrl, err := DecodeEvent(data)
	if err != nil {
		t.Fatal(err)
	}
	if ctrl.ControlMsg.CloseCode == nil || *ctrl.ControlMsg.CloseCode != 1001 {
		t.Errorf("CloseCode = %v", ctrl.ControlMsg.CloseCode)
	}
}

func TestEventCBORUsesIntegerKeys(t *testing.T) {
	data, err := EncodeEvent(session()[3])
	if err != nil {
		t.Fatal(err)
	}
	var raw map[any]any
	if err := cbor.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for k := range raw {
		if _, ok := k.(uint64); !ok {
			t.Errorf("key %v (%T) is not an integer", k, k)
		}
	}
	if bytes.Contains(data, []byte("ConnectionID")) {
		t.Error("field names leaked into the encoding")
	}
}

func TestEventCBORIsDeterministic(t *testing.T) {
	ev := session()[0]
	ev.Snapshot.State = map[string]any{"sys": map[string]any{"name": "relay"}, "power": 0, "relay": false}
	a, _ := EncodeEvent(ev)
	b, _ := EncodeEvent(ev)
	if !bytes.Equal(a, b) {
		t.Error("two encodings of the same event differ")
	}
}
