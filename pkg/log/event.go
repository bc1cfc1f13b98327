package log

import (
	"time"

	"github.com/smartrelay/relay-go/pkg/wire"
)

// Event is one captured protocol event. Exactly one of the payload
// pointers is set. CBOR keys are small integers.
type Event struct {
	Timestamp    time.Time `cbor:"1,keyasint"`
	ConnectionID string    `cbor:"2,keyasint"`
	Direction    Direction `cbor:"3,keyasint"`
	Layer        Layer     `cbor:"4,keyasint"`
	Category     Category  `cbor:"5,keyasint"`
	Transport    Transport `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is IP:port for WebSocket peers and the client ID for MQTT.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
	Snapshot    *SnapshotEvent    `cbor:"15,keyasint,omitempty"`
}

// Kind names the payload variant: the message type for messages, the
// control type for control frames, otherwise Frame, State, Snapshot or
// Error.
func (e Event) Kind() string {
	switch {
	case e.Frame != nil:
		return "Frame"
	case e.Message != nil:
		return e.Message.Type.String()
	case e.StateChange != nil:
		return "State"
	case e.ControlMsg != nil:
		return e.ControlMsg.Type.String()
	case e.Snapshot != nil:
		return "Snapshot"
	case e.Error != nil:
		return "Error"
	}
	return "Unknown"
}

// enumName returns names[i], or UNKNOWN when i is out of range.
func enumName(names []string, i uint8) string {
	if int(i) < len(names) {
		return names[i]
	}
	return "UNKNOWN"
}

// Direction is the flow of a message relative to the device.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

var directionNames = []string{"IN", "OUT"}

func (d Direction) String() string { return enumName(directionNames, uint8(d)) }

// Layer is the protocol layer that captured an event.
type Layer uint8

const (
	// LayerTransport sees raw frames.
	LayerTransport Layer = iota
	// LayerWire sees decoded JSON-RPC envelopes.
	LayerWire
	// LayerService sees connection and tree state.
	LayerService
)

var layerNames = []string{"TRANSPORT", "WIRE", "SERVICE"}

func (l Layer) String() string { return enumName(layerNames, uint8(l)) }

// Category classifies events across layers.
type Category uint8

const (
	CategoryMessage Category = iota
	CategoryControl
	CategoryState
	CategoryError
	CategorySnapshot
)

var categoryNames = []string{"MESSAGE", "CONTROL", "STATE", "ERROR", "SNAPSHOT"}

func (c Category) String() string { return enumName(categoryNames, uint8(c)) }

// Transport is the channel a peer talks over.
type Transport uint8

const (
	// TransportLocal covers the device itself: console and tick loop.
	TransportLocal Transport = iota
	TransportWebSocket
	TransportMQTT
)

var transportNames = []string{"LOCAL", "WEBSOCKET", "MQTT"}

func (t Transport) String() string { return enumName(transportNames, uint8(t)) }

// FrameEvent is a raw frame seen by the transport.
type FrameEvent struct {
	// Size is the full frame length, even when Data is truncated.
	Size      int    `cbor:"1,keyasint"`
	Data      []byte `cbor:"2,keyasint,omitempty"`
	Truncated bool   `cbor:"3,keyasint,omitempty"`
}

// MessageEvent is a decoded JSON-RPC envelope.
type MessageEvent struct {
	Type MessageType `cbor:"1,keyasint"`

	// ID is the request ID rendered as text; empty for notifications.
	ID     string `cbor:"2,keyasint,omitempty"`
	Method string `cbor:"3,keyasint,omitempty"`

	// Code is set on responses, NoError on success.
	Code *wire.ErrorCode `cbor:"4,keyasint,omitempty"`

	// Payload holds params, result or error message as plain values.
	Payload any `cbor:"5,keyasint,omitempty"`

	// ProcessingTime is the time from request receipt to response.
	ProcessingTime *time.Duration `cbor:"6,keyasint,omitempty"`
}

// MessageType is the JSON-RPC envelope kind.
type MessageType uint8

const (
	MessageTypeRequest MessageType = iota
	MessageTypeResponse
	MessageTypeNotification
)

var messageTypeNames = []string{"REQUEST", "RESPONSE", "NOTIFICATION"}

func (m MessageType) String() string { return enumName(messageTypeNames, uint8(m)) }

// StateChangeEvent records a lifecycle transition.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity is what changed state.
type StateEntity uint8

const (
	StateEntityConnection StateEntity = iota
	StateEntityService
	StateEntityBridge
)

var stateEntityNames = []string{"CONNECTION", "SERVICE", "BRIDGE"}

func (s StateEntity) String() string { return enumName(stateEntityNames, uint8(s)) }

// ControlMsgEvent is a WebSocket control frame.
type ControlMsgEvent struct {
	Type      ControlMsgType `cbor:"1,keyasint"`
	CloseCode *int           `cbor:"2,keyasint,omitempty"`
}

// ControlMsgType is the WebSocket control frame kind.
type ControlMsgType uint8

const (
	ControlMsgPing ControlMsgType = iota
	ControlMsgPong
	ControlMsgClose
)

var controlMsgNames = []string{"PING", "PONG", "CLOSE"}

func (c ControlMsgType) String() string { return enumName(controlMsgNames, uint8(c)) }

// ErrorEventData describes a failure at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Code is the JSON-RPC error code when the error carried one.
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context names the operation that failed.
	Context string `cbor:"4,keyasint,omitempty"`
}

// SnapshotEvent holds the full tree, as sent in connect notifications.
type SnapshotEvent struct {
	// Reason is what triggered the snapshot, e.g. "connect" or "resync".
	Reason string         `cbor:"1,keyasint,omitempty"`
	State  map[string]any `cbor:"2,keyasint"`
}
