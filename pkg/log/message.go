package log

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/smartrelay/relay-go/pkg/document"
	"github.com/smartrelay/relay-go/pkg/wire"
)

// MaxFrameDataSize is the maximum frame data size included in events (4 KB).
// Larger frames are truncated.
const MaxFrameDataSize = 4096

// NewFrameEvent creates a transport-layer event for a raw frame.
func NewFrameEvent(connID string, transport Transport, dir Direction, data []byte) Event {
	frameData := data
	truncated := false
	if len(data) > MaxFrameDataSize {
		frameData = data[:MaxFrameDataSize]
		truncated = true
	}
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
		Transport:    transport,
		Frame: &FrameEvent{
			Size:      len(data),
			Data:      frameData,
			Truncated: truncated,
		},
	}
}

// RequestMessage describes an incoming request.
func RequestMessage(req *wire.Request) *MessageEvent {
	return &MessageEvent{
		Type:    MessageTypeRequest,
		ID:      FormatID(req.ID),
		Method:  req.Method,
		Payload: payloadOf(req.Params),
	}
}

// ResponseMessage describes an outgoing response and its processing time.
func ResponseMessage(resp *wire.Response, elapsed time.Duration) *MessageEvent {
	code := wire.NoError
	var payload any
	if resp.Error != nil {
		code = resp.Error.Code
		payload = resp.Error.Message
	} else {
		payload = payloadOf(resp.Result)
	}
	return &MessageEvent{
		Type:           MessageTypeResponse,
		ID:             FormatID(resp.ID),
		Code:           &code,
		Payload:        payload,
		ProcessingTime: &elapsed,
	}
}

// NotificationMessage describes an outgoing notification.
func NotificationMessage(n *wire.Notification) *MessageEvent {
	return &MessageEvent{
		Type:    MessageTypeNotification,
		Method:  n.Method,
		Payload: payloadOf(n.Params),
	}
}

// NewMessageEvent wraps a message description in a wire-layer event.
func NewMessageEvent(connID string, transport Transport, dir Direction, msg *MessageEvent) Event {
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		Transport:    transport,
		Message:      msg,
	}
}

// NewStateEvent creates a service-layer state change event.
func NewStateEvent(connID string, transport Transport, entity StateEntity, oldState, newState, reason string) Event {
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        LayerService,
		Category:     CategoryState,
		Transport:    transport,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(connID string, transport Transport, layer Layer, err error, context string) Event {
	data := &ErrorEventData{
		Layer:   layer,
		Message: err.Error(),
		Context: context,
	}
	var werr *wire.Error
	if errors.As(err, &werr) {
		code := int(werr.Code)
		data.Code = &code
	}
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    DirectionIn,
		Layer:        layer,
		Category:     CategoryError,
		Transport:    transport,
		Error:        data,
	}
}

// FormatID renders a request ID as text. Nil renders as "".
func FormatID(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func payloadOf(obj *document.Object) any {
	if obj == nil {
		return nil
	}
	return obj.Map()
}

// NewSnapshotEvent creates a service-layer event holding the full tree.
func NewSnapshotEvent(connID string, transport Transport, reason string, state *document.Object) Event {
	var m map[string]any
	if state != nil {
		m = state.Map()
	}
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    DirectionOut,
		Layer:        LayerService,
		Category:     CategorySnapshot,
		Transport:    transport,
		Snapshot:     &SnapshotEvent{Reason: reason, State: m},
	}
}
