package wire

import (
	"encoding/json"
	"fmt"

	"github.com/smartrelay/relay-go/pkg/document"
)

// Version is the only JSON-RPC version accepted and produced.
const Version = "2.0"

// Notification methods sent by the device.
const (
	// MethodConnect carries the full state to a newly connected client.
	MethodConnect = "connect"

	// MethodUpdate carries the partial document of changed properties.
	MethodUpdate = "update"
)

// Envelope keys.
const (
	keyVersion = "jsonrpc"
	keyID      = "id"
	keyMethod  = "method"
	keyParams  = "params"
	keyResult  = "result"
	keyError   = "error"
	keyCode    = "code"
	keyMessage = "message"
)

// Request is an incoming call.
type Request struct {
	// ID is a string, a json.Number or an int64, or nil for a null or
	// missing id.
	ID any

	// HasID is set when the envelope carried an id member, even a null
	// one. Decoded requests without it are notifications.
	HasID bool

	// Method is the command name.
	Method string

	// Params holds the named parameters, or nil when none were sent.
	Params *document.Object
}

// IsNotification returns true if the caller expects no response: the
// request has no id member at all. "id": null still gets an answer.
func (r *Request) IsNotification() bool {
	return r.ID == nil && !r.HasID
}

// Response is the reply to a Request. Exactly one of Result or Error is used.
type Response struct {
	ID     any
	Result *document.Object
	Error  *Error
}

// NewResult creates a success response for id.
func NewResult(id any, result *document.Object) *Response {
	return &Response{ID: id, Result: result}
}

// NewErrorResponse creates an error response for id.
func NewErrorResponse(id any, err *Error) *Response {
	return &Response{ID: id, Error: err}
}

// Notification is a device-initiated message without an ID.
type Notification struct {
	Method string
	Params *document.Object
}

// envelope builds the document for a response.
func (r *Response) envelope() (*document.Object, error) {
	env := document.New()
	if err := env.Set(keyVersion, Version); err != nil {
		return nil, err
	}
	if err := env.Set(keyID, r.ID); err != nil {
		return nil, fmt.Errorf("response id: %w", err)
	}
	if r.Error != nil {
		e, err := env.SetObject(keyError)
		if err != nil {
			return nil, err
		}
		if err := e.Set(keyCode, int64(r.Error.Code)); err != nil {
			return nil, err
		}
		if err := e.Set(keyMessage, r.Error.Message); err != nil {
			return nil, err
		}
		return env, nil
	}
	var result any
	if r.Result != nil {
		result = r.Result
	}
	if err := env.Set(keyResult, result); err != nil {
		return nil, err
	}
	return env, nil
}

// envelope builds the document for a notification.
func (n *Notification) envelope() (*document.Object, error) {
	env := document.New()
	if err := env.Set(keyVersion, Version); err != nil {
		return nil, err
	}
	if err := env.Set(keyMethod, n.Method); err != nil {
		return nil, err
	}
	if n.Params != nil {
		if err := env.Set(keyParams, n.Params); err != nil {
			return nil, err
		}
	}
	return env, nil
}

// requestFrom validates a decoded envelope. On InvalidParams the returned
// request carries the ID so the error can still be answered.
func requestFrom(env *document.Object) (*Request, error) {
	req := &Request{}
	if v, ok := env.Get(keyID); ok {
		req.HasID = true
		switch id := v.(type) {
		case nil, string, json.Number, int64:
			req.ID = id
		case uint64:
			req.ID = json.Number(fmt.Sprint(id))
		case float64:
			req.ID = json.Number(fmt.Sprint(id))
		default:
			return nil, NewError(InvalidRequest, "invalid id type %T", v)
		}
	}

	if v, ok := env.Get(keyVersion); ok {
		if s, ok := v.(string); !ok || s != Version {
			return req, NewError(InvalidRequest, "unsupported jsonrpc version %v", v)
		}
	}

	m, ok := env.Get(keyMethod)
	if !ok {
		return req, NewError(InvalidRequest, "missing method")
	}
	method, ok := m.(string)
	if !ok || method == "" {
		return req, NewError(InvalidRequest, "method must be a non-empty string")
	}
	req.Method = method

	if v, ok := env.Get(keyParams); ok && v != nil {
		params, ok := v.(*document.Object)
		if !ok {
			return req, NewError(InvalidParams, "params must be an object")
		}
		req.Params = params
	}
	return req, nil
}
