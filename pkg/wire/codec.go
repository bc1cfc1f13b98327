package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/smartrelay/relay-go/pkg/document"
)

// Codec converts envelopes to and from frame payloads.
type Codec interface {
	// Name returns the codec name ("json" or "cbor").
	Name() string

	// Binary reports whether payloads are sent as binary frames.
	Binary() bool

	// DecodeRequest parses an incoming call. Errors are *Error values with
	// ParseError, InvalidRequest or InvalidParams. A non-nil request may be
	// returned alongside an error when the ID could be recovered.
	DecodeRequest(data []byte) (*Request, error)

	// EncodeRequest encodes an outgoing call.
	EncodeRequest(req *Request) ([]byte, error)

	// EncodeResponse encodes a reply.
	EncodeResponse(resp *Response) ([]byte, error)

	// DecodeResponse parses a reply.
	DecodeResponse(data []byte) (*Response, error)

	// EncodeNotification encodes a device-initiated notification.
	EncodeNotification(n *Notification) ([]byte, error)

	// DecodeNotification parses a notification.
	DecodeNotification(data []byte) (*Notification, error)
}

var (
	_ Codec = JSONCodec{}
	_ Codec = CBORCodec{}
)

// JSONCodec carries envelopes as JSON text.
type JSONCodec struct{}

// CBORCodec carries envelopes as CBOR maps with text keys.
type CBORCodec struct{}

// CodecFor returns the codec for a frame type.
func CodecFor(binary bool) Codec {
	if binary {
		return CBORCodec{}
	}
	return JSONCodec{}
}

// Name implements Codec.
func (JSONCodec) Name() string { return "json" }

// Binary implements Codec.
func (JSONCodec) Binary() bool { return false }

// DecodeRequest implements Codec.
func (JSONCodec) DecodeRequest(data []byte) (*Request, error) {
	env, err := parseJSON(data)
	if err != nil {
		return nil, err
	}
	return requestFrom(env)
}

// EncodeRequest implements Codec.
func (JSONCodec) EncodeRequest(req *Request) ([]byte, error) {
	env, err := requestEnvelope(req)
	if err != nil {
		return nil, err
	}
	return env.MarshalJSON()
}

// EncodeResponse implements Codec.
func (JSONCodec) EncodeResponse(resp *Response) ([]byte, error) {
	env, err := resp.envelope()
	if err != nil {
		return nil, err
	}
	return env.MarshalJSON()
}

// DecodeResponse implements Codec.
func (JSONCodec) DecodeResponse(data []byte) (*Response, error) {
	env, err := parseJSON(data)
	if err != nil {
		return nil, err
	}
	return responseFrom(env)
}

// EncodeNotification implements Codec.
func (JSONCodec) EncodeNotification(n *Notification) ([]byte, error) {
	env, err := n.envelope()
	if err != nil {
		return nil, err
	}
	return env.MarshalJSON()
}

// DecodeNotification implements Codec.
func (JSONCodec) DecodeNotification(data []byte) (*Notification, error) {
	env, err := parseJSON(data)
	if err != nil {
		return nil, err
	}
	return notificationFrom(env)
}

// Name implements Codec.
func (CBORCodec) Name() string { return "cbor" }

// Binary implements Codec.
func (CBORCodec) Binary() bool { return true }

// DecodeRequest implements Codec.
func (CBORCodec) DecodeRequest(data []byte) (*Request, error) {
	env, err := parseCBOR(data)
	if err != nil {
		return nil, err
	}
	return requestFrom(env)
}

// EncodeRequest implements Codec.
func (CBORCodec) EncodeRequest(req *Request) ([]byte, error) {
	env, err := requestEnvelope(req)
	if err != nil {
		return nil, err
	}
	return env.MarshalCBOR()
}

// EncodeResponse implements Codec.
func (CBORCodec) EncodeResponse(resp *Response) ([]byte, error) {
	env, err := resp.envelope()
	if err != nil {
		return nil, err
	}
	return env.MarshalCBOR()
}

// DecodeResponse implements Codec.
func (CBORCodec) DecodeResponse(data []byte) (*Response, error) {
	env, err := parseCBOR(data)
	if err != nil {
		return nil, err
	}
	return responseFrom(env)
}

// EncodeNotification implements Codec.
func (CBORCodec) EncodeNotification(n *Notification) ([]byte, error) {
	env, err := n.envelope()
	if err != nil {
		return nil, err
	}
	return env.MarshalCBOR()
}

// DecodeNotification implements Codec.
func (CBORCodec) DecodeNotification(data []byte) (*Notification, error) {
	env, err := parseCBOR(data)
	if err != nil {
		return nil, err
	}
	return notificationFrom(env)
}

func parseJSON(data []byte) (*document.Object, error) {
	env, err := document.Parse(data)
	if err != nil {
		if errors.Is(err, document.ErrNotObject) {
			return nil, NewError(InvalidRequest, "envelope is not an object")
		}
		return nil, NewError(ParseError, "%v", err)
	}
	return env, nil
}

func parseCBOR(data []byte) (*document.Object, error) {
	env, err := document.ParseCBOR(data)
	if err != nil {
		if errors.Is(err, document.ErrNotObject) {
			return nil, NewError(InvalidRequest, "envelope is not a map")
		}
		return nil, NewError(ParseError, "%v", err)
	}
	return env, nil
}

func requestEnvelope(req *Request) (*document.Object, error) {
	if req.Method == "" {
		return nil, errors.New("request method is empty")
	}
	env := document.New()
	if err := env.Set(keyVersion, Version); err != nil {
		return nil, err
	}
	if !req.IsNotification() {
		if err := env.Set(keyID, req.ID); err != nil {
			return nil, fmt.Errorf("request id: %w", err)
		}
	}
	if err := env.Set(keyMethod, req.Method); err != nil {
		return nil, err
	}
	if req.Params != nil {
		if err := env.Set(keyParams, req.Params); err != nil {
			return nil, err
		}
	}
	return env, nil
}

func responseFrom(env *document.Object) (*Response, error) {
	resp := &Response{}
	if v, ok := env.Get(keyID); ok {
		resp.ID = v
	}
	if v, ok := env.GetObject(keyError); ok {
		code, err := codeOf(v)
		if err != nil {
			return nil, err
		}
		msg, _ := v.GetString(keyMessage)
		resp.Error = &Error{Code: code, Message: msg}
		return resp, nil
	}
	v, ok := env.Get(keyResult)
	if !ok {
		return nil, NewError(InvalidRequest, "response has neither result nor error")
	}
	if v != nil {
		result, ok := v.(*document.Object)
		if !ok {
			return nil, NewError(InvalidRequest, "result must be an object")
		}
		resp.Result = result
	}
	return resp, nil
}

func codeOf(e *document.Object) (ErrorCode, error) {
	v, ok := e.Get(keyCode)
	if !ok {
		return 0, NewError(InvalidRequest, "error without code")
	}
	switch c := v.(type) {
	case int64:
		return ErrorCode(c), nil
	case json.Number:
		n, err := c.Int64()
		if err != nil {
			return 0, NewError(InvalidRequest, "invalid error code %s", c)
		}
		return ErrorCode(n), nil
	default:
		return 0, NewError(InvalidRequest, "invalid error code type %T", v)
	}
}

func notificationFrom(env *document.Object) (*Notification, error) {
	req, err := requestFrom(env)
	if err != nil {
		return nil, err
	}
	if !req.IsNotification() {
		return nil, NewError(InvalidRequest, "notification must not carry an id")
	}
	return &Notification{Method: req.Method, Params: req.Params}, nil
}
