package wire

import "fmt"

// ErrorCode is a JSON-RPC error code. Zero means success.
type ErrorCode int

const (
	// NoError indicates success.
	NoError ErrorCode = 0

	// ParseError indicates the received bytes are not a valid document.
	ParseError ErrorCode = -32700

	// InvalidRequest indicates the document is not a valid request object.
	InvalidRequest ErrorCode = -32600

	// MethodNotFound indicates the method does not exist.
	MethodNotFound ErrorCode = -32601

	// InvalidParams indicates missing or invalid method parameters.
	InvalidParams ErrorCode = -32602

	// InternalError indicates an unexpected failure while handling the request.
	InternalError ErrorCode = -32603
)

// Codes from -32099 to -32000 are reserved for implementation-defined
// server errors.
const (
	serverErrorMin ErrorCode = -32099
	serverErrorMax ErrorCode = -32000
)

// String returns the code name.
func (c ErrorCode) String() string {
	switch c {
	case NoError:
		return "NO_ERROR"
	case ParseError:
		return "PARSE_ERROR"
	case InvalidRequest:
		return "INVALID_REQUEST"
	case MethodNotFound:
		return "METHOD_NOT_FOUND"
	case InvalidParams:
		return "INVALID_PARAMS"
	case InternalError:
		return "INTERNAL_ERROR"
	default:
		if c >= serverErrorMin && c <= serverErrorMax {
			return "SERVER_ERROR"
		}
		return "UNKNOWN"
	}
}

// Message returns the standard JSON-RPC message for the code.
func (c ErrorCode) Message() string {
	switch c {
	case NoError:
		return "Success"
	case ParseError:
		return "Parse error"
	case InvalidRequest:
		return "Invalid Request"
	case MethodNotFound:
		return "Method not found"
	case InvalidParams:
		return "Invalid params"
	case InternalError:
		return "Internal error"
	default:
		if c >= serverErrorMin && c <= serverErrorMax {
			return "Server error"
		}
		return "Unknown error"
	}
}

// IsSuccess returns true if the code indicates success.
func (c ErrorCode) IsSuccess() bool {
	return c == NoError
}

// IsError returns true if the code indicates an error.
func (c ErrorCode) IsError() bool {
	return c != NoError
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode
	Message string
}

// NewError creates an error with a formatted message. An empty format uses
// the code's standard message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	msg := code.Message()
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Code: code, Message: msg}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, int(e.Code), e.Message)
}
