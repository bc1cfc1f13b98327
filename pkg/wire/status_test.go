package wire

import "testing"

func TestErrorCodeString(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{NoError, "NO_ERROR"},
		{ParseError, "PARSE_ERROR"},
		{InvalidRequest, "INVALID_REQUEST"},
		{MethodNotFound, "METHOD_NOT_FOUND"},
		{InvalidParams, "INVALID_PARAMS"},
		{InternalError, "INTERNAL_ERROR"},
		{-32050, "SERVER_ERROR"},
		{17, "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.String(); got != tt.want {
				t.Errorf("String() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestErrorCodeValues(t *testing.T) {
	if ParseError != -32700 || InvalidRequest != -32600 || MethodNotFound != -32601 ||
		InvalidParams != -32602 || InternalError != -32603 {
		t.Error("error codes must match JSON-RPC 2.0")
	}
	if !NoError.IsSuccess() || NoError.IsError() {
		t.Error("NoError must be success")
	}
	if !InternalError.IsError() {
		t.Error("InternalError must be an error")
	}
}

func TestNewError(t *testing.T) {
	e := NewError(InvalidParams, "")
	if e.Message != "Invalid params" {
		t.Errorf("default message = %q", e.Message)
	}
	e = NewError(InvalidParams, "path %q not found", "x.y")
	if e.Message != `path "x.y" not found` {
		t.Errorf("message = %q", e.Message)
	}
	if e.Error() != `INVALID_PARAMS (-32602): path "x.y" not found` {
		t.Errorf("Error() = %q", e.Error())
	}
}
