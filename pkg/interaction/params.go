package interaction

import (
	"fmt"

	"github.com/smartrelay/relay-go/pkg/document"
)

// Param returns the raw value of a required parameter. An explicit null
// counts as missing.
func Param(params *document.Object, key string) (any, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingParam, key)
	}
	v, ok := params.Get(key)
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingParam, key)
	}
	return v, nil
}

// StringParam returns a required, non-empty string parameter.
func StringParam(params *document.Object, key string) (string, error) {
	v, err := Param(params, key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidParam, key)
	}
	return s, nil
}

// BoolParam returns a required boolean parameter.
func BoolParam(params *document.Object, key string) (bool, error) {
	v, err := Param(params, key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean", ErrInvalidParam, key)
	}
	return b, nil
}
