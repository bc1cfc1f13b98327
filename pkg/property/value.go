package property

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the type of a leaf value.
type Kind uint8

const (
	KindInt Kind = iota + 1
	KindFloat
	KindBool
	KindString
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value errors.
var (
	ErrValueType = errors.New("invalid value type")
)

// Value is a leaf value. It is implemented only by Int, Float, Bool and
// String.
type Value interface {
	// Kind returns the value kind.
	Kind() Kind

	// Any returns the value as a plain Go value (int64, float64, bool or string).
	Any() any

	isValue()
}

// Int is an integer leaf value.
type Int int64

// Float is a floating point leaf value.
type Float float64

// Bool is a boolean leaf value.
type Bool bool

// String is a text leaf value.
type String string

func (Int) Kind() Kind    { return KindInt }
func (Float) Kind() Kind  { return KindFloat }
func (Bool) Kind() Kind   { return KindBool }
func (String) Kind() Kind { return KindString }

func (v Int) Any() any    { return int64(v) }
func (v Float) Any() any  { return float64(v) }
func (v Bool) Any() any   { return bool(v) }
func (v String) Any() any { return string(v) }

func (Int) isValue()    {}
func (Float) isValue()  {}
func (Bool) isValue()   {}
func (String) isValue() {}

// ValueOf converts a decoded document value into a Value of the given kind.
//
// Integers accept any Go integer, json.Number and floats without a
// fractional part. Floats accept any finite number. Bools and strings accept
// only their own type.
func ValueOf(kind Kind, raw any) (Value, error) {
	switch kind {
	case KindInt:
		n, err := toInt(raw)
		if err != nil {
			return nil, err
		}
		return Int(n), nil
	case KindFloat:
		f, err := toFloat(raw)
		if err != nil {
			return nil, err
		}
		return Float(f), nil
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: expected bool, got %T", ErrValueType, raw)
		}
		return Bool(b), nil
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected string, got %T", ErrValueType, raw)
		}
		return String(s), nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrValueType, kind)
	}
}

func toInt(raw any) (int64, error) {
	switch n := raw.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int", ErrValueType, n)
		}
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int", ErrValueType, n)
		}
		return int64(n), nil
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrValueType, n)
		}
		return floatToInt(f)
	case Int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%w: expected int, got %T", ErrValueType, raw)
	}
}

func floatToInt(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrValueType, f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %v overflows int", ErrValueType, f)
	}
	return int64(f), nil
}

func toFloat(raw any) (float64, error) {
	var f float64
	switch n := raw.(type) {
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		v, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrValueType, n)
		}
		f = v
	case Float:
		f = float64(n)
	default:
		i, err := toInt(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: expected float, got %T", ErrValueType, raw)
		}
		f = float64(i)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v is not finite", ErrValueType, f)
	}
	return f, nil
}
