package property

import (
	"errors"
	"fmt"
	"strings"
)

// Constraint errors.
var (
	ErrOutOfRange = errors.New("value out of range")
	ErrNotAllowed = errors.New("value not allowed")
)

// Constraint restricts the values a leaf accepts.
type Constraint interface {
	// Check returns an error if v is not acceptable.
	Check(v Value) error

	// String describes the constraint ("0..100", "off|on").
	String() string
}

// intRange bounds integer values. Either side may be open.
type intRange struct {
	min, max       int64
	hasMin, hasMax bool
}

// Min accepts integers >= n.
func Min(n int64) Constraint { return intRange{min: n, hasMin: true} }

// Max accepts integers <= n.
func Max(n int64) Constraint { return intRange{max: n, hasMax: true} }

// Between accepts integers in [lo, hi].
func Between(lo, hi int64) Constraint {
	return intRange{min: lo, max: hi, hasMin: true, hasMax: true}
}

func (r intRange) Check(v Value) error {
	n, ok := v.(Int)
	if !ok {
		return fmt.Errorf("%w: range %s needs int, got %s", ErrValueType, r, v.Kind())
	}
	if r.hasMin && int64(n) < r.min {
		return fmt.Errorf("%w: %d < %d", ErrOutOfRange, n, r.min)
	}
	if r.hasMax && int64(n) > r.max {
		return fmt.Errorf("%w: %d > %d", ErrOutOfRange, n, r.max)
	}
	return nil
}

func (r intRange) String() string {
	var lo, hi string
	if r.hasMin {
		lo = fmt.Sprint(r.min)
	}
	if r.hasMax {
		hi = fmt.Sprint(r.max)
	}
	return lo + ".." + hi
}

type floatRange struct {
	min, max float64
}

// FloatBetween accepts floats in [lo, hi].
func FloatBetween(lo, hi float64) Constraint { return floatRange{min: lo, max: hi} }

func (r floatRange) Check(v Value) error {
	f, ok := v.(Float)
	if !ok {
		return fmt.Errorf("%w: range %s needs float, got %s", ErrValueType, r, v.Kind())
	}
	if float64(f) < r.min {
		return fmt.Errorf("%w: %v < %v", ErrOutOfRange, f, r.min)
	}
	if float64(f) > r.max {
		return fmt.Errorf("%w: %v > %v", ErrOutOfRange, f, r.max)
	}
	return nil
}

func (r floatRange) String() string {
	return fmt.Sprintf("%v..%v", r.min, r.max)
}

// enumeration accepts one of a fixed set of values of a single kind.
type enumeration struct {
	kind    Kind
	allowed []Value
}

// OneOf accepts only the listed values. All values must share one kind;
// OneOf panics otherwise, as trees are built at startup.
func OneOf(values ...Value) Constraint {
	if len(values) == 0 {
		panic("property: OneOf needs at least one value")
	}
	kind := values[0].Kind()
	for _, v := range values[1:] {
		if v.Kind() != kind {
			panic(fmt.Sprintf("property: OneOf mixes %s and %s", kind, v.Kind()))
		}
	}
	allowed := make([]Value, len(values))
	copy(allowed, values)
	return enumeration{kind: kind, allowed: allowed}
}

func (e enumeration) Check(v Value) error {
	if v.Kind() != e.kind {
		return fmt.Errorf("%w: enumeration needs %s, got %s", ErrValueType, e.kind, v.Kind())
	}
	for _, a := range e.allowed {
		if a == v {
			return nil
		}
	}
	return fmt.Errorf("%w: %v not in %s", ErrNotAllowed, v.Any(), e)
}

func (e enumeration) String() string {
	parts := make([]string, len(e.allowed))
	for i, a := range e.allowed {
		parts[i] = fmt.Sprint(a.Any())
	}
	return strings.Join(parts, "|")
}
