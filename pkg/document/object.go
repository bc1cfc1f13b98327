package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Document errors.
var (
	ErrCapacity         = errors.New("document capacity exhausted")
	ErrUnsupportedValue = errors.New("unsupported document value")
	ErrNotObject        = errors.New("document is not an object")
)

// Builder allocates objects from a pool of slots.
// A nil Builder is valid and allocates without limit.
type Builder struct {
	capacity int
	used     int
}

// NewBuilder creates a builder holding capacity slots.
// A capacity of zero or less means unbounded.
func NewBuilder(capacity int) *Builder {
	if capacity < 0 {
		capacity = 0
	}
	return &Builder{capacity: capacity}
}

// NewObject allocates an empty object.
func (b *Builder) NewObject() (*Object, error) {
	if err := b.reserve(1); err != nil {
		return nil, err
	}
	return &Object{builder: b, values: make(map[string]any)}, nil
}

// Capacity returns the configured slot count (0 for unbounded).
func (b *Builder) Capacity() int {
	if b == nil {
		return 0
	}
	return b.capacity
}

// Used returns the number of slots allocated so far.
func (b *Builder) Used() int {
	if b == nil {
		return 0
	}
	return b.used
}

// Reset releases every slot. Objects allocated before the reset must not be
// used afterwards.
func (b *Builder) Reset() {
	if b != nil {
		b.used = 0
	}
}

func (b *Builder) reserve(n int) error {
	if b == nil {
		return nil
	}
	if b.capacity > 0 && b.used+n > b.capacity {
		return fmt.Errorf("%w: %d of %d slots used", ErrCapacity, b.used, b.capacity)
	}
	b.used += n
	return nil
}

// Object is an ordered string-keyed map of scalars, arrays and nested objects.
type Object struct {
	builder *Builder
	keys    []string
	values  map[string]any
}

// New returns an unbounded standalone object.
func New() *Object {
	return &Object{values: make(map[string]any)}
}

// Builder returns the builder the object was allocated from (may be nil).
func (o *Object) Builder() *Builder {
	return o.builder
}

// Set stores value under key. A new key costs one slot; replacing an
// existing key keeps its position.
//
// Accepted values: nil, bool, Go integers, float32/float64, string,
// json.Number, *Object and []any of those.
func (o *Object) Set(key string, value any) error {
	v, err := normalize(value)
	if err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, exists := o.values[key]; !exists {
		if err := o.builder.reserve(1); err != nil {
			return err
		}
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
	return nil
}

// SetObject creates a nested object under key and returns it.
func (o *Object) SetObject(key string) (*Object, error) {
	child, err := o.builder.NewObject()
	if err != nil {
		return nil, err
	}
	if err := o.Set(key, child); err != nil {
		return nil, err
	}
	return child, nil
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// GetObject returns the nested object stored under key.
func (o *Object) GetObject(key string) (*Object, bool) {
	v, ok := o.Get(key)
	if !ok {
		return nil, false
	}
	child, ok := v.(*Object)
	return child, ok
}

// GetString returns the string stored under key.
func (o *Object) GetString(key string) (string, bool) {
	v, ok := o.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	return keys
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// IsEmpty reports whether the object has no keys.
func (o *Object) IsEmpty() bool {
	return o.Len() == 0
}

// Map converts the object into plain Go maps. Nested objects become
// map[string]any and json.Number values become int64 or float64.
func (o *Object) Map() map[string]any {
	if o == nil {
		return nil
	}
	m := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		m[k] = plain(o.values[k])
	}
	return m
}

// String returns the JSON form of the object.
func (o *Object) String() string {
	data, err := o.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid document: %v>", err)
	}
	return string(data)
}

func plain(v any) any {
	switch t := v.(type) {
	case *Object:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	default:
		return v
	}
}

// normalize maps accepted Go values onto the canonical document types:
// int64, uint64 (only above MaxInt64), float64, bool, string, json.Number,
// *Object, []any and nil.
func normalize(value any) (any, error) {
	switch v := value.(type) {
	case nil, bool, string, int64, float64, json.Number:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return normalizeUint(uint64(v)), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return normalizeUint(v), nil
	case float32:
		return float64(v), nil
	case *Object:
		if v == nil {
			return nil, fmt.Errorf("%w: nil object", ErrUnsupportedValue)
		}
		return v, nil
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}
}

func normalizeUint(v uint64) any {
	if v <= math.MaxInt64 {
		return int64(v)
	}
	return v
}
