package property

import (
	"errors"
	"fmt"
	"math"

	"github.com/smartrelay/relay-go/pkg/document"
)

// Access flags for leaves.
type Access uint8

const (
	// AccessRead allows reading the leaf.
	AccessRead Access = 1 << iota

	// AccessWrite allows writing the leaf through Write.
	AccessWrite

	// AccessReadOnly can be read but only changed by device logic.
	AccessReadOnly = AccessRead

	// AccessReadWrite can be read and written remotely.
	AccessReadWrite = AccessRead | AccessWrite
)

// CanRead returns true if reading is allowed.
func (a Access) CanRead() bool { return a&AccessRead != 0 }

// CanWrite returns true if remote writes are allowed.
func (a Access) CanWrite() bool { return a&AccessWrite != 0 }

// String returns the access flags as a string.
func (a Access) String() string {
	var s string
	if a.CanRead() {
		s += "R"
	}
	if a.CanWrite() {
		s += "W"
	}
	if s == "" {
		return "-"
	}
	return s
}

// Leaf errors.
var (
	ErrReadOnly = errors.New("property is read-only")
)

// Leaf is a named property holding a single typed value.
type Leaf struct {
	name       string
	parent     *Container
	value      Value
	constraint Constraint
	access     Access
	unit       string
	dirty      bool
}

// LeafOption configures a leaf at construction.
type LeafOption func(*Leaf)

// WithConstraint sets the constraint checked on every change.
func WithConstraint(c Constraint) LeafOption {
	return func(l *Leaf) { l.constraint = c }
}

// ReadOnly rejects remote writes. Device logic can still call Set.
func ReadOnly() LeafOption {
	return func(l *Leaf) { l.access = AccessReadOnly }
}

// WithUnit records the unit of measurement ("s", "W").
func WithUnit(unit string) LeafOption {
	return func(l *Leaf) { l.unit = unit }
}

// NewLeaf creates a leaf holding initial. The initial value is not checked
// against the constraint and the leaf starts clean.
func NewLeaf(name string, initial Value, opts ...LeafOption) *Leaf {
	if initial == nil {
		panic(fmt.Sprintf("property: leaf %q needs an initial value", name))
	}
	l := &Leaf{
		name:   name,
		value:  initial,
		access: AccessReadWrite,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewInt creates an integer leaf.
func NewInt(name string, initial int64, opts ...LeafOption) *Leaf {
	return NewLeaf(name, Int(initial), opts...)
}

// NewFloat creates a float leaf.
func NewFloat(name string, initial float64, opts ...LeafOption) *Leaf {
	return NewLeaf(name, Float(initial), opts...)
}

// NewBool creates a boolean leaf.
func NewBool(name string, initial bool, opts ...LeafOption) *Leaf {
	return NewLeaf(name, Bool(initial), opts...)
}

// NewString creates a string leaf.
func NewString(name string, initial string, opts ...LeafOption) *Leaf {
	return NewLeaf(name, String(initial), opts...)
}

// Name returns the leaf name.
func (l *Leaf) Name() string { return l.name }

// Parent returns the owning container, or nil when detached.
func (l *Leaf) Parent() *Container { return l.parent }

// Path returns the dotted path from the root.
func (l *Leaf) Path() string { return pathOf(l) }

// Kind returns the kind of the leaf's value.
func (l *Leaf) Kind() Kind { return l.value.Kind() }

// Access returns the access flags.
func (l *Leaf) Access() Access { return l.access }

// Constraint returns the constraint, or nil.
func (l *Leaf) Constraint() Constraint { return l.constraint }

// Unit returns the unit of measurement, if any.
func (l *Leaf) Unit() string { return l.unit }

// Get returns the current value.
func (l *Leaf) Get() Value { return l.value }

// Int returns the value of an integer leaf (0 for other kinds).
func (l *Leaf) Int() int64 {
	v, _ := l.value.(Int)
	return int64(v)
}

// Float returns the value of a float leaf (0 for other kinds).
func (l *Leaf) Float() float64 {
	v, _ := l.value.(Float)
	return float64(v)
}

// Bool returns the value of a boolean leaf (false for other kinds).
func (l *Leaf) Bool() bool {
	v, _ := l.value.(Bool)
	return bool(v)
}

// Text returns the value of a string leaf ("" for other kinds).
func (l *Leaf) Text() string {
	v, _ := l.value.(String)
	return string(v)
}

// Set validates v and stores it. The leaf is marked dirty only when the
// value actually changes. On error the value is left unchanged.
func (l *Leaf) Set(v Value) error {
	if err := l.validate(v); err != nil {
		return err
	}
	if l.value != v {
		l.value = v
		l.dirty = true
	}
	return nil
}

// Write is Set for remote callers: it fails with ErrReadOnly on leaves that
// are not writable.
func (l *Leaf) Write(v Value) error {
	if !l.access.CanWrite() {
		return fmt.Errorf("%w: %s", ErrReadOnly, l.Path())
	}
	return l.Set(v)
}

// SetAny converts raw to the leaf's kind and calls Set.
func (l *Leaf) SetAny(raw any) error {
	v, err := ValueOf(l.Kind(), raw)
	if err != nil {
		return err
	}
	return l.Set(v)
}

// WriteAny converts raw to the leaf's kind and calls Write.
func (l *Leaf) WriteAny(raw any) error {
	v, err := ValueOf(l.Kind(), raw)
	if err != nil {
		return err
	}
	return l.Write(v)
}

// Restore replaces the value without marking the leaf dirty. Used when the
// device loads values that the controller already knows about.
func (l *Leaf) Restore(v Value) error {
	if err := l.validate(v); err != nil {
		return err
	}
	l.value = v
	return nil
}

func (l *Leaf) validate(v Value) error {
	if v == nil {
		return fmt.Errorf("%w: nil value", ErrValueType)
	}
	if v.Kind() != l.value.Kind() {
		return fmt.Errorf("%w: %s expects %s, got %s", ErrValueType, l.name, l.value.Kind(), v.Kind())
	}
	if f, ok := v.(Float); ok && (math.IsNaN(float64(f)) || math.IsInf(float64(f), 0)) {
		return fmt.Errorf("%w: %v is not finite", ErrValueType, f)
	}
	if l.constraint != nil {
		if err := l.constraint.Check(v); err != nil {
			return err
		}
	}
	return nil
}

// IsDirty returns true if the value changed since the last ClearDirty call.
func (l *Leaf) IsDirty() bool { return l.dirty }

// ClearDirty clears the dirty flag.
func (l *Leaf) ClearDirty() { l.dirty = false }

// ClearAllDirty clears the dirty flag; it lets a Leaf stand in for a Node.
func (l *Leaf) ClearAllDirty() { l.dirty = false }

// Serialize writes {name: value} into obj. The dirty flag is not consulted.
func (l *Leaf) Serialize(obj *document.Object) error {
	return obj.Set(l.name, l.value.Any())
}

// CollectDirty writes the leaf into obj if it is dirty.
func (l *Leaf) CollectDirty(obj *document.Object) (bool, error) {
	if !l.dirty {
		return false, nil
	}
	if err := l.Serialize(obj); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Leaf) setParent(c *Container) { l.parent = c }
