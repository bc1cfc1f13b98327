package property

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/smartrelay/relay-go/pkg/document"
)

func TestLeafBasics(t *testing.T) {
	leaf := NewInt("int", 42, WithConstraint(Between(0, 100)), WithUnit("W"))

	t.Run("Name", func(t *testing.T) {
		if leaf.Name() != "int" {
			t.Errorf("expected name int, got %s", leaf.Name())
		}
	})

	t.Run("InitialValue", func(t *testing.T) {
		if leaf.Get() != Int(42) {
			t.Errorf("expected 42, got %v", leaf.Get())
		}
		if leaf.IsDirty() {
			t.Error("new leaf should start clean")
		}
	})

	t.Run("Set", func(t *testing.T) {
		if err := leaf.Set(Int(50)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if leaf.Int() != 50 {
			t.Errorf("expected 50, got %d", leaf.Int())
		}
		if !leaf.IsDirty() {
			t.Error("expected dirty after Set")
		}
	})

	t.Run("Metadata", func(t *testing.T) {
		if leaf.Unit() != "W" {
			t.Errorf("expected unit W, got %q", leaf.Unit())
		}
		if leaf.Kind() != KindInt {
			t.Errorf("expected KindInt, got %s", leaf.Kind())
		}
		if leaf.Constraint().String() != "0..100" {
			t.Errorf("unexpected constraint %s", leaf.Constraint())
		}
	})
}

func TestLeafSetSameValueKeepsDirtyFlag(t *testing.T) {
	leaf := NewInt("int", 7)

	if err := leaf.Set(Int(7)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if leaf.IsDirty() {
		t.Error("setting the same value must not mark dirty")
	}

	_ = leaf.Set(Int(8))
	leaf.ClearDirty()
	_ = leaf.Set(Int(8))
	if leaf.IsDirty() {
		t.Error("unchanged value after clear must stay clean")
	}

	_ = leaf.Set(Int(9))
	_ = leaf.Set(Int(9))
	if !leaf.IsDirty() {
		t.Error("dirty flag must survive a repeated identical Set")
	}
}

func TestLeafClearDirtyIdempotent(t *testing.T) {
	leaf := NewBool("bool", false)
	_ = leaf.Set(Bool(true))

	leaf.ClearDirty()
	if leaf.IsDirty() {
		t.Error("expected clean after first ClearDirty")
	}
	leaf.ClearDirty()
	if leaf.IsDirty() {
		t.Error("expected clean after second ClearDirty")
	}
}

func TestLeafRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		leaf    *Leaf
		value   Value
		wantErr error
	}{
		{"below min", NewInt("n", 5, WithConstraint(Min(0))), Int(-1), ErrOutOfRange},
		{"above max", NewInt("n", 5, WithConstraint(Max(10))), Int(11), ErrOutOfRange},
		{"float above", NewFloat("f", 1, WithConstraint(FloatBetween(0, 100))), Float(100.5), ErrOutOfRange},
		{"enum miss", NewString("s", "off", WithConstraint(OneOf(String("off"), String("on")))), String("auto"), ErrNotAllowed},
		{"wrong kind", NewInt("n", 5), String("five"), ErrValueType},
		{"nil", NewInt("n", 5), nil, ErrValueType},
		{"nan", NewFloat("f", 1), Float(math.NaN()), ErrValueType},
		{"inf", NewFloat("f", 1), Float(math.Inf(1)), ErrValueType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.leaf.Get()
			err := tt.leaf.Set(tt.value)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Set(%v) error = %v, want %v", tt.value, err, tt.wantErr)
			}
			if tt.leaf.Get() != before {
				t.Errorf("value changed to %v after rejected Set", tt.leaf.Get())
			}
			if tt.leaf.IsDirty() {
				t.Error("rejected Set must not mark dirty")
			}
		})
	}
}

func TestLeafRangeBoundaries(t *testing.T) {
	leaf := NewInt("ranged", 50, WithConstraint(Between(10, 100)))

	tests := []struct {
		name    string
		value   int64
		wantErr bool
	}{
		{"in range", 50, false},
		{"at min", 10, false},
		{"at max", 100, false},
		{"below min", 5, true},
		{"above max", 150, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := leaf.Set(Int(tt.value))
			if (err != nil) != tt.wantErr {
				t.Errorf("Set(%d) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestLeafWriteReadOnly(t *testing.T) {
	leaf := NewInt("uptime", 0, ReadOnly())

	err := leaf.Write(Int(5))
	if !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
	if leaf.Int() != 0 {
		t.Errorf("read-only leaf changed to %d", leaf.Int())
	}

	// Device logic still updates read-only leaves.
	if err := leaf.Set(Int(5)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if leaf.Int() != 5 || !leaf.IsDirty() {
		t.Errorf("expected 5 and dirty, got %d dirty=%v", leaf.Int(), leaf.IsDirty())
	}
	if leaf.Access().String() != "R" {
		t.Errorf("expected access R, got %s", leaf.Access())
	}
}

func TestLeafRestoreDoesNotMarkDirty(t *testing.T) {
	leaf := NewString("name", "a")

	if err := leaf.Restore(String("b")); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if leaf.Text() != "b" {
		t.Errorf("expected b, got %q", leaf.Text())
	}
	if leaf.IsDirty() {
		t.Error("Restore must not mark dirty")
	}
	if err := leaf.Restore(Int(1)); !errors.Is(err, ErrValueType) {
		t.Errorf("expected ErrValueType, got %v", err)
	}
}

func TestLeafSetAny(t *testing.T) {
	tests := []struct {
		name    string
		leaf    *Leaf
		raw     any
		want    Value
		wantErr bool
	}{
		{"json int", NewInt("n", 0), json.Number("12"), Int(12), false},
		{"json integral float", NewInt("n", 0), json.Number("12.0"), Int(12), false},
		{"json fraction", NewInt("n", 0), json.Number("12.5"), nil, true},
		{"go int", NewInt("n", 0), 3, Int(3), false},
		{"float64 to int", NewInt("n", 0), float64(4), Int(4), false},
		{"int to float", NewFloat("f", 0), 3, Float(3), false},
		{"json float", NewFloat("f", 0), json.Number("2.5"), Float(2.5), false},
		{"bool", NewBool("b", false), true, Bool(true), false},
		{"bool from string", NewBool("b", false), "true", nil, true},
		{"string", NewString("s", ""), "x", String("x"), false},
		{"string from number", NewString("s", ""), json.Number("1"), nil, true},
		{"int from nil", NewInt("n", 0), nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.leaf.SetAny(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetAny(%v) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && tt.leaf.Get() != tt.want {
				t.Errorf("got %v, want %v", tt.leaf.Get(), tt.want)
			}
		})
	}
}

func TestLeafSerialize(t *testing.T) {
	leaf := NewFloat("ratio", 0.5)
	obj := document.New()

	if err := leaf.Serialize(obj); err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if got := obj.String(); got != `{"ratio":0.5}` {
		t.Errorf("unexpected document %s", got)
	}
	if leaf.IsDirty() {
		t.Error("Serialize must not touch the dirty flag")
	}
}

func TestOneOfPanicsOnMixedKinds(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	OneOf(String("a"), Int(1))
}

func TestIntEnumeration(t *testing.T) {
	leaf := NewInt("speed", 1, WithConstraint(OneOf(Int(1), Int(2), Int(4))))

	if err := leaf.Set(Int(4)); err != nil {
		t.Errorf("Set(4) failed: %v", err)
	}
	if err := leaf.Set(Int(3)); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("expected ErrNotAllowed, got %v", err)
	}
	if got := leaf.Constraint().String(); got != "1|2|4" {
		t.Errorf("unexpected constraint string %q", got)
	}
}
