package document

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// CBOR major type for maps.
const cborMajorMap = 5

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	cborEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create document CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyEnforcedAPF,
		IndefLength:    cbor.IndefLengthForbidden,
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}
	cborDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create document CBOR decoder mode: %v", err))
	}
}

// MarshalCBOR encodes the object as a definite-length CBOR map with keys in
// insertion order.
func (o *Object) MarshalCBOR() ([]byte, error) {
	if o == nil {
		return []byte{0xf6}, nil // null
	}
	var buf bytes.Buffer
	writeHead(&buf, cborMajorMap, uint64(len(o.keys)))
	for _, k := range o.keys {
		key, err := cborEncMode.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)

		val, err := cborEncMode.Marshal(cborValue(o.values[k]))
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(val)
	}
	return buf.Bytes(), nil
}

// cborValue converts json.Number into a native number; everything else
// already encodes as intended (*Object through MarshalCBOR).
func cborValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		return plain(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cborValue(e)
		}
		return out
	default:
		return v
	}
}

// UnmarshalCBOR decodes a definite-length CBOR map with text keys, keeping
// key order. Maps nested inside arrays are ordered by key.
func (o *Object) UnmarshalCBOR(data []byte) error {
	n, rest, err := readMapHead(data)
	if err != nil {
		return err
	}

	parsed := New()
	dec := cborDecMode.NewDecoder(bytes.NewReader(rest))
	for i := uint64(0); i < n; i++ {
		var key string
		if err := dec.Decode(&key); err != nil {
			return fmt.Errorf("map key %d: %w", i, err)
		}
		var raw cbor.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}

		var val any
		if len(raw) > 0 && raw[0]>>5 == cborMajorMap {
			child := New()
			if err := child.UnmarshalCBOR(raw); err != nil {
				return fmt.Errorf("key %q: %w", key, err)
			}
			val = child
		} else {
			var v any
			if err := cborDecMode.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("key %q: %w", key, err)
			}
			if val, err = fromDecoded(v); err != nil {
				return fmt.Errorf("key %q: %w", key, err)
			}
		}
		if err := parsed.Set(key, val); err != nil {
			return err
		}
	}

	o.keys = parsed.keys
	o.values = parsed.values
	return nil
}

// ParseCBOR decodes a CBOR document whose top level must be a map.
func ParseCBOR(data []byte) (*Object, error) {
	obj := New()
	if err := obj.UnmarshalCBOR(data); err != nil {
		return nil, err
	}
	return obj, nil
}

func fromDecoded(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := New()
		for _, k := range keys {
			child, err := fromDecoded(t[k])
			if err != nil {
				return nil, err
			}
			if err := obj.Set(k, child); err != nil {
				return nil, err
			}
		}
		return obj, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			c, err := fromDecoded(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	default:
		return normalize(v)
	}
}

func writeHead(buf *bytes.Buffer, major byte, n uint64) {
	m := major << 5
	switch {
	case n < 24:
		buf.WriteByte(m | byte(n))
	case n <= math.MaxUint8:
		buf.WriteByte(m | 24)
		buf.WriteByte(byte(n))
	case n <= math.MaxUint16:
		buf.WriteByte(m | 25)
		_ = binary.Write(buf, binary.BigEndian, uint16(n))
	case n <= math.MaxUint32:
		buf.WriteByte(m | 26)
		_ = binary.Write(buf, binary.BigEndian, uint32(n))
	default:
		buf.WriteByte(m | 27)
		_ = binary.Write(buf, binary.BigEndian, n)
	}
}

func readMapHead(data []byte) (uint64, []byte, error) {
	if len(data) == 0 {
		return 0, nil, io.ErrUnexpectedEOF
	}
	if data[0]>>5 != cborMajorMap {
		return 0, nil, fmt.Errorf("%w: CBOR major type %d", ErrNotObject, data[0]>>5)
	}
	info := data[0] & 0x1f
	need := map[byte]int{24: 1, 25: 2, 26: 4, 27: 8}
	switch {
	case info < 24:
		return uint64(info), data[1:], nil
	case info <= 27:
		size := need[info]
		if len(data) < 1+size {
			return 0, nil, io.ErrUnexpectedEOF
		}
		var n uint64
		for _, b := range data[1 : 1+size] {
			n = n<<8 | uint64(b)
		}
		return n, data[1+size:], nil
	default:
		return 0, nil, fmt.Errorf("unsupported CBOR map length encoding %d", info)
	}
}
