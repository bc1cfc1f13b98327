package log

import (
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Event files use canonical CBOR with RFC 3339 timestamps so two captures of
// the same session compare byte for byte. Payload maps decode with string
// keys, which keeps them exportable as JSON.
var (
	eventEnc = mustEncMode(cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	})
	eventDec = mustDecMode(cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyQuiet,
		IndefLength:    cbor.IndefLengthAllowed,
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	m, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("log: cbor encode options: %v", err))
	}
	return m
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	m, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("log: cbor decode options: %v", err))
	}
	return m
}

// EncodeEvent returns the CBOR encoding of event.
func EncodeEvent(event Event) ([]byte, error) {
	return eventEnc.Marshal(event)
}

// DecodeEvent decodes a single CBOR encoded event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	err := eventDec.Unmarshal(data, &event)
	return event, err
}

// NewDecoder returns a decoder reading a stream of events from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return eventDec.NewDecoder(r)
}
