package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	valid := map[string]APIVersion{
		"1.0":   {1, 0},
		"2.7":   {2, 7},
		"10.23": {10, 23},
		"01.02": {1, 2},
	}
	for in, want := range valid {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "1", "1.", ".1", "abc", "1.0.0", "1.x", "-1.0", "+1.0", "1.70000"} {
		_, err := Parse(in)
		assert.Error(t, err, "%q", in)
	}
}

func TestStringRoundTrip(t *testing.T) {
	v, err := Parse(Current)
	require.NoError(t, err)
	assert.Equal(t, Current, v.String())
	assert.Equal(t, "3.14", APIVersion{3, 14}.String())
}

func TestCompatible(t *testing.T) {
	assert.True(t, APIVersion{1, 0}.Compatible(APIVersion{1, 9}))
	assert.True(t, APIVersion{1, 9}.Compatible(APIVersion{1, 0}))
	assert.False(t, APIVersion{1, 0}.Compatible(APIVersion{2, 0}))
}

func TestSubprotocols(t *testing.T) {
	assert.Equal(t, "smartrelay/1", Subprotocol(1))
	assert.Equal(t, []string{"smartrelay/1"}, SupportedSubprotocols())

	for _, major := range []uint16{0, 1, 12, 65535} {
		got, err := MajorFromSubprotocol(Subprotocol(major))
		require.NoError(t, err)
		assert.Equal(t, major, got)
	}

	for _, in := range []string{"", "mqtt", "smartrelay/", "smartrelay/abc", "smartrelay/-1", "SMARTRELAY/1", "smartrelay/70000"} {
		_, err := MajorFromSubprotocol(in)
		assert.Error(t, err, "%q", in)
	}
}
