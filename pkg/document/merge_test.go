package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeDeep(t *testing.T) {
	dst, err := Parse([]byte(`{"relay":false,"sys":{"name":"a","uptime":1},"test":{"int":0}}`))
	require.NoError(t, err)
	src, err := Parse([]byte(`{"sys":{"uptime":5},"relay":true,"power":{"w":12.5}}`))
	require.NoError(t, err)

	require.NoError(t, Merge(dst, src))

	assert.Equal(t,
		`{"relay":true,"sys":{"name":"a","uptime":5},"test":{"int":0},"power":{"w":12.5}}`,
		dst.String())
}

func TestMergeReplacesScalarWithObject(t *testing.T) {
	dst, err := Parse([]byte(`{"a":1}`))
	require.NoError(t, err)
	src, err := Parse([]byte(`{"a":{"b":2}}`))
	require.NoError(t, err)

	require.NoError(t, Merge(dst, src))
	assert.Equal(t, `{"a":{"b":2}}`, dst.String())
}

func TestMergeCopiesValues(t *testing.T) {
	dst := New()
	src, err := Parse([]byte(`{"nested":{"x":[1,{"y":2}]}}`))
	require.NoError(t, err)

	require.NoError(t, Merge(dst, src))

	nested, _ := src.GetObject("nested")
	require.NoError(t, nested.Set("x", "changed"))
	assert.Equal(t, `{"nested":{"x":[1,{"y":2}]}}`, dst.String())
}

func TestMergeRespectsCapacity(t *testing.T) {
	b := NewBuilder(2)
	dst, err := b.NewObject()
	require.NoError(t, err)
	src, err := Parse([]byte(`{"a":1,"b":2,"c":3}`))
	require.NoError(t, err)

	assert.ErrorIs(t, Merge(dst, src), ErrCapacity)
}

func TestClone(t *testing.T) {
	src, err := Parse([]byte(`{"sys":{"name":"porch"}}`))
	require.NoError(t, err)

	c, err := Clone(nil, src)
	require.NoError(t, err)
	assert.Equal(t, src.String(), c.String())

	sys, _ := c.GetObject("sys")
	require.NoError(t, sys.Set("name", "hall"))
	assert.Equal(t, `{"sys":{"name":"porch"}}`, src.String())
}
