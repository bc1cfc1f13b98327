package property

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartrelay/relay-go/pkg/document"
)

type testTree struct {
	root    *Container
	sys     *Container
	test    *Container
	name    *Leaf
	uptime  *Leaf
	testInt *Leaf
	testStr *Leaf
	deep    *Leaf
}

func newTestTree() *testTree {
	tr := &testTree{
		root:    NewContainer(""),
		sys:     NewContainer("sys"),
		test:    NewContainer("test"),
		name:    NewString("name", "relay"),
		uptime:  NewInt("uptime", 0, ReadOnly()),
		testInt: NewInt("int", 0, WithConstraint(Min(0))),
		testStr: NewString("str", "a"),
		deep:    NewBool("flag", false),
	}
	nested := NewContainer("nested").MustAdd(tr.deep)
	tr.sys.MustAdd(tr.name, tr.uptime)
	tr.test.MustAdd(tr.testInt, tr.testStr, nested)
	tr.root.MustAdd(tr.sys, tr.test)
	return tr
}

func TestContainerAddRejectsDuplicates(t *testing.T) {
	c := NewContainer("c")
	require.NoError(t, c.Add(NewInt("a", 1)))

	err := c.Add(NewBool("a", true))
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Len(t, c.Children(), 1)
}

func TestContainerAddRejectsAttachedNode(t *testing.T) {
	a := NewContainer("a")
	b := NewContainer("b")
	leaf := NewInt("x", 1)

	require.NoError(t, a.Add(leaf))
	assert.ErrorIs(t, b.Add(leaf), ErrAlreadyAttached)
	assert.Same(t, a, leaf.Parent())
}

func TestContainerAddRejectsCycles(t *testing.T) {
	root := NewContainer("root")
	child := NewContainer("child")
	root.MustAdd(child)

	assert.ErrorIs(t, child.Add(root), ErrCycle)
	assert.ErrorIs(t, root.Add(root), ErrCycle)
}

func TestContainerAddRejectsBadNames(t *testing.T) {
	c := NewContainer("c")
	assert.ErrorIs(t, c.Add(NewInt("", 1)), ErrInvalidPath)
	assert.ErrorIs(t, c.Add(NewInt("a.b", 1)), ErrInvalidPath)
}

func TestContainerMustAddPanics(t *testing.T) {
	c := NewContainer("c").MustAdd(NewInt("a", 1))
	assert.Panics(t, func() { c.MustAdd(NewInt("a", 2)) })
}

func TestContainerKeepsInsertionOrder(t *testing.T) {
	tr := newTestTree()

	var names []string
	for _, n := range tr.test.Children() {
		names = append(names, n.Name())
	}
	assert.Equal(t, []string{"int", "str", "nested"}, names)
}

func TestContainerFind(t *testing.T) {
	tr := newTestTree()

	tests := []struct {
		path    string
		want    Node
		wantErr error
	}{
		{"test.int", tr.testInt, nil},
		{"sys", tr.sys, nil},
		{"test.nested.flag", tr.deep, nil},
		{"test.missing", nil, ErrNotFound},
		{"nope", nil, ErrNotFound},
		{"test.int.deeper", nil, ErrNotFound},
		{"", nil, ErrInvalidPath},
		{"test..int", nil, ErrInvalidPath},
		{".test", nil, ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := tr.root.Find(tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Same(t, tt.want, got)
		})
	}
}

func TestContainerLeaf(t *testing.T) {
	tr := newTestTree()

	leaf, err := tr.root.Leaf("sys.name")
	require.NoError(t, err)
	assert.Same(t, tr.name, leaf)

	_, err = tr.root.Leaf("sys")
	assert.ErrorIs(t, err, ErrNotLeaf)
}

func TestNodePaths(t *testing.T) {
	tr := newTestTree()

	assert.Equal(t, "", tr.root.Path())
	assert.Equal(t, "sys", tr.sys.Path())
	assert.Equal(t, "test.int", tr.testInt.Path())
	assert.Equal(t, "test.nested.flag", tr.deep.Path())
}

func TestContainerToDocument(t *testing.T) {
	tr := newTestTree()

	doc, err := tr.root.ToDocument(document.NewBuilder(0))
	require.NoError(t, err)
	assert.Equal(t,
		`{"sys":{"name":"relay","uptime":0},"test":{"int":0,"str":"a","nested":{"flag":false}}}`,
		doc.String())
}

func TestContainerSerializeRoundTrip(t *testing.T) {
	tr := newTestTree()
	require.NoError(t, tr.testInt.Set(Int(17)))
	require.NoError(t, tr.deep.Set(Bool(true)))
	require.NoError(t, tr.name.Set(String("kitchen")))

	doc, err := tr.root.ToDocument(nil)
	require.NoError(t, err)

	parsed, err := document.Parse([]byte(doc.String()))
	require.NoError(t, err)

	err = tr.root.Walk(func(path string, l *Leaf) error {
		n, err := tr.root.Find(path)
		require.NoError(t, err)
		assert.Same(t, l, n)

		raw := lookup(t, parsed, path)
		v, err := ValueOf(l.Kind(), raw)
		require.NoError(t, err)
		assert.Equal(t, l.Get(), v, "path %s", path)
		return nil
	})
	require.NoError(t, err)
}

func lookup(t *testing.T, obj *document.Object, path string) any {
	t.Helper()
	node, err := splitPath(path)
	require.NoError(t, err)
	cur := obj
	for i, seg := range node {
		if i == len(node)-1 {
			v, ok := cur.Get(seg)
			require.True(t, ok, "missing %s", path)
			return v
		}
		next, ok := cur.GetObject(seg)
		require.True(t, ok, "missing %s", path)
		cur = next
	}
	return nil
}

func splitPath(path string) ([]string, error) {
	var out []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			if i == start {
				return nil, errors.New("empty segment")
			}
			out = append(out, path[start:i])
			start = i + 1
		}
	}
	return out, nil
}

func TestContainerDirtyIsDerived(t *testing.T) {
	tr := newTestTree()
	assert.False(t, tr.root.IsDirty())

	require.NoError(t, tr.deep.Set(Bool(true)))
	assert.True(t, tr.root.IsDirty())
	assert.True(t, tr.test.IsDirty())
	assert.False(t, tr.sys.IsDirty())

	tr.deep.ClearDirty()
	assert.False(t, tr.root.IsDirty())
}

func TestContainerCollectDirty(t *testing.T) {
	tr := newTestTree()
	require.NoError(t, tr.uptime.Set(Int(12)))
	require.NoError(t, tr.deep.Set(Bool(true)))

	doc, err := tr.root.CollectDirtyDocument(document.NewBuilder(0))
	require.NoError(t, err)
	assert.Equal(t, `{"sys":{"uptime":12},"test":{"nested":{"flag":true}}}`, doc.String())

	// Collecting leaves flags set.
	assert.True(t, tr.uptime.IsDirty())
	assert.True(t, tr.deep.IsDirty())

	tr.root.ClearAllDirty()
	assert.False(t, tr.root.IsDirty())

	doc, err = tr.root.CollectDirtyDocument(nil)
	require.NoError(t, err)
	assert.True(t, doc.IsEmpty())
}

func TestContainerCollectDirtyReportsEmission(t *testing.T) {
	tr := newTestTree()
	obj := document.New()

	emitted, err := tr.sys.CollectDirty(obj)
	require.NoError(t, err)
	assert.False(t, emitted)
	assert.True(t, obj.IsEmpty(), "clean branch must be omitted")

	require.NoError(t, tr.name.Set(String("hall")))
	emitted, err = tr.sys.CollectDirty(obj)
	require.NoError(t, err)
	assert.True(t, emitted)
	assert.Equal(t, `{"sys":{"name":"hall"}}`, obj.String())
}

func TestContainerCapacityExhausted(t *testing.T) {
	tr := newTestTree()

	_, err := tr.root.ToDocument(document.NewBuilder(4))
	assert.ErrorIs(t, err, document.ErrCapacity)
}

func TestContainerWalkStopsOnError(t *testing.T) {
	tr := newTestTree()
	stop := errors.New("stop")

	var visited []string
	err := tr.root.Walk(func(path string, _ *Leaf) error {
		visited = append(visited, path)
		if path == "test.int" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"sys.name", "sys.uptime", "test.int"}, visited)
}
