package property

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smartrelay/relay-go/pkg/document"
)

// PathSeparator separates segments in node paths.
const PathSeparator = "."

// Tree errors.
var (
	ErrDuplicateName   = errors.New("duplicate property name")
	ErrAlreadyAttached = errors.New("property already has a parent")
	ErrCycle           = errors.New("property would contain itself")
	ErrInvalidPath     = errors.New("invalid property path")
	ErrNotFound        = errors.New("property not found")
	ErrNotLeaf         = errors.New("property is not a leaf")
)

// Node is a property in the tree: either a *Leaf or a *Container.
type Node interface {
	// Name returns the node name, unique among its siblings.
	Name() string

	// Parent returns the owning container, or nil for the root.
	Parent() *Container

	// Path returns the dotted path from the root (the root itself is "").
	Path() string

	// IsDirty reports whether the node, or any leaf below it, changed.
	IsDirty() bool

	// Serialize writes {name: value} into obj.
	Serialize(obj *document.Object) error

	// CollectDirty writes the dirty part of the node into obj and reports
	// whether anything was written.
	CollectDirty(obj *document.Object) (bool, error)

	// ClearAllDirty clears every dirty flag at or below the node.
	ClearAllDirty()

	setParent(c *Container)
}

var (
	_ Node = (*Leaf)(nil)
	_ Node = (*Container)(nil)
)

// Container is a named, ordered group of child properties.
type Container struct {
	name     string
	parent   *Container
	children []Node
	index    map[string]int
}

// NewContainer creates an empty container.
func NewContainer(name string) *Container {
	return &Container{
		name:  name,
		index: make(map[string]int),
	}
}

// Name returns the container name.
func (c *Container) Name() string { return c.name }

// Parent returns the owning container, or nil for the root.
func (c *Container) Parent() *Container { return c.parent }

// Path returns the dotted path from the root.
func (c *Container) Path() string { return pathOf(c) }

func (c *Container) setParent(p *Container) { c.parent = p }

// Add appends a child. The child must be detached, its name must be new
// among the container's children, and a container cannot be added below
// itself.
func (c *Container) Add(n Node) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidPath)
	}
	if n.Name() == "" || strings.Contains(n.Name(), PathSeparator) {
		return fmt.Errorf("%w: child name %q", ErrInvalidPath, n.Name())
	}
	if n.Parent() != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyAttached, n.Path())
	}
	if child, ok := n.(*Container); ok {
		for p := c; p != nil; p = p.parent {
			if p == child {
				return fmt.Errorf("%w: %q", ErrCycle, child.name)
			}
		}
	}
	if _, exists := c.index[n.Name()]; exists {
		return fmt.Errorf("%w: %q in %q", ErrDuplicateName, n.Name(), c.Path())
	}
	c.index[n.Name()] = len(c.children)
	c.children = append(c.children, n)
	n.setParent(c)
	return nil
}

// MustAdd adds every node and panics on error. Intended for building the
// fixed tree at startup.
func (c *Container) MustAdd(nodes ...Node) *Container {
	for _, n := range nodes {
		if err := c.Add(n); err != nil {
			panic(fmt.Sprintf("property: %v", err))
		}
	}
	return c
}

// Children returns the children in insertion order.
func (c *Container) Children() []Node {
	out := make([]Node, len(c.children))
	copy(out, c.children)
	return out
}

// Child returns the direct child with the given name.
func (c *Container) Child(name string) (Node, bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.children[i], true
}

// Find resolves a dotted path relative to c.
func (c *Container) Find(path string) (Node, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segments := strings.Split(path, PathSeparator)
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}

	var node Node = c
	for _, seg := range segments {
		cont, ok := node.(*Container)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
		}
		child, ok := cont.Child(seg)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
		}
		node = child
	}
	return node, nil
}

// Leaf resolves a dotted path that must end at a leaf.
func (c *Container) Leaf(path string) (*Leaf, error) {
	n, err := c.Find(path)
	if err != nil {
		return nil, err
	}
	l, ok := n.(*Leaf)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotLeaf, path)
	}
	return l, nil
}

// IsDirty reports whether any leaf below c is dirty.
func (c *Container) IsDirty() bool {
	for _, child := range c.children {
		if child.IsDirty() {
			return true
		}
	}
	return false
}

// ToDocument returns a new object holding the serialized children of c.
func (c *Container) ToDocument(b *document.Builder) (*document.Object, error) {
	obj, err := b.NewObject()
	if err != nil {
		return nil, err
	}
	if err := c.serializeChildren(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Serialize writes {name: {children...}} into obj.
func (c *Container) Serialize(obj *document.Object) error {
	nested, err := obj.SetObject(c.name)
	if err != nil {
		return err
	}
	return c.serializeChildren(nested)
}

func (c *Container) serializeChildren(obj *document.Object) error {
	for _, child := range c.children {
		if err := child.Serialize(obj); err != nil {
			return err
		}
	}
	return nil
}

// CollectDirty writes the dirty leaves below c into obj, nested under the
// container's name. Branches without dirty leaves are omitted and cost no
// document space. Dirty flags are left set.
func (c *Container) CollectDirty(obj *document.Object) (bool, error) {
	if !c.IsDirty() {
		return false, nil
	}
	nested, err := obj.SetObject(c.name)
	if err != nil {
		return false, err
	}
	return c.collectChildren(nested)
}

// CollectDirtyDocument collects the dirty leaves below c into a new object
// without wrapping them in c's own name.
func (c *Container) CollectDirtyDocument(b *document.Builder) (*document.Object, error) {
	obj, err := b.NewObject()
	if err != nil {
		return nil, err
	}
	if _, err := c.collectChildren(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (c *Container) collectChildren(obj *document.Object) (bool, error) {
	emitted := false
	for _, child := range c.children {
		ok, err := child.CollectDirty(obj)
		if err != nil {
			return false, err
		}
		emitted = emitted || ok
	}
	return emitted, nil
}

// ClearAllDirty clears the dirty flag of every leaf below c.
func (c *Container) ClearAllDirty() {
	for _, child := range c.children {
		child.ClearAllDirty()
	}
}

// Walk calls fn for every leaf below c in depth-first insertion order.
// The path passed to fn is relative to c. Walk stops at the first error.
func (c *Container) Walk(fn func(path string, l *Leaf) error) error {
	return c.walk("", fn)
}

func (c *Container) walk(prefix string, fn func(string, *Leaf) error) error {
	for _, child := range c.children {
		path := child.Name()
		if prefix != "" {
			path = prefix + PathSeparator + path
		}
		switch n := child.(type) {
		case *Leaf:
			if err := fn(path, n); err != nil {
				return err
			}
		case *Container:
			if err := n.walk(path, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// pathOf builds the dotted path of n. The root contributes no segment.
func pathOf(n Node) string {
	var segments []string
	for cur := n; cur.Parent() != nil; cur = cur.Parent() {
		segments = append(segments, cur.Name())
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, PathSeparator)
}
