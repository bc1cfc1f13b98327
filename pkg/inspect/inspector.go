// Package inspect provides read-only inspection of a property tree for
// interactive tools.
package inspect

import (
	"errors"
	"fmt"

	"github.com/smartrelay/relay-go/pkg/property"
)

// ErrNoTree is returned when the inspector has no root.
var ErrNoTree = errors.New("no property tree")

// LeafInfo describes a single leaf.
type LeafInfo struct {
	Path       string
	Value      property.Value
	Kind       property.Kind
	Access     property.Access
	Unit       string
	Constraint string
	Dirty      bool
}

// Inspector reads a property tree. It holds no locks; callers serialize
// access the same way they do for the tree itself.
type Inspector struct {
	root *property.Container
}

// NewInspector creates an inspector for root.
func NewInspector(root *property.Container) *Inspector {
	return &Inspector{root: root}
}

// Root returns the inspected tree.
func (i *Inspector) Root() *property.Container {
	return i.root
}

// Read returns information about the leaf at path.
func (i *Inspector) Read(path string) (LeafInfo, error) {
	if i.root == nil {
		return LeafInfo{}, ErrNoTree
	}
	leaf, err := i.root.Leaf(path)
	if err != nil {
		return LeafInfo{}, err
	}
	return leafInfo(path, leaf), nil
}

// Leaves returns every leaf at or below path in tree order. An empty path
// selects the whole tree.
func (i *Inspector) Leaves(path string) ([]LeafInfo, error) {
	if i.root == nil {
		return nil, ErrNoTree
	}

	start := i.root
	if path != "" {
		node, err := i.root.Find(path)
		if err != nil {
			return nil, err
		}
		switch n := node.(type) {
		case *property.Leaf:
			return []LeafInfo{leafInfo(path, n)}, nil
		case *property.Container:
			start = n
		default:
			return nil, fmt.Errorf("unexpected node %T at %q", node, path)
		}
	}

	var out []LeafInfo
	err := start.Walk(func(rel string, l *property.Leaf) error {
		full := rel
		if path != "" {
			full = path + property.PathSeparator + rel
		}
		out = append(out, leafInfo(full, l))
		return nil
	})
	return out, err
}

// DirtyPaths returns the paths of leaves with unreported changes.
func (i *Inspector) DirtyPaths() []string {
	if i.root == nil {
		return nil
	}
	var out []string
	_ = i.root.Walk(func(path string, l *property.Leaf) error {
		if l.IsDirty() {
			out = append(out, path)
		}
		return nil
	})
	return out
}

func leafInfo(path string, l *property.Leaf) LeafInfo {
	info := LeafInfo{
		Path:   path,
		Value:  l.Get(),
		Kind:   l.Kind(),
		Access: l.Access(),
		Unit:   l.Unit(),
		Dirty:  l.IsDirty(),
	}
	if c := l.Constraint(); c != nil {
		info.Constraint = c.String()
	}
	return info
}
