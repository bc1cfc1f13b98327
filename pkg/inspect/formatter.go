package inspect

import (
	"fmt"
	"strings"

	"github.com/smartrelay/relay-go/pkg/document"
	"github.com/smartrelay/relay-go/pkg/property"
)

// Formatter formats inspection output.
type Formatter struct {
	// ShowMetadata includes kind, access, and constraint information
	ShowMetadata bool

	// IndentWidth is the number of spaces per indent level
	IndentWidth int
}

// NewFormatter creates a new Formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		ShowMetadata: true,
		IndentWidth:  2,
	}
}

// Indent returns the content with indentation.
func (f *Formatter) Indent(depth int, content string) string {
	width := f.IndentWidth
	if width == 0 {
		width = 2
	}
	return strings.Repeat(" ", depth*width) + content
}

// FormatValue formats a value for display.
func (f *Formatter) FormatValue(value any, unit string) string {
	if v, ok := value.(property.Value); ok {
		value = v.Any()
	}

	var s string
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	case float64:
		s = fmt.Sprintf("%g", v)
	case *document.Object:
		return v.String()
	default:
		s = fmt.Sprintf("%v", v)
	}
	if unit != "" {
		s += " " + unit
	}
	return s
}

// FormatLeaf formats one leaf as "path = value (kind, access, constraint)".
// Leaves with unreported changes are marked with "*".
func (f *Formatter) FormatLeaf(info LeafInfo) string {
	var sb strings.Builder
	sb.WriteString(info.Path)
	sb.WriteString(" = ")
	sb.WriteString(f.FormatValue(info.Value, info.Unit))
	if f.ShowMetadata {
		sb.WriteString(" (")
		sb.WriteString(info.Kind.String())
		sb.WriteString(", ")
		sb.WriteString(info.Access.String())
		if info.Constraint != "" {
			sb.WriteString(", ")
			sb.WriteString(info.Constraint)
		}
		sb.WriteString(")")
	}
	if info.Dirty {
		sb.WriteString(" *")
	}
	return sb.String()
}

// FormatLeaves formats leaves one per line.
func (f *Formatter) FormatLeaves(leaves []LeafInfo) string {
	if len(leaves) == 0 {
		return "  (no properties)\n"
	}
	var sb strings.Builder
	for _, info := range leaves {
		sb.WriteString(f.Indent(1, f.FormatLeaf(info)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatTree formats the tree below c with one line per node.
func (f *Formatter) FormatTree(c *property.Container) string {
	var sb strings.Builder
	f.formatContainer(&sb, c, 0)
	return sb.String()
}

func (f *Formatter) formatContainer(sb *strings.Builder, c *property.Container, depth int) {
	for _, child := range c.Children() {
		switch n := child.(type) {
		case *property.Container:
			sb.WriteString(f.Indent(depth, n.Name()+":\n"))
			f.formatContainer(sb, n, depth+1)
		case *property.Leaf:
			info := leafInfo(n.Name(), n)
			sb.WriteString(f.Indent(depth, f.FormatLeaf(info)))
			sb.WriteString("\n")
		}
	}
}

// FormatDocument formats a document as indented "key: value" lines, such
// as the payload of an update notification.
func (f *Formatter) FormatDocument(doc *document.Object) string {
	var sb strings.Builder
	f.formatObject(&sb, doc, 0)
	return sb.String()
}

func (f *Formatter) formatObject(sb *strings.Builder, obj *document.Object, depth int) {
	for _, key := range obj.Keys() {
		v, _ := obj.Get(key)
		if child, ok := v.(*document.Object); ok {
			sb.WriteString(f.Indent(depth, key+":\n"))
			f.formatObject(sb, child, depth+1)
			continue
		}
		sb.WriteString(f.Indent(depth, key+": "+f.FormatValue(v, "")))
		sb.WriteString("\n")
	}
}
