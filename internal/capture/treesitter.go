//go:build cgo

package capture

// Compiled when cgo is available. Fragments are parsed with the tree-sitter
// Go grammar, which tolerates declarations without a package clause and
// partial code.
//
// Grammar: github.com/smacker/go-tree-sitter/golang

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/dshills/codegraph/pkg/types"
)

// BuildMode describes which capturer New returns
const BuildMode = "treesitter"

// New returns the preferred capturer for this build
func New() Capturer {
	return NewTreeSitterCapturer()
}

// TreeSitterCapturer captures references from a tree-sitter syntax tree
type TreeSitterCapturer struct {
	language *sitter.Language
}

// NewTreeSitterCapturer creates a capturer for Go fragments
func NewTreeSitterCapturer() *TreeSitterCapturer {
	return &TreeSitterCapturer{language: golang.GetLanguage()}
}

// Capture parses src and walks the tree for identifier uses. A parser is
// created per call; sitter.Parser is not safe for concurrent use.
func (c *TreeSitterCapturer) Capture(ctx context.Context, src []byte) ([]Reference, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(c.language)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	defer tree.Close()

	w := &walker{src: src}
	w.walk(tree.RootNode())
	return w.refs, nil
}

type walker struct {
	src  []byte
	refs []Reference
}

func (w *walker) emit(name string, node *sitter.Node) {
	start, end := node.StartPoint(), node.EndPoint()
	w.refs = append(w.refs, Reference{
		Name: name,
		Range: types.Range{
			Start: types.Position{Line: int(start.Row) + 1, Column: int(start.Column) + 1},
			End:   types.Position{Line: int(end.Row) + 1, Column: int(end.Column) + 1},
		},
	})
}

func (w *walker) walk(node *sitter.Node) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "package_clause", "import_declaration", "comment":
		return
	case "identifier", "type_identifier":
		if name := node.Content(w.src); name != "_" {
			w.emit(name, node)
		}
		return
	case "selector_expression":
		operand := node.ChildByFieldName("operand")
		field := node.ChildByFieldName("field")
		if operand != nil && field != nil && operand.Type() == "identifier" {
			w.emit(operand.Content(w.src)+"."+field.Content(w.src), node)
			return
		}
		w.walk(operand)
		return
	case "qualified_type":
		pkg := node.ChildByFieldName("package")
		name := node.ChildByFieldName("name")
		if pkg != nil && name != nil {
			w.emit(pkg.Content(w.src)+"."+name.Content(w.src), node)
		}
		return
	case "short_var_declaration", "range_clause":
		w.walk(node.ChildByFieldName("right"))
		return
	case "keyed_element":
		// the key of a struct literal element names a field
		for i := 1; i < int(node.NamedChildCount()); i++ {
			w.walk(node.NamedChild(i))
		}
		if first := node.NamedChild(0); first != nil && !isBareName(first) {
			w.walk(first)
		}
		return
	}

	skip := declaredNames(node)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if skip(child) {
			continue
		}
		w.walk(child)
	}
}

// isBareName reports whether node is a lone identifier, possibly wrapped in
// a literal_element
func isBareName(node *sitter.Node) bool {
	if node.Type() == "literal_element" && node.NamedChildCount() == 1 {
		node = node.NamedChild(0)
	}
	switch node.Type() {
	case "identifier", "field_identifier":
		return true
	}
	return false
}

// declaredNames returns a predicate matching the children of node that
// introduce a name
func declaredNames(node *sitter.Node) func(*sitter.Node) bool {
	switch node.Type() {
	case "function_declaration", "method_declaration", "type_spec", "type_alias":
		name := node.ChildByFieldName("name")
		return func(child *sitter.Node) bool {
			return name != nil && sameNode(child, name)
		}
	case "parameter_declaration", "variadic_parameter_declaration",
		"var_spec", "const_spec", "type_parameter_declaration":
		return func(child *sitter.Node) bool {
			return child.Type() == "identifier"
		}
	}
	return func(*sitter.Node) bool { return false }
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

var _ Capturer = (*TreeSitterCapturer)(nil)
