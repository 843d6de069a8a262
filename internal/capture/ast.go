package capture

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/dshills/codegraph/pkg/types"
)

// ASTCapturer captures references with go/parser. It needs no cgo and is
// the default when tree-sitter is unavailable.
type ASTCapturer struct{}

// NewASTCapturer creates a go/parser based capturer
func NewASTCapturer() *ASTCapturer {
	return &ASTCapturer{}
}

// Capture parses src as a file fragment. A package clause is supplied when
// the fragment lacks one.
func (c *ASTCapturer) Capture(ctx context.Context, src []byte) ([]Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lineShift := 0
	source := src
	if !hasPackageClause(src) {
		source = append([]byte("package fragment\n"), src...)
		lineShift = 1
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "fragment.go", source, parser.SkipObjectResolution|parser.AllErrors)
	if file == nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}

	declared := declarationIdents(file)
	position := func(pos token.Pos) types.Position {
		p := fset.Position(pos)
		return types.Position{Line: p.Line - lineShift, Column: p.Column}
	}

	var refs []Reference
	var visit func(n ast.Node) bool
	visit = func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.ImportSpec:
			return false
		case *ast.SelectorExpr:
			if x, ok := node.X.(*ast.Ident); ok {
				refs = append(refs, Reference{
					Name:  x.Name + "." + node.Sel.Name,
					Range: types.Range{Start: position(node.Pos()), End: position(node.End())},
				})
				return false
			}
			// the selected field or method is not resolvable on its own
			ast.Inspect(node.X, visit)
			return false
		case *ast.Ident:
			if node == file.Name || declared[node] || node.Name == "_" {
				return false
			}
			refs = append(refs, Reference{
				Name:  node.Name,
				Range: types.Range{Start: position(node.Pos()), End: position(node.End())},
			})
		}
		return true
	}
	ast.Inspect(file, visit)
	return refs, nil
}

func hasPackageClause(src []byte) bool {
	for _, line := range strings.Split(string(src), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}
		return strings.HasPrefix(trimmed, "package ")
	}
	return false
}

// declarationIdents collects the identifiers that introduce names rather
// than use them
func declarationIdents(file *ast.File) map[*ast.Ident]bool {
	declared := make(map[*ast.Ident]bool)
	addFields := func(fields *ast.FieldList) {
		if fields == nil {
			return
		}
		for _, f := range fields.List {
			for _, name := range f.Names {
				declared[name] = true
			}
		}
	}

	ast.Inspect(file, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.FuncDecl:
			declared[node.Name] = true
			addFields(node.Recv)
		case *ast.FuncType:
			addFields(node.TypeParams)
			addFields(node.Params)
			addFields(node.Results)
		case *ast.StructType:
			addFields(node.Fields)
		case *ast.InterfaceType:
			addFields(node.Methods)
		case *ast.TypeSpec:
			declared[node.Name] = true
			addFields(node.TypeParams)
		case *ast.ValueSpec:
			for _, name := range node.Names {
				declared[name] = true
			}
		case *ast.AssignStmt:
			if node.Tok == token.DEFINE {
				for _, lhs := range node.Lhs {
					if id, ok := lhs.(*ast.Ident); ok {
						declared[id] = true
					}
				}
			}
		case *ast.RangeStmt:
			if node.Tok == token.DEFINE {
				if id, ok := node.Key.(*ast.Ident); ok {
					declared[id] = true
				}
				if id, ok := node.Value.(*ast.Ident); ok {
					declared[id] = true
				}
			}
		case *ast.LabeledStmt:
			declared[node.Label] = true
		case *ast.BranchStmt:
			if node.Label != nil {
				declared[node.Label] = true
			}
		case *ast.KeyValueExpr:
			if id, ok := node.Key.(*ast.Ident); ok {
				declared[id] = true
			}
		}
		return true
	})
	return declared
}

var _ Capturer = (*ASTCapturer)(nil)
