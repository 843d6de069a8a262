package parser

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"strings"

	"github.com/dshills/codegraph/pkg/types"
)

// Result is the analysis of one Go file. The AST is retained so the scope
// resolver can walk function bodies without reparsing.
type Result struct {
	Path        string // repository-relative, slash separated
	PackageName string
	Imports     []types.Import
	Symbols     []types.Symbol
	Errors      []types.ParseError
	LineCount   int

	File *ast.File
	Fset *token.FileSet
}

// AddError records a non-fatal parse problem
func (r *Result) AddError(line, column int, message string) {
	r.Errors = append(r.Errors, types.ParseError{
		File:    r.Path,
		Line:    line,
		Column:  column,
		Message: message,
	})
}

// Position converts a token position into a 1-based line/column pair
func (r *Result) Position(pos token.Pos) types.Position {
	p := r.Fset.Position(pos)
	return types.Position{Line: p.Line, Column: p.Column}
}

// Range converts a node's extent into a Range
func (r *Result) Range(node ast.Node) types.Range {
	return types.Range{Start: r.Position(node.Pos()), End: r.Position(node.End())}
}

// Parser handles AST-based parsing of Go source files
type Parser struct {
	fset *token.FileSet
}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{
		fset: token.NewFileSet(),
	}
}

// ParseFile reads and parses the file at diskPath, recording it under relPath
func (p *Parser) ParseFile(diskPath, relPath string) (*Result, error) {
	content, err := os.ReadFile(diskPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.ParseSource(relPath, content)
}

// ParseSource parses Go source held in memory. Syntax errors are recorded on
// the result; whatever partial AST the parser produced is still analyzed.
func (p *Parser) ParseSource(relPath string, content []byte) (*Result, error) {
	result := &Result{
		Path:      relPath,
		Fset:      p.fset,
		LineCount: strings.Count(string(content), "\n") + 1,
	}

	file, err := parser.ParseFile(p.fset, relPath, content, parser.SkipObjectResolution)
	if err != nil {
		result.AddError(0, 0, fmt.Sprintf("syntax error: %v", err))
	}
	if file == nil {
		return result, nil
	}

	result.File = file
	if file.Name != nil {
		result.PackageName = file.Name.Name
	}
	result.Imports = extractImports(file)

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			result.Symbols = append(result.Symbols, funcSymbol(result, d))
		case *ast.GenDecl:
			result.Symbols = append(result.Symbols, genDeclSymbols(result, d)...)
		}
	}

	return result, nil
}

func extractImports(file *ast.File) []types.Import {
	imports := make([]types.Import, 0, len(file.Imports))
	for _, imp := range file.Imports {
		spec := types.Import{Path: strings.Trim(imp.Path.Value, `"`)}
		if imp.Name != nil {
			spec.Alias = imp.Name.Name
		}
		imports = append(imports, spec)
	}
	return imports
}

func funcSymbol(r *Result, fn *ast.FuncDecl) types.Symbol {
	sym := types.Symbol{
		Name:      fn.Name.Name,
		Kind:      types.KindFunction,
		Signature: funcSignature(fn),
		Range:     r.Range(fn),
	}
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		sym.Kind = types.KindMethod
		sym.Receiver = ReceiverName(fn.Recv.List[0].Type)
	}
	return sym
}

// genDeclSymbols yields one symbol per type spec and per const/var name
func genDeclSymbols(r *Result, decl *ast.GenDecl) []types.Symbol {
	var symbols []types.Symbol
	for _, spec := range decl.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			sym := types.Symbol{
				Name:  s.Name.Name,
				Kind:  types.KindType,
				Range: r.Range(s),
			}
			switch t := s.Type.(type) {
			case *ast.StructType:
				sym.Kind = types.KindStruct
				sym.Signature = fmt.Sprintf("type %s struct { ... } // %d fields", s.Name.Name, t.Fields.NumFields())
			case *ast.InterfaceType:
				sym.Kind = types.KindInterface
				sym.Signature = fmt.Sprintf("type %s interface { ... } // %d methods", s.Name.Name, t.Methods.NumFields())
			default:
				sym.Signature = fmt.Sprintf("type %s %s", s.Name.Name, exprString(s.Type))
			}
			// single-spec declarations cover the "type" keyword too
			if !decl.Lparen.IsValid() {
				sym.Range = r.Range(decl)
			}
			symbols = append(symbols, sym)
		case *ast.ValueSpec:
			kind := types.KindVar
			if decl.Tok == token.CONST {
				kind = types.KindConst
			}
			rng := r.Range(s)
			if !decl.Lparen.IsValid() {
				rng = r.Range(decl)
			}
			for _, name := range s.Names {
				if name.Name == "_" {
					continue
				}
				sig := name.Name
				if s.Type != nil {
					sig += " " + exprString(s.Type)
				}
				symbols = append(symbols, types.Symbol{
					Name:      name.Name,
					Kind:      kind,
					Signature: sig,
					Range:     rng,
				})
			}
		}
	}
	return symbols
}

// ReceiverName returns the base type name of a method receiver, dropping
// pointers and type parameters
func ReceiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return ReceiverName(t.X)
	case *ast.IndexExpr:
		return ReceiverName(t.X)
	case *ast.IndexListExpr:
		return ReceiverName(t.X)
	case *ast.Ident:
		return t.Name
	}
	return ""
}

func funcSignature(fn *ast.FuncDecl) string {
	var sig strings.Builder
	sig.WriteString("func ")
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		sig.WriteString("(")
		sig.WriteString(exprString(fn.Recv.List[0].Type))
		sig.WriteString(") ")
	}
	sig.WriteString(fn.Name.Name)
	sig.WriteString("(")
	sig.WriteString(fieldListString(fn.Type.Params))
	sig.WriteString(")")

	if results := fieldListString(fn.Type.Results); results != "" {
		if fn.Type.Results.NumFields() > 1 || len(fn.Type.Results.List[0].Names) > 0 {
			sig.WriteString(" (" + results + ")")
		} else {
			sig.WriteString(" " + results)
		}
	}
	return sig.String()
}

func fieldListString(fields *ast.FieldList) string {
	if fields == nil || len(fields.List) == 0 {
		return ""
	}
	var parts []string
	for _, field := range fields.List {
		typ := exprString(field.Type)
		if len(field.Names) == 0 {
			parts = append(parts, typ)
			continue
		}
		for _, name := range field.Names {
			parts = append(parts, name.Name+" "+typ)
		}
	}
	return strings.Join(parts, ", ")
}

func exprString(expr ast.Expr) string {
	switch t := expr.(type) {
	case nil:
		return ""
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprString(t.X)
	case *ast.ArrayType:
		return "[]" + exprString(t.Elt)
	case *ast.MapType:
		return fmt.Sprintf("map[%s]%s", exprString(t.Key), exprString(t.Value))
	case *ast.ChanType:
		return "chan " + exprString(t.Value)
	case *ast.FuncType:
		return "func(...)"
	case *ast.InterfaceType:
		return "interface{}"
	case *ast.SelectorExpr:
		return exprString(t.X) + "." + t.Sel.Name
	case *ast.Ellipsis:
		return "..." + exprString(t.Elt)
	case *ast.IndexExpr:
		return exprString(t.X) + "[" + exprString(t.Index) + "]"
	default:
		return "..."
	}
}
