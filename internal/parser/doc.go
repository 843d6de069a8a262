// Package parser extracts package-level symbols and imports from Go source
// using go/parser.
//
// A Result keeps the parsed *ast.File and its FileSet alongside the symbol
// list so later stages (the scope resolver and the chunker) share one parse:
//
//	p := parser.New()
//	res, err := p.ParseFile("/repo/internal/store/db.go", "internal/store/db.go")
//	if err != nil {
//	    return err
//	}
//	for _, sym := range res.Symbols {
//	    fmt.Println(sym.Kind, sym.QualifiedName(), sym.Range)
//	}
//
// Syntax errors are not fatal. They are recorded in Result.Errors and the
// partial AST is analyzed as far as it goes.
package parser
