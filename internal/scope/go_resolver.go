package scope

import (
	"fmt"
	"go/ast"
	"go/token"
	"path"
	"strings"
	"sync"

	"github.com/dshills/codegraph/internal/parser"
	"github.com/dshills/codegraph/pkg/types"
)

type declRef struct {
	file  string
	scope string
}

type scopeInfo struct {
	id     string
	rng    types.Range
	locals map[string]bool
}

type fileInfo struct {
	path    string
	pkgKey  string
	imports []types.Import
	lines   int
	scopes  []*scopeInfo
	byID    map[string]*scopeInfo
	calls   map[types.Position]bool
}

type packageInfo struct {
	name    string
	decls   map[string]declRef
	methods map[string][]declRef
}

// GoResolver is a Resolver over Go files of a single module
type GoResolver struct {
	mu         sync.RWMutex
	modulePath string
	files      map[string]*fileInfo
	packages   map[string]*packageInfo
}

// NewGoResolver creates an empty resolver. modulePath is the module line of
// go.mod and decides which imports can be followed.
func NewGoResolver(modulePath string) *GoResolver {
	return &GoResolver{
		modulePath: modulePath,
		files:      make(map[string]*fileInfo),
		packages:   make(map[string]*packageInfo),
	}
}

// NumFiles returns how many files have been added
func (r *GoResolver) NumFiles() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}

// Add indexes a parsed file. It is safe to call concurrently.
func (r *GoResolver) Add(res *parser.Result) {
	if res == nil || res.File == nil {
		return
	}

	fi := &fileInfo{
		path:    res.Path,
		pkgKey:  packageKey(res.Path, res.PackageName),
		imports: res.Imports,
		lines:   res.LineCount,
		byID:    make(map[string]*scopeInfo),
		calls:   make(map[types.Position]bool),
	}

	byStart := make(map[types.Position]*scopeInfo)
	for _, sym := range res.Symbols {
		id := sym.QualifiedName()
		for n := 2; fi.byID[id] != nil; n++ {
			id = fmt.Sprintf("%s#%d", sym.QualifiedName(), n)
		}
		s := &scopeInfo{id: id, rng: sym.Range}
		fi.scopes = append(fi.scopes, s)
		fi.byID[id] = s
		if sym.Kind == types.KindFunction || sym.Kind == types.KindMethod {
			byStart[sym.Range.Start] = s
		}
	}

	for _, decl := range res.File.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		if s := byStart[res.Position(fn.Pos())]; s != nil {
			s.locals = collectLocals(fn)
		}
	}

	ast.Inspect(res.File, func(n ast.Node) bool {
		if call, ok := n.(*ast.CallExpr); ok {
			fi.calls[res.Position(call.Fun.Pos())] = true
		}
		return true
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	r.files[fi.path] = fi
	pkg := r.packages[fi.pkgKey]
	if pkg == nil {
		pkg = &packageInfo{
			name:    res.PackageName,
			decls:   make(map[string]declRef),
			methods: make(map[string][]declRef),
		}
		r.packages[fi.pkgKey] = pkg
	}
	for i, sym := range res.Symbols {
		ref := declRef{file: fi.path, scope: fi.scopes[i].id}
		if _, exists := pkg.decls[ref.scope]; !exists {
			pkg.decls[ref.scope] = ref
		}
		if sym.Kind == types.KindMethod {
			pkg.methods[sym.Name] = append(pkg.methods[sym.Name], ref)
		}
	}
}

// packageKey separates external test packages from the package under test
// sharing their directory
func packageKey(file, pkgName string) string {
	dir := path.Dir(file)
	if strings.HasSuffix(pkgName, "_test") {
		return dir + "#test"
	}
	return dir
}

// collectLocals gathers every name a function declares: receiver,
// parameters, results, and anything defined in its body
func collectLocals(fn *ast.FuncDecl) map[string]bool {
	locals := make(map[string]bool)
	addFields := func(fields *ast.FieldList) {
		if fields == nil {
			return
		}
		for _, f := range fields.List {
			for _, name := range f.Names {
				locals[name.Name] = true
			}
		}
	}
	addFields(fn.Recv)
	addFields(fn.Type.TypeParams)
	addFields(fn.Type.Params)
	addFields(fn.Type.Results)

	if fn.Body == nil {
		return locals
	}
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.AssignStmt:
			if node.Tok == token.DEFINE {
				for _, lhs := range node.Lhs {
					if id, ok := lhs.(*ast.Ident); ok {
						locals[id.Name] = true
					}
				}
			}
		case *ast.RangeStmt:
			if node.Tok == token.DEFINE {
				for _, e := range []ast.Expr{node.Key, node.Value} {
					if id, ok := e.(*ast.Ident); ok {
						locals[id.Name] = true
					}
				}
			}
		case *ast.ValueSpec:
			for _, name := range node.Names {
				locals[name.Name] = true
			}
		case *ast.TypeSpec:
			locals[node.Name.Name] = true
		case *ast.FuncType:
			addFields(node.Params)
			addFields(node.Results)
		}
		return true
	})
	delete(locals, "_")
	return locals
}

// ScopeByRange returns the declaration containing r, or FileScope
func (r *GoResolver) ScopeByRange(file string, rng types.Range) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fi, ok := r.files[file]
	if !ok {
		return "", false
	}
	for _, s := range fi.scopes {
		if s.rng.Contains(rng) {
			return s.id, true
		}
	}
	return FileScope, true
}

// RangeByScope returns the range of a declaration scope. FileScope covers
// the whole file.
func (r *GoResolver) RangeByScope(file, scope string) (types.Range, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fi, ok := r.files[file]
	if !ok {
		return types.Range{}, false
	}
	if scope == FileScope {
		return types.LineRange(1, fi.lines), true
	}
	s, ok := fi.byID[scope]
	if !ok {
		return types.Range{}, false
	}
	return s.rng, true
}

// ImportToExportScope resolves name as seen from scope in file
func (r *GoResolver) ImportToExportScope(file, scope, name string) (string, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fi, ok := r.files[file]
	if !ok || name == "" {
		return "", "", false
	}
	pkg := r.packages[fi.pkgKey]
	shadowed := func(n string) bool {
		s := fi.byID[scope]
		return s != nil && s.locals[n]
	}

	qualifier, sel, qualified := strings.Cut(name, ".")
	if !qualified {
		if shadowed(name) {
			return "", "", false
		}
		if ref, ok := pkg.decls[name]; ok {
			return ref.file, ref.scope, true
		}
		return "", "", false
	}

	if !shadowed(qualifier) {
		if target := r.importedPackage(fi, qualifier); target != nil {
			if ref, ok := target.decls[sel]; ok && token.IsExported(sel) {
				return ref.file, ref.scope, true
			}
			return "", "", false
		}
		// method expression, T.Method
		if ref, ok := pkg.decls[name]; ok {
			return ref.file, ref.scope, true
		}
	}

	// method value on a variable: only unambiguous names resolve, first in
	// the caller's package, then across the module packages it imports
	switch refs := pkg.methods[sel]; len(refs) {
	case 1:
		return refs[0].file, refs[0].scope, true
	case 0:
	default:
		return "", "", false
	}
	if !token.IsExported(sel) {
		return "", "", false
	}
	var candidates []declRef
	for _, imported := range r.importedPackages(fi) {
		candidates = append(candidates, imported.pkg.methods[sel]...)
	}
	if len(candidates) == 1 {
		return candidates[0].file, candidates[0].scope, true
	}
	return "", "", false
}

type moduleImport struct {
	local string
	pkg   *packageInfo
}

// importedPackages lists the module packages a file imports, each under the
// name the file refers to it by
func (r *GoResolver) importedPackages(fi *fileInfo) []moduleImport {
	if r.modulePath == "" {
		return nil
	}
	var imported []moduleImport
	seen := make(map[*packageInfo]bool)
	for _, imp := range fi.imports {
		var dir string
		switch {
		case imp.Path == r.modulePath:
			dir = "."
		case strings.HasPrefix(imp.Path, r.modulePath+"/"):
			dir = strings.TrimPrefix(imp.Path, r.modulePath+"/")
		default:
			continue
		}
		target, ok := r.packages[dir]
		if !ok || seen[target] {
			continue
		}
		seen[target] = true
		local := imp.Alias
		if local == "" {
			local = target.name
		}
		imported = append(imported, moduleImport{local: local, pkg: target})
	}
	return imported
}

// importedPackage finds the module package a file imports under qualifier
func (r *GoResolver) importedPackage(fi *fileInfo, qualifier string) *packageInfo {
	for _, imported := range r.importedPackages(fi) {
		if imported.local == qualifier {
			return imported.pkg
		}
	}
	return nil
}

// IsCallRef reports whether a call's callee expression starts at r.Start
func (r *GoResolver) IsCallRef(file string, rng types.Range) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fi, ok := r.files[file]
	if !ok {
		return false
	}
	return fi.calls[rng.Start]
}

var _ Resolver = (*GoResolver)(nil)
