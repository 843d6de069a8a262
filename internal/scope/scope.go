package scope

import (
	"github.com/dshills/codegraph/pkg/types"
)

// FileScope is the scope id of everything outside any declaration
const FileScope = "<file>"

// Resolver answers scope queries over an analyzed repository. File paths
// are repository-relative.
type Resolver interface {
	// ScopeByRange returns the innermost scope enclosing r
	ScopeByRange(file string, r types.Range) (string, bool)
	// RangeByScope returns the source range a scope covers
	RangeByScope(file, scope string) (types.Range, bool)
	// ImportToExportScope resolves a name referenced from (file, scope) to
	// the file and scope that declare it
	ImportToExportScope(file, scope, name string) (exportFile, exportScope string, ok bool)
	// IsCallRef reports whether the reference at r is the callee of a call
	IsCallRef(file string, r types.Range) bool
}
