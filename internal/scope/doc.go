// Package scope resolves references between Go declarations.
//
// GoResolver indexes parsed files by package directory. Each package-level
// declaration is a scope named by its qualified name ("NewServer",
// "Server.Start", "Config"); code outside any declaration belongs to
// FileScope. A reference is resolved in three steps: the scope enclosing its
// range, the declaration the name refers to from that scope, and the range
// of that declaration.
//
// Resolution is syntactic. Unqualified names resolve inside the package
// unless a local variable or parameter shadows them. "pkg.Name" resolves
// through the file's imports when pkg is an import of the same module;
// otherwise "x.Method" resolves when exactly one method of that name exists
// in the package.
package scope
