//go:build !cgo

package capture

// Compiled without cgo. The tree-sitter grammar is C code, so references
// are captured with go/parser instead.

// BuildMode describes which capturer New returns
const BuildMode = "goparser"

// New returns the preferred capturer for this build
func New() Capturer {
	return NewASTCapturer()
}
