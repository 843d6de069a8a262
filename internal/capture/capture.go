// Package capture extracts the names a Go source fragment refers to.
//
// Fragments are chunk contents: usually a single declaration without its
// package clause. Positions in the returned references are local to the
// fragment (1-based lines and byte columns, end exclusive) and are shifted
// by the caller to absolute file positions.
package capture

import (
	"context"

	"github.com/dshills/codegraph/pkg/types"
)

// Reference is one use of a name. Qualified uses keep their qualifier,
// so a call to fmt.Println is captured once as "fmt.Println".
type Reference struct {
	Name  string
	Range types.Range
}

// Capturer finds the references in a source fragment
type Capturer interface {
	Capture(ctx context.Context, src []byte) ([]Reference, error)
}
