package types

import (
	"fmt"
	"math"
)

// Position represents a location in source code (1-based line and column)
type Position struct {
	Line   int
	Column int
}

// Before reports whether p sorts strictly before other
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Column < other.Column
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Range is an inclusive span [Start, End] of source positions
type Range struct {
	Start Position
	End   Position
}

// LineRange builds a range covering whole lines start..end
func LineRange(start, end int) Range {
	return Range{
		Start: Position{Line: start, Column: 0},
		End:   Position{Line: end, Column: math.MaxInt32},
	}
}

// Offset shifts the range down by lines
func (r Range) Offset(lines int) Range {
	r.Start.Line += lines
	r.End.Line += lines
	return r
}

// covers reports whether p lies inside r, boundaries included
func (r Range) covers(p Position) bool {
	return !p.Before(r.Start) && !r.End.Before(p)
}

// Contains reports whether other lies entirely inside r
func (r Range) Contains(other Range) bool {
	return r.covers(other.Start) && r.covers(other.End)
}

// Overlaps reports whether either endpoint of other falls inside r
func (r Range) Overlaps(other Range) bool {
	return r.covers(other.Start) || r.covers(other.End)
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}
