// Package types provides the value types shared by the codegraph packages.
//
// Chunk is the unit of clustering: a contiguous span of source lines with a
// stable identifier derived from its location:
//
//	chunk := types.Chunk{
//	    ID:      types.ChunkID("internal/graph/graph.go", 10, 42),
//	    Content: body,
//	    Metadata: types.ChunkMetadata{
//	        FilePath:  "internal/graph/graph.go",
//	        StartLine: 10,
//	        EndLine:   42,
//	    },
//	}
//
// # Ranges
//
// Range carries two distinct predicates. Contains is strict containment;
// Overlaps is boundary overlap, true when either endpoint of the argument
// falls inside the receiver:
//
//	chunkSpan := types.LineRange(10, 20)
//	chunkSpan.Contains(types.LineRange(12, 14)) // true
//	chunkSpan.Overlaps(types.LineRange(18, 30)) // true
//	chunkSpan.Contains(types.LineRange(18, 30)) // false
//
// Symbol describes a package-level declaration (function, method, type,
// const or var) produced by file analysis and consumed by the chunker.
package types
