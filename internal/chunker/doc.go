// Package chunker divides Go source files into chunks, the atomic units of
// the reference graph.
//
// Chunks are cut at package-level declarations (functions, methods, type
// specs, const and var specs) using the ranges found by the parser. Each
// chunk is identified by "path:start-end" and records the names it defines:
//
//	res, _ := parser.New().ParseSource("store/db.go", src)
//	for _, chunk := range chunker.New().ChunkFile(res, src) {
//	    fmt.Println(chunk.ID, chunk.Definitions, chunk.Metadata.TokenCount)
//	}
//
// Token counts use the chars/4 heuristic. StrategyFile produces one chunk
// per file instead.
package chunker
