package chunker

import (
	"strings"

	"github.com/dshills/codegraph/internal/parser"
	"github.com/dshills/codegraph/pkg/types"
)

// MaxTokensPerChunk is the size above which a chunk is reported as oversized
const MaxTokensPerChunk = 1000

// Strategy selects how a file is cut into chunks
type Strategy string

const (
	// StrategyDeclaration creates one chunk per package-level declaration
	StrategyDeclaration Strategy = "declaration"
	// StrategyFile creates a single chunk for the entire file
	StrategyFile Strategy = "file"
)

// Chunker creates chunks from parsed Go files
type Chunker struct {
	strategy Strategy
}

// New creates a Chunker using the declaration strategy
func New() *Chunker {
	return &Chunker{strategy: StrategyDeclaration}
}

// NewWithStrategy creates a Chunker using the given strategy. Unknown
// strategies fall back to declarations.
func NewWithStrategy(strategy Strategy) *Chunker {
	if strategy != StrategyFile {
		strategy = StrategyDeclaration
	}
	return &Chunker{strategy: strategy}
}

// ChunkFile cuts content into chunks along the symbols of res. Declarations
// sharing a line span become one chunk defining all their names. A file
// without symbols becomes a single package chunk.
func (c *Chunker) ChunkFile(res *parser.Result, content []byte) []types.Chunk {
	lines := strings.Split(string(content), "\n")
	if c.strategy == StrategyFile {
		return c.packageChunk(res, lines)
	}

	var chunks []types.Chunk
	byRange := make(map[[2]int]int)
	for i := range res.Symbols {
		sym := &res.Symbols[i]
		if sym.Validate() != nil {
			continue
		}
		start, end := sym.Range.Start.Line, sym.Range.End.Line
		if start > len(lines) {
			continue
		}
		if end > len(lines) {
			end = len(lines)
		}

		key := [2]int{start, end}
		if idx, ok := byRange[key]; ok {
			chunks[idx].Definitions = append(chunks[idx].Definitions, sym.Name)
			chunks[idx].Metadata.SpanIDs = append(chunks[idx].Metadata.SpanIDs, sym.QualifiedName())
			continue
		}

		chunk := c.newChunk(res.Path, lines, start, end, symbolKindToChunkKind(sym.Kind))
		chunk.Definitions = []string{sym.Name}
		chunk.Metadata.SpanIDs = []string{sym.QualifiedName()}
		byRange[key] = len(chunks)
		chunks = append(chunks, chunk)
	}

	if len(chunks) == 0 {
		return c.packageChunk(res, lines)
	}
	return chunks
}

func (c *Chunker) packageChunk(res *parser.Result, lines []string) []types.Chunk {
	if strings.TrimSpace(strings.Join(lines, "\n")) == "" {
		return nil
	}
	chunk := c.newChunk(res.Path, lines, 1, len(lines), types.ChunkPackage)
	for _, sym := range res.Symbols {
		chunk.Definitions = append(chunk.Definitions, sym.Name)
		chunk.Metadata.SpanIDs = append(chunk.Metadata.SpanIDs, sym.QualifiedName())
	}
	return []types.Chunk{chunk}
}

// newChunk extracts lines start..end (1-based, inclusive)
func (c *Chunker) newChunk(path string, lines []string, start, end int, kind types.ChunkKind) types.Chunk {
	chunk := types.Chunk{
		ID:      types.ChunkID(path, start, end),
		Content: strings.Join(lines[start-1:end], "\n"),
		Kind:    kind,
		Metadata: types.ChunkMetadata{
			FilePath:  path,
			StartLine: start,
			EndLine:   end,
		},
	}
	chunk.ComputeTokenCount()
	chunk.ComputeContentHash()
	return chunk
}

// symbolKindToChunkKind maps symbol kinds to chunk kinds
func symbolKindToChunkKind(kind types.SymbolKind) types.ChunkKind {
	switch kind {
	case types.KindFunction:
		return types.ChunkFunction
	case types.KindMethod:
		return types.ChunkMethod
	case types.KindStruct, types.KindInterface, types.KindType:
		return types.ChunkTypeDecl
	case types.KindConst:
		return types.ChunkConstGroup
	case types.KindVar:
		return types.ChunkVarGroup
	default:
		return types.ChunkPackage
	}
}

// Oversized reports whether a chunk is larger than MaxTokensPerChunk
func Oversized(chunk *types.Chunk) bool {
	return chunk.Metadata.TokenCount > MaxTokensPerChunk
}
