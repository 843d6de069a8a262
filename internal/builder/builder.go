// Package builder turns an ordered chunk list into the chunk reference graph.
package builder

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/dshills/codegraph/internal/capture"
	"github.com/dshills/codegraph/internal/graph"
	"github.com/dshills/codegraph/internal/scope"
	"github.com/dshills/codegraph/pkg/types"
)

// Options controls graph construction
type Options struct {
	SkipTests bool
}

// ChunkMap holds each file's chunks in insertion order
type ChunkMap map[string][]*graph.ChunkNode

// FindChunk returns the first chunk of file whose line span overlaps r.
// Only the queried file is searched.
func (m ChunkMap) FindChunk(file string, r types.Range) *graph.ChunkNode {
	for _, chunk := range m[file] {
		if chunk.Range().Overlaps(r) {
			return chunk
		}
	}
	return nil
}

// Stats counts what happened to the captured references
type Stats struct {
	Chunks      int `json:"chunks"`
	SkippedTest int `json:"skipped_test"`
	References  int `json:"references"`
	Unresolved  int `json:"unresolved"`
	Unowned     int `json:"unowned"`
	SelfRefs    int `json:"self_refs"`
	ImportEdges int `json:"import_edges"`
	CallEdges   int `json:"call_edges"`
}

// Builder constructs chunk graphs
type Builder struct {
	resolver scope.Resolver
	capturer capture.Capturer
	logger   *zap.Logger
}

// New creates a builder
func New(resolver scope.Resolver, capturer capture.Capturer, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{resolver: resolver, capturer: capturer, logger: logger}
}

// Build creates one chunk node per chunk and links chunks through their
// resolved references. References that do not resolve, or resolve to a
// range no chunk owns, are dropped.
func (b *Builder) Build(ctx context.Context, chunks []types.Chunk, opts Options) (*graph.Graph, ChunkMap, *Stats, error) {
	g := graph.New()
	chunkMap := make(ChunkMap)
	stats := &Stats{}

	for i := range chunks {
		chunk := &chunks[i]
		if opts.SkipTests && types.IsTestFile(chunk.Metadata.FilePath) {
			stats.SkippedTest++
			continue
		}
		if err := chunk.Validate(); err != nil {
			return nil, nil, nil, fmt.Errorf("invalid chunk %q: %w", chunk.ID, err)
		}
		node := graph.NewChunkNode(*chunk)
		if err := g.AddChunk(node); err != nil {
			return nil, nil, nil, fmt.Errorf("add chunk %s: %w", chunk.ID, err)
		}
		chunkMap[node.Metadata.FilePath] = append(chunkMap[node.Metadata.FilePath], node)
		stats.Chunks++
	}

	for _, id := range g.ChunkIDs() {
		if err := ctx.Err(); err != nil {
			return nil, nil, nil, err
		}
		src, _ := g.Chunk(id)
		if err := b.link(ctx, g, chunkMap, src, stats); err != nil {
			return nil, nil, nil, err
		}
	}

	b.logger.Info("built chunk graph",
		zap.Int("chunks", stats.Chunks),
		zap.Int("references", stats.References),
		zap.Int("unresolved", stats.Unresolved),
		zap.Int("unowned", stats.Unowned),
		zap.Int("import_edges", stats.ImportEdges),
		zap.Int("call_edges", stats.CallEdges))

	return g, chunkMap, stats, nil
}

func (b *Builder) link(ctx context.Context, g *graph.Graph, chunkMap ChunkMap, src *graph.ChunkNode, stats *Stats) error {
	refs, err := b.capturer.Capture(ctx, []byte(src.Content))
	if err != nil {
		return fmt.Errorf("capture references in %s: %w", src.ID, err)
	}

	file := src.Metadata.FilePath
	offset := src.Metadata.StartLine - 1
	for _, ref := range refs {
		stats.References++
		if !slices.Contains(src.Definitions, ref.Name) && !slices.Contains(src.References, ref.Name) {
			src.References = append(src.References, ref.Name)
		}

		rng := ref.Range.Offset(offset)
		fromScope, ok := b.resolver.ScopeByRange(file, rng)
		if !ok {
			stats.Unresolved++
			b.logger.Debug("reference outside any known scope",
				zap.String("chunk", src.ID), zap.String("ref", ref.Name))
			continue
		}
		exportFile, exportScope, ok := b.resolver.ImportToExportScope(file, fromScope, ref.Name)
		if !ok {
			stats.Unresolved++
			b.logger.Debug("unresolved reference",
				zap.String("chunk", src.ID), zap.String("ref", ref.Name), zap.String("scope", fromScope))
			continue
		}
		exportRange, ok := b.resolver.RangeByScope(exportFile, exportScope)
		if !ok {
			stats.Unowned++
			continue
		}
		dst := chunkMap.FindChunk(exportFile, exportRange)
		if dst == nil {
			stats.Unowned++
			b.logger.Debug("no chunk owns export",
				zap.String("ref", ref.Name), zap.String("file", exportFile), zap.String("scope", exportScope))
			continue
		}
		if dst.ID == src.ID {
			stats.SelfRefs++
			continue
		}

		if _, err := g.AddEdge(graph.Edge{Src: src.ID, Dst: dst.ID, Kind: graph.EdgeImport, Ref: ref.Name}); err != nil {
			return err
		}
		stats.ImportEdges++
		if b.resolver.IsCallRef(file, rng) {
			if _, err := g.AddEdge(graph.Edge{Src: src.ID, Dst: dst.ID, Kind: graph.EdgeCall, Ref: ref.Name}); err != nil {
				return err
			}
			stats.CallEdges++
		}
	}
	return nil
}
