package cluster

import (
	"errors"
	"fmt"

	"github.com/dshills/codegraph/internal/community"
	"github.com/dshills/codegraph/internal/graph"
)

// ErrLabelCollision is returned when a community label names a chunk
var ErrLabelCollision = errors.New("community label collides with a chunk id")

// Assemble creates one leaf cluster per community label and links every
// labelled chunk to it. Chunks are visited in insertion order, so clusters
// appear in the order their first member was added. It returns the number
// of clusters created.
func Assemble(g *graph.Graph, partition *community.Partition) (int, error) {
	created := 0
	for _, chunkID := range g.ChunkIDs() {
		label, ok := partition.Labels[chunkID]
		if !ok {
			continue
		}
		if _, isChunk := g.Chunk(label); isChunk {
			return created, fmt.Errorf("%w: %s", ErrLabelCollision, label)
		}
		if !g.HasNode(label) {
			if err := g.AddCluster(&graph.ClusterNode{ID: label, Level: graph.LevelLeaf}); err != nil {
				return created, fmt.Errorf("create cluster %s: %w", label, err)
			}
			created++
		}
		if err := g.SetChunkCluster(chunkID, label); err != nil {
			return created, fmt.Errorf("assign %s: %w", chunkID, err)
		}
	}
	return created, nil
}
