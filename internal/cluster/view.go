package cluster

import (
	"github.com/dshills/codegraph/internal/graph"
	"github.com/dshills/codegraph/internal/refine"
)

// summarize extracts the refinement view of a cluster and its chunks
func summarize(g *graph.Graph, clusterID string) refine.ClusterSummary {
	summary := refine.ClusterSummary{ID: clusterID}
	if c, ok := g.Cluster(clusterID); ok {
		summary.Title = c.Title
	}
	for _, chunkID := range g.ChunkChildren(clusterID) {
		chunk, ok := g.Chunk(chunkID)
		if !ok {
			continue
		}
		summary.Chunks = append(summary.Chunks, refine.ChunkSummary{
			ID:          chunk.ID,
			FilePath:    chunk.Metadata.FilePath,
			StartLine:   chunk.Metadata.StartLine,
			EndLine:     chunk.Metadata.EndLine,
			Definitions: chunk.Definitions,
			Content:     chunk.Content,
		})
	}
	return summary
}

// leafClusters returns clusters that directly hold chunks, in insertion order
func leafClusters(g *graph.Graph) []string {
	var ids []string
	for _, id := range g.ClusterIDs() {
		if len(g.ChunkChildren(id)) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// pruneEmpty deletes the given clusters when nothing was moved into them
func pruneEmpty(g *graph.Graph, ids []string) int {
	pruned := 0
	for _, id := range ids {
		if g.PruneIfEmpty(id) {
			pruned++
		}
	}
	return pruned
}
