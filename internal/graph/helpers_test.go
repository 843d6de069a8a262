package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dshills/codegraph/pkg/types"
)

// addChunks adds chunks named prefix0..prefixN-1, one per line span of file
func addChunks(t *testing.T, g *Graph, file, prefix string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s%d", prefix, i)
		require.NoError(t, g.AddChunk(&ChunkNode{
			ID:      id,
			Content: "func f() {}",
			Metadata: types.ChunkMetadata{
				FilePath:  file,
				StartLine: i*10 + 1,
				EndLine:   i*10 + 9,
			},
		}))
		ids = append(ids, id)
	}
	return ids
}

// addCluster creates a leaf cluster holding the given chunks
func addCluster(t *testing.T, g *Graph, id string, chunks ...string) {
	t.Helper()
	require.NoError(t, g.AddCluster(&ClusterNode{ID: id}))
	for _, c := range chunks {
		require.NoError(t, g.SetChunkCluster(c, id))
	}
}
