package community

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codegraph/internal/graph"
	"github.com/dshills/codegraph/pkg/types"
)

// cliqueGraph builds disconnected cliques of the given sizes plus isolated
// chunks
func cliqueGraph(t *testing.T, isolated int, sizes ...int) (*graph.Graph, [][]string) {
	t.Helper()
	g := graph.New()
	var cliques [][]string
	for ci, size := range sizes {
		var members []string
		for i := 0; i < size; i++ {
			id := fmt.Sprintf("c%d.go:%d-%d", ci, i*10+1, i*10+5)
			require.NoError(t, g.AddChunk(&graph.ChunkNode{
				ID:       id,
				Metadata: types.ChunkMetadata{FilePath: fmt.Sprintf("c%d.go", ci), StartLine: i*10 + 1, EndLine: i*10 + 5},
			}))
			members = append(members, id)
		}
		for i := range members {
			for j := i + 1; j < len(members); j++ {
				_, err := g.AddEdge(graph.Edge{Src: members[i], Dst: members[j], Kind: graph.EdgeImport, Ref: "x"})
				require.NoError(t, err)
			}
		}
		cliques = append(cliques, members)
	}
	for i := 0; i < isolated; i++ {
		require.NoError(t, g.AddChunk(&graph.ChunkNode{ID: fmt.Sprintf("lonely%d", i)}))
	}
	return g, cliques
}

func TestDetect_TwoComponents(t *testing.T) {
	for _, algorithm := range []string{AlgorithmLouvain, AlgorithmComponents} {
		t.Run(algorithm, func(t *testing.T) {
			g, cliques := cliqueGraph(t, 0, 3, 5)

			p, err := Detect(g, Config{Algorithm: algorithm, Seed: DefaultSeed}, nil)
			require.NoError(t, err)

			assert.Equal(t, 2, p.Communities)
			assert.Len(t, p.Labels, 8)

			distinct := map[string]bool{}
			for _, members := range cliques {
				label := p.Labels[members[0]]
				for _, id := range members {
					assert.Equal(t, label, p.Labels[id], id)
				}
				distinct[label] = true
			}
			assert.Len(t, distinct, 2)

			// labels follow first-member order
			assert.Equal(t, "0", p.Labels[cliques[0][0]])
			assert.Equal(t, "1", p.Labels[cliques[1][0]])
		})
	}
}

func TestDetect_Deterministic(t *testing.T) {
	g, _ := cliqueGraph(t, 0, 4, 4, 6)
	// bridge the cliques so the partition is not forced by connectivity
	ids := g.ChunkIDs()
	_, err := g.AddEdge(graph.Edge{Src: ids[0], Dst: ids[4], Kind: graph.EdgeCall, Ref: "y"})
	require.NoError(t, err)
	_, err = g.AddEdge(graph.Edge{Src: ids[5], Dst: ids[9], Kind: graph.EdgeCall, Ref: "y"})
	require.NoError(t, err)

	first, err := Detect(g, Config{Seed: 7}, nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Detect(g, Config{Seed: 7}, nil)
		require.NoError(t, err)
		assert.Equal(t, first.Labels, again.Labels)
	}
}

func TestDetect_IsolatedChunksAreNotLabelled(t *testing.T) {
	g, _ := cliqueGraph(t, 2, 3)

	p, err := Detect(g, Config{}, nil)
	require.NoError(t, err)
	assert.Len(t, p.Labels, 3)
	assert.NotContains(t, p.Labels, "lonely0")
}

func TestDetect_IgnoresClusterEdges(t *testing.T) {
	g, cliques := cliqueGraph(t, 1, 3)
	require.NoError(t, g.AddCluster(&graph.ClusterNode{ID: "0"}))
	require.NoError(t, g.SetChunkCluster(cliques[0][0], "0"))
	require.NoError(t, g.SetChunkCluster("lonely0", "0"))

	p, err := Detect(g, Config{Algorithm: AlgorithmComponents}, nil)
	require.NoError(t, err)
	assert.Len(t, p.Labels, 3)
	assert.NotContains(t, p.Labels, "lonely0")
	assert.Equal(t, 1, p.Communities)
}

func TestDetect_EmptyGraph(t *testing.T) {
	p, err := Detect(graph.New(), Config{}, nil)
	require.NoError(t, err)
	assert.Empty(t, p.Labels)
	assert.Zero(t, p.Communities)
}

func TestDetect_UnsupportedAlgorithm(t *testing.T) {
	g, _ := cliqueGraph(t, 0, 3)

	_, err := Detect(g, Config{Algorithm: "infomap"}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}
