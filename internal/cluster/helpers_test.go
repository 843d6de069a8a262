package cluster

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/codegraph/internal/graph"
	"github.com/dshills/codegraph/internal/refine"
	"github.com/dshills/codegraph/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// addChunks adds chunks prefix0..prefixN-1 to file, one per ten lines
func addChunks(t *testing.T, g *graph.Graph, file, prefix string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s%d", prefix, i)
		require.NoError(t, g.AddChunk(&graph.ChunkNode{
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

func addCluster(t *testing.T, g *graph.Graph, id string, chunks ...string) {
	t.Helper()
	require.NoError(t, g.AddCluster(&graph.ClusterNode{ID: id}))
	for _, c := range chunks {
		require.NoError(t, g.SetChunkCluster(c, id))
	}
}

func newPipeline(t *testing.T, g *graph.Graph, r refine.Refiner, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(g, r, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return p
}

func scripted(t *testing.T, yaml string) *refine.ScriptedRefiner {
	t.Helper()
	script, err := refine.ParseScript([]byte(yaml))
	require.NoError(t, err)
	return refine.NewScriptedRefiner(script)
}

// chunkTotal counts chunks held by any cluster
func chunkTotal(g *graph.Graph) int {
	total := 0
	for _, id := range g.ClusterIDs() {
		total += len(g.ChunkChildren(id))
	}
	return total
}

// stubRefiner overrides single calls and falls back to the local heuristics
type stubRefiner struct {
	refine.LocalRefiner
	split     func(refine.SplitRequest) (*refine.SplitProposal, error)
	compare   func(refine.CompareRequest) (*refine.CompareProposal, error)
	hierarchy func(refine.HierarchyRequest) (*refine.HierarchyProposal, error)
}

func (s *stubRefiner) Split(ctx context.Context, req refine.SplitRequest) (*refine.SplitProposal, error) {
	if s.split != nil {
		return s.split(req)
	}
	return s.LocalRefiner.Split(ctx, req)
}

func (s *stubRefiner) Compare(ctx context.Context, req refine.CompareRequest) (*refine.CompareProposal, error) {
	if s.compare != nil {
		return s.compare(req)
	}
	return s.LocalRefiner.Compare(ctx, req)
}

func (s *stubRefiner) ProposeHierarchy(ctx context.Context, req refine.HierarchyRequest) (*refine.HierarchyProposal, error) {
	if s.hierarchy != nil {
		return s.hierarchy(req)
	}
	return s.LocalRefiner.ProposeHierarchy(ctx, req)
}
