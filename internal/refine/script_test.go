package refine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScript = `
splits:
  - clusters:
      - title: Handlers
        chunks: [c0, c1, c2]
      - title: Storage
        chunks: [c3]
compares:
  - moves:
      - {chunk: c1, src: "4", dst: "5"}
hierarchies:
  - creates:
      - {id: p0, title: Service}
    adopts:
      - {child: "4", parent: p0}
`

func TestParseScript(t *testing.T) {
	script, err := ParseScript([]byte(sampleScript))
	require.NoError(t, err)

	require.Len(t, script.Splits, 1)
	assert.Equal(t, "Storage", script.Splits[0].Clusters[1].Title)
	assert.Equal(t, []Move{{Chunk: "c1", Src: "4", Dst: "5"}}, script.Compares[0].Moves)
	assert.Equal(t, []NewParent{{ID: "p0", Title: "Service"}}, script.Hierarchies[0].Creates)

	_, err = ParseScript([]byte("splits: {"))
	assert.Error(t, err)
}

func TestScriptedRefiner_ReplaysInOrder(t *testing.T) {
	script, err := ParseScript([]byte(sampleScript))
	require.NoError(t, err)
	r := NewScriptedRefiner(script)
	ctx := context.Background()

	split, err := r.Split(ctx, SplitRequest{})
	require.NoError(t, err)
	assert.Len(t, split.Clusters, 2)

	split, err = r.Split(ctx, SplitRequest{})
	require.NoError(t, err)
	assert.Empty(t, split.Clusters)

	cmp, err := r.Compare(ctx, CompareRequest{})
	require.NoError(t, err)
	assert.Len(t, cmp.Moves, 1)

	h, err := r.ProposeHierarchy(ctx, HierarchyRequest{})
	require.NoError(t, err)
	assert.Len(t, h.Adopts, 1)

	assert.Equal(t, 2, r.Calls("split"))
	assert.Equal(t, 1, r.Calls("compare"))
	assert.Equal(t, 1, r.Calls("hierarchy"))
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleScript), 0o644))

	script, err := LoadScript(path)
	require.NoError(t, err)
	assert.Len(t, script.Hierarchies, 1)

	_, err = LoadScript(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
