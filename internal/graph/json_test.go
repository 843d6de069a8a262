package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalNodeLink_Document(t *testing.T) {
	g := newChainGraph(t)
	g.SetClustered(true)

	data, err := MarshalNodeLink(g)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, true, doc["directed"])
	assert.Equal(t, true, doc["multigraph"])
	assert.Equal(t, true, doc["clustered"])

	nodes := doc["nodes"].([]any)
	assert.Len(t, nodes, g.NumNodes())
	first := nodes[0].(map[string]any)
	assert.Equal(t, "a0", first["id"])
	assert.Equal(t, "chunk", first["kind"])
	assert.Equal(t, "a.go", first["file_path"])

	edges := doc["edges"].([]any)
	assert.Len(t, edges, g.NumEdges())
	edge := edges[0].(map[string]any)
	assert.Contains(t, edge, "source")
	assert.Contains(t, edge, "target")
}

func TestUnmarshalNodeLink_RebuildsGraph(t *testing.T) {
	g := newChainGraph(t)
	_, err := g.AggregateClusterRefs()
	require.NoError(t, err)
	g.SetClustered(true)

	data, err := MarshalNodeLink(g)
	require.NoError(t, err)

	loaded, err := UnmarshalNodeLink(data)
	require.NoError(t, err)

	assert.Equal(t, g.NumNodes(), loaded.NumNodes())
	assert.Equal(t, g.NumEdges(), loaded.NumEdges())
	assert.True(t, loaded.Clustered())

	want, err := g.GetLongestPath(1)
	require.NoError(t, err)
	got, err := loaded.GetLongestPath(1)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUnmarshalNodeLink_RejectsDanglingEdge(t *testing.T) {
	data := []byte(`{"directed":true,"multigraph":true,"nodes":[{"kind":"chunk","id":"a"}],` +
		`"edges":[{"source":"a","target":"b","kind":"import"}]}`)

	_, err := UnmarshalNodeLink(data)
	assert.ErrorIs(t, err, ErrMissingNode)
}
