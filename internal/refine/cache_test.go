package refine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithCache_AnswersRepeatedRequests(t *testing.T) {
	script := NewScriptedRefiner(&Script{
		Splits: []SplitProposal{
			{Clusters: []SubCluster{{Title: "first", Chunks: []string{"a"}}}},
			{Clusters: []SubCluster{{Title: "second", Chunks: []string{"b"}}}},
		},
	})
	cache := NewCache(8)
	r := WithCache(script, cache)

	req := SplitRequest{Cluster: ClusterSummary{ID: "1", Chunks: []ChunkSummary{{ID: "a"}}}}
	first, err := r.Split(context.Background(), req)
	require.NoError(t, err)
	again, err := r.Split(context.Background(), req)
	require.NoError(t, err)

	assert.Same(t, first, again)
	assert.Equal(t, 1, script.Calls("split"))
	assert.Equal(t, 1, cache.Size())

	other := SplitRequest{Cluster: ClusterSummary{ID: "2", Chunks: []ChunkSummary{{ID: "b"}}}}
	second, err := r.Split(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, "second", second.Clusters[0].Title)
	assert.Equal(t, 2, script.Calls("split"))

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
	assert.Equal(t, ProviderScript, r.Provider())
}

func TestWithCache_DoesNotCacheErrors(t *testing.T) {
	flaky := &flakyRefiner{failures: 1}
	r := WithCache(flaky, NewCache(0))

	_, err := r.Compare(context.Background(), CompareRequest{})
	require.Error(t, err)
	_, err = r.Compare(context.Background(), CompareRequest{})
	require.NoError(t, err)
	_, err = r.Compare(context.Background(), CompareRequest{})
	require.NoError(t, err)

	assert.Equal(t, 2, flaky.calls)
}

func TestComputeHash(t *testing.T) {
	a, err := ComputeHash(SplitRequest{Cluster: ClusterSummary{ID: "1"}})
	require.NoError(t, err)
	b, err := ComputeHash(SplitRequest{Cluster: ClusterSummary{ID: "1"}})
	require.NoError(t, err)
	c, err := ComputeHash(SplitRequest{Cluster: ClusterSummary{ID: "2"}})
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
