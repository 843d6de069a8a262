package graph

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

var (
	// ErrNoClusters is returned by GetStats when the graph has no clusters
	ErrNoClusters = errors.New("graph has no clusters")
	// ErrHierarchyCycle is returned when cluster-to-cluster edges form a cycle
	ErrHierarchyCycle = errors.New("cluster hierarchy contains a cycle")
)

// ChunkView is the read model of a chunk leaf
type ChunkView struct {
	ID        string `json:"id"`
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Summary   string `json:"summary,omitempty"`
}

// ClusterView is the recursive read model of a cluster
type ClusterView struct {
	ID           string         `json:"id"`
	Title        string         `json:"title,omitempty"`
	Summary      string         `json:"summary,omitempty"`
	KeyVariables []string       `json:"key_variables,omitempty"`
	Level        ClusterLevel   `json:"level"`
	Children     []*ClusterView `json:"children,omitempty"`
	Chunks       []ChunkView    `json:"chunks,omitempty"`
}

// GetClusters materializes the cluster hierarchy. With parentsOnly, only
// clusters without a parent are returned (each carrying its full subtree);
// otherwise every cluster is returned with its subtree.
func (g *Graph) GetClusters(parentsOnly bool) ([]*ClusterView, error) {
	ids := g.ClusterIDs()
	if parentsOnly {
		ids = g.Roots()
	}

	views := make([]*ClusterView, 0, len(ids))
	for _, id := range ids {
		view, err := g.clusterView(id, make(map[string]bool))
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (g *Graph) clusterView(id string, visiting map[string]bool) (*ClusterView, error) {
	if visiting[id] {
		return nil, fmt.Errorf("%w: revisited %s", ErrHierarchyCycle, id)
	}
	visiting[id] = true
	defer delete(visiting, id)

	cluster, ok := g.Cluster(id)
	if !ok {
		return nil, fmt.Errorf("%w: cluster %s", ErrMissingNode, id)
	}

	view := &ClusterView{
		ID:           cluster.ID,
		Title:        cluster.Title,
		Summary:      cluster.Summary,
		KeyVariables: cluster.KeyVariables,
		Level:        cluster.Level,
	}
	for _, childID := range g.ClusterChildren(id) {
		child, err := g.clusterView(childID, visiting)
		if err != nil {
			return nil, err
		}
		view.Children = append(view.Children, child)
	}
	for _, chunkID := range g.ChunkChildren(id) {
		chunk, _ := g.Chunk(chunkID)
		view.Chunks = append(view.Chunks, ChunkView{
			ID:        chunk.ID,
			FilePath:  chunk.Metadata.FilePath,
			StartLine: chunk.Metadata.StartLine,
			EndLine:   chunk.Metadata.EndLine,
			Summary:   chunk.Summary,
		})
	}
	return view, nil
}

// Stats summarizes cluster sizes
type Stats struct {
	NumClusters    int     `json:"num_clusters"`
	NumChunks      int     `json:"num_chunks"`
	AvgClusterSize float64 `json:"avg_cluster_size"`
}

// GetStats counts clusters and chunks. The average is taken over clusters
// that hold chunks directly.
func (g *Graph) GetStats() (*Stats, error) {
	clusters := g.ClusterIDs()
	if len(clusters) == 0 {
		return nil, ErrNoClusters
	}

	leaves, members := 0, 0
	for _, id := range clusters {
		if n := len(g.ChunkChildren(id)); n > 0 {
			leaves++
			members += n
		}
	}

	stats := &Stats{
		NumClusters: len(clusters),
		NumChunks:   len(g.ChunkIDs()),
	}
	if leaves > 0 {
		stats.AvgClusterSize = float64(members) / float64(leaves)
	}
	return stats, nil
}

// Validate checks the structural invariants: edge endpoints are live, a
// chunk has at most one cluster, and the cluster hierarchy is acyclic
func (g *Graph) Validate() error {
	for _, e := range g.Edges() {
		if !g.HasNode(e.Src) || !g.HasNode(e.Dst) {
			return fmt.Errorf("%w: edge %d %s -> %s", ErrMissingNode, e.ID, e.Src, e.Dst)
		}
	}
	for _, id := range g.ChunkIDs() {
		if n := len(g.OutEdges(id, EdgeChunkToCluster)); n > 1 {
			return fmt.Errorf("%w: %s has %d cluster links", ErrAlreadyMember, id, n)
		}
	}
	return g.checkHierarchy()
}

// checkHierarchy runs a topological sort over cluster-to-cluster edges
func (g *Graph) checkHierarchy() error {
	index := make(map[string]int64)
	hierarchy := simple.NewDirectedGraph()
	for i, id := range g.ClusterIDs() {
		index[id] = int64(i)
		hierarchy.AddNode(simple.Node(i))
	}
	for _, e := range g.Edges(EdgeClusterToCluster) {
		if e.Src == e.Dst {
			return fmt.Errorf("%w: self loop on %s", ErrHierarchyCycle, e.Src)
		}
		from, to := simple.Node(index[e.Src]), simple.Node(index[e.Dst])
		if !hierarchy.HasEdgeFromTo(from.ID(), to.ID()) {
			hierarchy.SetEdge(simple.Edge{F: from, T: to})
		}
	}
	if _, err := topo.Sort(hierarchy); err != nil {
		return fmt.Errorf("%w: %v", ErrHierarchyCycle, err)
	}
	return nil
}
