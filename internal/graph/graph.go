package graph

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

var (
	// ErrMissingNode is returned when an edge endpoint or lookup names no live node
	ErrMissingNode = errors.New("node not found")
	// ErrDuplicateNode is returned when adding a node whose id is already live
	ErrDuplicateNode = errors.New("node already exists")
	// ErrInvalidEdge is returned when an edge kind does not fit its endpoint kinds
	ErrInvalidEdge = errors.New("invalid edge")
	// ErrAlreadyMember is returned when a chunk would gain a second cluster link
	ErrAlreadyMember = errors.New("chunk already belongs to a cluster")
	// ErrEmptyID is returned when adding a node without an id
	ErrEmptyID = errors.New("node id is required")
)

// Graph is an in-memory directed multigraph of chunk and cluster nodes.
// It is not safe for concurrent mutation; Engine serializes batch edits.
type Graph struct {
	nodes map[string]Node
	order []string

	edges    map[int64]*Edge
	out      map[string][]int64
	in       map[string][]int64
	nextEdge int64

	// next candidate for NewClusterID
	nextCluster int64

	clustered bool
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		nodes: make(map[string]Node),
		edges: make(map[int64]*Edge),
		out:   make(map[string][]int64),
		in:    make(map[string][]int64),
	}
}

// Clustered reports whether clustering has completed on this graph
func (g *Graph) Clustered() bool {
	return g.clustered
}

// SetClustered marks clustering as complete (or not)
func (g *Graph) SetClustered(v bool) {
	g.clustered = v
}

// NumNodes returns the number of live nodes
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// NumEdges returns the number of live edges
func (g *Graph) NumEdges() int {
	return len(g.edges)
}

// AddChunk inserts a chunk node
func (g *Graph) AddChunk(c *ChunkNode) error {
	return g.addNode(c)
}

// AddCluster inserts a cluster node. Numeric ids advance the id allocator
// so NewClusterID never hands them out again.
func (g *Graph) AddCluster(c *ClusterNode) error {
	if c.Level == "" {
		c.Level = LevelLeaf
	}
	if err := g.addNode(c); err != nil {
		return err
	}
	if n, err := strconv.ParseInt(c.ID, 10, 64); err == nil && n >= g.nextCluster {
		g.nextCluster = n + 1
	}
	return nil
}

func (g *Graph) addNode(n Node) error {
	id := n.NodeID()
	if id == "" {
		return ErrEmptyID
	}
	if _, ok := g.nodes[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}
	g.nodes[id] = n
	g.order = append(g.order, id)
	return nil
}

// NewClusterID allocates a cluster id that is disjoint from every live node id.
// Allocation is monotonic for the lifetime of the graph.
func (g *Graph) NewClusterID() string {
	for {
		id := strconv.FormatInt(g.nextCluster, 10)
		g.nextCluster++
		if _, taken := g.nodes[id]; !taken {
			return id
		}
	}
}

// HasNode reports whether id names a live node
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns the node with the given id
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Chunk returns the chunk node with the given id
func (g *Graph) Chunk(id string) (*ChunkNode, bool) {
	c, ok := g.nodes[id].(*ChunkNode)
	return c, ok
}

// Cluster returns the cluster node with the given id
func (g *Graph) Cluster(id string) (*ClusterNode, bool) {
	c, ok := g.nodes[id].(*ClusterNode)
	return c, ok
}

// Nodes returns all live nodes in insertion order
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// ChunkIDs returns the ids of all chunk nodes in insertion order
func (g *Graph) ChunkIDs() []string {
	return g.idsOf(KindChunk)
}

// ClusterIDs returns the ids of all cluster nodes in insertion order
func (g *Graph) ClusterIDs() []string {
	return g.idsOf(KindCluster)
}

func (g *Graph) idsOf(kind NodeKind) []string {
	var ids []string
	for _, id := range g.order {
		if g.nodes[id].Kind() == kind {
			ids = append(ids, id)
		}
	}
	return ids
}

// AddEdge inserts an edge after checking that both endpoints are live and of
// the kind the edge requires
func (g *Graph) AddEdge(e Edge) (*Edge, error) {
	src, ok := g.nodes[e.Src]
	if !ok {
		return nil, fmt.Errorf("%w: source %s", ErrMissingNode, e.Src)
	}
	dst, ok := g.nodes[e.Dst]
	if !ok {
		return nil, fmt.Errorf("%w: target %s", ErrMissingNode, e.Dst)
	}

	var wantSrc, wantDst NodeKind
	switch e.Kind {
	case EdgeImport, EdgeCall:
		wantSrc, wantDst = KindChunk, KindChunk
	case EdgeChunkToCluster:
		wantSrc, wantDst = KindChunk, KindCluster
	case EdgeClusterToCluster, EdgeClusterRef:
		wantSrc, wantDst = KindCluster, KindCluster
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidEdge, e.Kind)
	}
	if src.Kind() != wantSrc || dst.Kind() != wantDst {
		return nil, fmt.Errorf("%w: %s edge from %s to %s", ErrInvalidEdge, e.Kind, src.Kind(), dst.Kind())
	}

	if e.Kind == EdgeChunkToCluster {
		if _, member := g.ClusterOf(e.Src); member {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyMember, e.Src)
		}
	}

	g.nextEdge++
	edge := e
	edge.ID = g.nextEdge
	g.edges[edge.ID] = &edge
	g.out[edge.Src] = append(g.out[edge.Src], edge.ID)
	g.in[edge.Dst] = append(g.in[edge.Dst], edge.ID)
	return &edge, nil
}

// RemoveEdge deletes a single edge by id
func (g *Graph) RemoveEdge(id int64) bool {
	e, ok := g.edges[id]
	if !ok {
		return false
	}
	delete(g.edges, id)
	g.out[e.Src] = slices.DeleteFunc(g.out[e.Src], func(x int64) bool { return x == id })
	g.in[e.Dst] = slices.DeleteFunc(g.in[e.Dst], func(x int64) bool { return x == id })
	return true
}

// RemoveEdgesBetween deletes every src->dst edge of the given kind and
// returns how many were removed
func (g *Graph) RemoveEdgesBetween(src, dst string, kind EdgeKind) int {
	removed := 0
	for _, e := range g.OutEdges(src, kind) {
		if e.Dst == dst && g.RemoveEdge(e.ID) {
			removed++
		}
	}
	return removed
}

// HasEdge reports whether at least one src->dst edge of the given kind exists
func (g *Graph) HasEdge(src, dst string, kind EdgeKind) bool {
	for _, id := range g.out[src] {
		if e := g.edges[id]; e.Dst == dst && e.Kind == kind {
			return true
		}
	}
	return false
}

// OutEdges returns the outgoing edges of id, optionally filtered by kind,
// in insertion order
func (g *Graph) OutEdges(id string, kinds ...EdgeKind) []*Edge {
	return g.collect(g.out[id], kinds)
}

// InEdges returns the incoming edges of id, optionally filtered by kind,
// in insertion order
func (g *Graph) InEdges(id string, kinds ...EdgeKind) []*Edge {
	return g.collect(g.in[id], kinds)
}

func (g *Graph) collect(ids []int64, kinds []EdgeKind) []*Edge {
	var edges []*Edge
	for _, id := range ids {
		e := g.edges[id]
		if len(kinds) == 0 || slices.Contains(kinds, e.Kind) {
			edges = append(edges, e)
		}
	}
	return edges
}

// Edges returns all live edges, optionally filtered by kind, in insertion order
func (g *Graph) Edges(kinds ...EdgeKind) []*Edge {
	ids := make([]int64, 0, len(g.edges))
	for id := range g.edges {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return g.collect(ids, kinds)
}

// RemoveNode deletes a node together with every incident edge
func (g *Graph) RemoveNode(id string) bool {
	if _, ok := g.nodes[id]; !ok {
		return false
	}
	for _, e := range g.OutEdges(id) {
		g.RemoveEdge(e.ID)
	}
	for _, e := range g.InEdges(id) {
		g.RemoveEdge(e.ID)
	}
	delete(g.nodes, id)
	delete(g.out, id)
	delete(g.in, id)
	g.order = slices.DeleteFunc(g.order, func(x string) bool { return x == id })
	return true
}

// ClusterOf returns the cluster a chunk currently belongs to
func (g *Graph) ClusterOf(chunkID string) (string, bool) {
	for _, id := range g.out[chunkID] {
		if e := g.edges[id]; e.Kind == EdgeChunkToCluster {
			return e.Dst, true
		}
	}
	return "", false
}

// SetChunkCluster moves a chunk into cluster, removing any previous
// membership first
func (g *Graph) SetChunkCluster(chunkID, clusterID string) error {
	if _, ok := g.Chunk(chunkID); !ok {
		return fmt.Errorf("%w: chunk %s", ErrMissingNode, chunkID)
	}
	if _, ok := g.Cluster(clusterID); !ok {
		return fmt.Errorf("%w: cluster %s", ErrMissingNode, clusterID)
	}
	for _, e := range g.OutEdges(chunkID, EdgeChunkToCluster) {
		g.RemoveEdge(e.ID)
	}
	_, err := g.AddEdge(Edge{Src: chunkID, Dst: clusterID, Kind: EdgeChunkToCluster})
	return err
}

// ChunkChildren returns the chunks that belong directly to a cluster
func (g *Graph) ChunkChildren(clusterID string) []string {
	return g.sources(clusterID, EdgeChunkToCluster)
}

// ClusterChildren returns the clusters adopted by a cluster
func (g *Graph) ClusterChildren(clusterID string) []string {
	return g.sources(clusterID, EdgeClusterToCluster)
}

func (g *Graph) sources(id string, kind EdgeKind) []string {
	var ids []string
	for _, e := range g.InEdges(id, kind) {
		ids = append(ids, e.Src)
	}
	return ids
}

// ChildCount counts incoming membership edges (chunks and child clusters)
func (g *Graph) ChildCount(clusterID string) int {
	count := 0
	for _, e := range g.InEdges(clusterID) {
		if e.Kind.IsMembership() {
			count++
		}
	}
	return count
}

// Parent returns the first parent cluster of a cluster
func (g *Graph) Parent(clusterID string) (string, bool) {
	for _, e := range g.OutEdges(clusterID, EdgeClusterToCluster) {
		return e.Dst, true
	}
	return "", false
}

// Roots returns clusters without a parent, in insertion order
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.ClusterIDs() {
		if _, ok := g.Parent(id); !ok {
			roots = append(roots, id)
		}
	}
	return roots
}

// PruneIfEmpty deletes a cluster that has no children left
func (g *Graph) PruneIfEmpty(clusterID string) bool {
	if _, ok := g.Cluster(clusterID); !ok {
		return false
	}
	if g.ChildCount(clusterID) > 0 {
		return false
	}
	return g.RemoveNode(clusterID)
}
