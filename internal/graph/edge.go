package graph

// EdgeKind identifies the relation an edge encodes
type EdgeKind string

const (
	// EdgeImport links a chunk to the chunk defining a name it references
	EdgeImport EdgeKind = "import"
	// EdgeCall marks a reference that is also a call site
	EdgeCall EdgeKind = "call"
	// EdgeChunkToCluster is cluster membership of a chunk
	EdgeChunkToCluster EdgeKind = "chunk_to_cluster"
	// EdgeClusterToCluster links a cluster to its parent category
	EdgeClusterToCluster EdgeKind = "cluster_to_cluster"
	// EdgeClusterRef aggregates a chunk-level reference at cluster level
	EdgeClusterRef EdgeKind = "cluster_ref"
)

// IsReference reports whether k is a chunk-to-chunk reference edge
func (k EdgeKind) IsReference() bool {
	return k == EdgeImport || k == EdgeCall
}

// IsMembership reports whether k links a child to its cluster
func (k EdgeKind) IsMembership() bool {
	return k == EdgeChunkToCluster || k == EdgeClusterToCluster
}

// Edge is a directed multigraph edge. Parallel edges between the same pair
// are distinct values with their own ID.
type Edge struct {
	ID   int64
	Src  string
	Dst  string
	Kind EdgeKind
	Ref  string

	// Originating chunks, set on EdgeClusterRef only
	SrcChunk string
	DstChunk string
}
