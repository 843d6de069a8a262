package graph

import "github.com/dshills/codegraph/pkg/types"

// NodeKind discriminates the two node variants
type NodeKind string

const (
	KindChunk   NodeKind = "chunk"
	KindCluster NodeKind = "cluster"
)

// Node is the closed union of graph nodes: *ChunkNode or *ClusterNode.
// Callers dispatch with a type switch.
type Node interface {
	NodeID() string
	Kind() NodeKind
	sealed()
}

// ChunkNode is a chunk of source code. Content never changes after
// creation; only Summary and the chunk's cluster link are mutated.
type ChunkNode struct {
	ID          string
	Metadata    types.ChunkMetadata
	Content     string
	Summary     string
	Definitions []string
	References  []string
}

func (c *ChunkNode) NodeID() string { return c.ID }
func (c *ChunkNode) Kind() NodeKind { return KindChunk }
func (c *ChunkNode) sealed()        {}

// Range returns the whole-line span of the chunk
func (c *ChunkNode) Range() types.Range {
	return types.LineRange(c.Metadata.StartLine, c.Metadata.EndLine)
}

// ClusterLevel tells detector/split clusters apart from hierarchy parents
type ClusterLevel string

const (
	LevelLeaf     ClusterLevel = "leaf"
	LevelCategory ClusterLevel = "category"
)

// ClusterNode groups chunks (leaf clusters) or other clusters (categories)
type ClusterNode struct {
	ID           string
	Title        string
	Summary      string
	KeyVariables []string
	Level        ClusterLevel
}

func (c *ClusterNode) NodeID() string { return c.ID }
func (c *ClusterNode) Kind() NodeKind { return KindCluster }
func (c *ClusterNode) sealed()        {}

// NewChunkNode converts an extracted chunk into a graph node
func NewChunkNode(c types.Chunk) *ChunkNode {
	meta := c.Metadata
	meta.SpanIDs = append([]string(nil), c.Metadata.SpanIDs...)
	return &ChunkNode{
		ID:          c.ID,
		Metadata:    meta,
		Content:     c.Content,
		Definitions: append([]string(nil), c.Definitions...),
	}
}
