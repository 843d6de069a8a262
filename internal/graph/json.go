package graph

import (
	"encoding/json"
	"fmt"
)

// nodeLinkNode is a node with its metadata flattened into one object
type nodeLinkNode struct {
	Kind NodeKind `json:"kind"`
	ID   string   `json:"id"`

	// chunk fields
	FilePath    string   `json:"file_path,omitempty"`
	StartLine   int      `json:"start_line,omitempty"`
	EndLine     int      `json:"end_line,omitempty"`
	TokenCount  int      `json:"token_count,omitempty"`
	SpanIDs     []string `json:"span_ids,omitempty"`
	Content     string   `json:"content,omitempty"`
	Definitions []string `json:"definitions,omitempty"`
	References  []string `json:"references,omitempty"`

	// cluster fields
	Title        string       `json:"title,omitempty"`
	KeyVariables []string     `json:"key_variables,omitempty"`
	Level        ClusterLevel `json:"level,omitempty"`

	Summary string `json:"summary,omitempty"`
}

type nodeLinkEdge struct {
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Kind     EdgeKind `json:"kind"`
	Ref      string   `json:"ref,omitempty"`
	SrcChunk string   `json:"src_chunk,omitempty"`
	DstChunk string   `json:"dst_chunk,omitempty"`
}

type nodeLinkDocument struct {
	Directed   bool           `json:"directed"`
	Multigraph bool           `json:"multigraph"`
	Clustered  bool           `json:"clustered"`
	Nodes      []nodeLinkNode `json:"nodes"`
	Edges      []nodeLinkEdge `json:"edges"`
}

// MarshalNodeLink serializes the graph in node-link form
func MarshalNodeLink(g *Graph) ([]byte, error) {
	doc := nodeLinkDocument{
		Directed:   true,
		Multigraph: true,
		Clustered:  g.Clustered(),
		Nodes:      make([]nodeLinkNode, 0, g.NumNodes()),
		Edges:      make([]nodeLinkEdge, 0, g.NumEdges()),
	}

	for _, n := range g.Nodes() {
		switch node := n.(type) {
		case *ChunkNode:
			doc.Nodes = append(doc.Nodes, nodeLinkNode{
				Kind:        KindChunk,
				ID:          node.ID,
				FilePath:    node.Metadata.FilePath,
				StartLine:   node.Metadata.StartLine,
				EndLine:     node.Metadata.EndLine,
				TokenCount:  node.Metadata.TokenCount,
				SpanIDs:     node.Metadata.SpanIDs,
				Content:     node.Content,
				Definitions: node.Definitions,
				References:  node.References,
				Summary:     node.Summary,
			})
		case *ClusterNode:
			doc.Nodes = append(doc.Nodes, nodeLinkNode{
				Kind:         KindCluster,
				ID:           node.ID,
				Title:        node.Title,
				KeyVariables: node.KeyVariables,
				Level:        node.Level,
				Summary:      node.Summary,
			})
		}
	}

	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, nodeLinkEdge{
			Source:   e.Src,
			Target:   e.Dst,
			Kind:     e.Kind,
			Ref:      e.Ref,
			SrcChunk: e.SrcChunk,
			DstChunk: e.DstChunk,
		})
	}

	return json.MarshalIndent(doc, "", "  ")
}

// UnmarshalNodeLink rebuilds a graph from its node-link form
func UnmarshalNodeLink(data []byte) (*Graph, error) {
	var doc nodeLinkDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode node-link document: %w", err)
	}

	g := New()
	for _, n := range doc.Nodes {
		var err error
		switch n.Kind {
		case KindChunk:
			chunk := &ChunkNode{
				ID:          n.ID,
				Content:     n.Content,
				Summary:     n.Summary,
				Definitions: n.Definitions,
				References:  n.References,
			}
			chunk.Metadata.FilePath = n.FilePath
			chunk.Metadata.StartLine = n.StartLine
			chunk.Metadata.EndLine = n.EndLine
			chunk.Metadata.TokenCount = n.TokenCount
			chunk.Metadata.SpanIDs = n.SpanIDs
			err = g.AddChunk(chunk)
		case KindCluster:
			err = g.AddCluster(&ClusterNode{
				ID:           n.ID,
				Title:        n.Title,
				Summary:      n.Summary,
				KeyVariables: n.KeyVariables,
				Level:        n.Level,
			})
		default:
			err = fmt.Errorf("unknown node kind %q", n.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
	}

	for i, e := range doc.Edges {
		if _, err := g.AddEdge(Edge{
			Src:      e.Source,
			Dst:      e.Target,
			Kind:     e.Kind,
			Ref:      e.Ref,
			SrcChunk: e.SrcChunk,
			DstChunk: e.DstChunk,
		}); err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
	}

	g.SetClustered(doc.Clustered)
	return g, nil
}
