package refine

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrRetriesExhausted = errors.New("refinement retries exhausted")
	ErrInvalidResponse  = errors.New("invalid refinement response")
	ErrUnknownProvider  = errors.New("unknown refinement provider")
	ErrEmptyRequest     = errors.New("refinement request is empty")
)

// ChunkSummary is the view of a chunk sent to a refiner
type ChunkSummary struct {
	ID          string   `json:"id"`
	FilePath    string   `json:"file_path"`
	StartLine   int      `json:"start_line"`
	EndLine     int      `json:"end_line"`
	Definitions []string `json:"definitions,omitempty"`
	Content     string   `json:"content,omitempty"`
}

// ClusterSummary is the view of a cluster and its chunks
type ClusterSummary struct {
	ID     string         `json:"id"`
	Title  string         `json:"title,omitempty"`
	Chunks []ChunkSummary `json:"chunks"`
}

// SplitRequest asks for a cluster to be divided
type SplitRequest struct {
	Cluster ClusterSummary `json:"cluster"`
}

// SubCluster is one proposed part of a split, naming its chunks by id
type SubCluster struct {
	Title  string   `json:"title" yaml:"title"`
	Chunks []string `json:"chunks" yaml:"chunks"`
}

// SplitProposal is a refiner's answer to a SplitRequest
type SplitProposal struct {
	Clusters []SubCluster `json:"clusters" yaml:"clusters"`
}

// CompareRequest carries two groups of clusters to rebalance
type CompareRequest struct {
	Left  []ClusterSummary `json:"left"`
	Right []ClusterSummary `json:"right"`
}

// Move proposes reassigning a chunk between clusters
type Move struct {
	Chunk string `json:"chunk" yaml:"chunk"`
	Src   string `json:"src" yaml:"src"`
	Dst   string `json:"dst" yaml:"dst"`
}

// CompareProposal is a refiner's answer to a CompareRequest
type CompareProposal struct {
	Moves []Move `json:"moves" yaml:"moves"`
}

// ParentSummary describes a parent cluster created earlier
type ParentSummary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Children []string `json:"children"`
}

// HierarchyRequest lists the clusters still lacking a parent
type HierarchyRequest struct {
	Unparented []ClusterSummary `json:"unparented"`
	Parents    []ParentSummary  `json:"parents,omitempty"`
}

// NewParent is a proposed parent cluster. ID is local to the proposal.
type NewParent struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// Adoption places Child under Parent. Parent may name a NewParent or an
// existing parent.
type Adoption struct {
	Child  string `json:"child" yaml:"child"`
	Parent string `json:"parent" yaml:"parent"`
}

// HierarchyProposal is a refiner's answer to a HierarchyRequest
type HierarchyProposal struct {
	Creates []NewParent `json:"creates" yaml:"creates"`
	Adopts  []Adoption  `json:"adopts" yaml:"adopts"`
}

// Splitter divides oversized clusters
type Splitter interface {
	Split(ctx context.Context, req SplitRequest) (*SplitProposal, error)
}

// Comparer proposes chunk moves between two cluster groups
type Comparer interface {
	Compare(ctx context.Context, req CompareRequest) (*CompareProposal, error)
}

// HierarchyProposer groups clusters under parents
type HierarchyProposer interface {
	ProposeHierarchy(ctx context.Context, req HierarchyRequest) (*HierarchyProposal, error)
}

// Refiner provides all three refinement calls. Responses are untrusted:
// callers validate every id against the graph.
type Refiner interface {
	Splitter
	Comparer
	HierarchyProposer

	// Provider returns the provider name
	Provider() string
}
