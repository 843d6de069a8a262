// Package community partitions the chunk reference graph with gonum's
// community detection.
package community

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"

	"go.uber.org/zap"
	gonumgraph "gonum.org/v1/gonum/graph"
	gcommunity "gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/dshills/codegraph/internal/graph"
)

const (
	// AlgorithmLouvain is multi-level modularity optimisation
	AlgorithmLouvain = "louvain"
	// AlgorithmComponents labels connected components
	AlgorithmComponents = "components"

	// DefaultSeed seeds the partitioner when none is configured
	DefaultSeed uint64 = 42
	// DefaultResolution is the modularity resolution parameter
	DefaultResolution = 1.0
)

// ErrUnsupportedAlgorithm is returned for an unknown algorithm name
var ErrUnsupportedAlgorithm = errors.New("unsupported community detection algorithm")

// Config selects and parameterises the algorithm
type Config struct {
	Algorithm  string
	Seed       uint64
	Resolution float64
}

// Validate checks the algorithm name
func (c Config) Validate() error {
	switch c.Algorithm {
	case "", AlgorithmLouvain, AlgorithmComponents:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, c.Algorithm)
}

// Partition maps chunk ids to community labels
type Partition struct {
	Labels      map[string]string
	Communities int
	Modularity  float64
}

// Detect partitions the chunks that take part in at least one import or
// call edge. Edge direction is ignored and parallel edges add weight.
// Labels are "0", "1", ... ordered by each community's first chunk in
// insertion order, so a fixed graph and seed always give the same labels.
func Detect(g *graph.Graph, cfg Config, logger *zap.Logger) (*Partition, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmLouvain
	}
	if cfg.Resolution == 0 {
		cfg.Resolution = DefaultResolution
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	links, ids := undirectedLinks(g)
	partition := &Partition{Labels: make(map[string]string)}
	if links.Nodes().Len() == 0 {
		return partition, nil
	}

	var communities [][]gonumgraph.Node
	switch cfg.Algorithm {
	case AlgorithmLouvain:
		src := rand.NewPCG(cfg.Seed, cfg.Seed)
		communities = gcommunity.Modularize(links, cfg.Resolution, src).Communities()
	case AlgorithmComponents:
		communities = topo.ConnectedComponents(links)
	}
	partition.Modularity = gcommunity.Q(links, communities, cfg.Resolution)

	canonical := make([][]int64, 0, len(communities))
	for _, members := range communities {
		if len(members) == 0 {
			continue
		}
		dense := make([]int64, len(members))
		for i, n := range members {
			dense[i] = n.ID()
		}
		slices.Sort(dense)
		canonical = append(canonical, dense)
	}
	slices.SortFunc(canonical, func(a, b []int64) int {
		return cmp.Compare(a[0], b[0])
	})

	for label, members := range canonical {
		for _, dense := range members {
			partition.Labels[ids[dense]] = strconv.Itoa(label)
		}
	}
	partition.Communities = len(canonical)

	logger.Info("detected communities",
		zap.String("algorithm", cfg.Algorithm),
		zap.Uint64("seed", cfg.Seed),
		zap.Int("nodes", len(ids)),
		zap.Int("communities", partition.Communities),
		zap.Float64("modularity", partition.Modularity))

	return partition, nil
}

// undirectedLinks builds the weighted undirected link graph over dense ids.
// Dense ids follow chunk insertion order; ids maps them back.
func undirectedLinks(g *graph.Graph) (*simple.WeightedUndirectedGraph, []string) {
	var refs []*graph.Edge
	linked := make(map[string]bool)
	for _, e := range g.Edges() {
		if e.Kind.IsReference() && e.Src != e.Dst {
			refs = append(refs, e)
			linked[e.Src] = true
			linked[e.Dst] = true
		}
	}

	dense := make(map[string]int64)
	var ids []string
	links := simple.NewWeightedUndirectedGraph(0, 0)
	for _, id := range g.ChunkIDs() {
		if !linked[id] {
			continue
		}
		dense[id] = int64(len(ids))
		ids = append(ids, id)
		links.AddNode(simple.Node(dense[id]))
	}

	for _, e := range refs {
		u, v := dense[e.Src], dense[e.Dst]
		weight := 1.0
		if existing := links.WeightedEdge(u, v); existing != nil {
			weight += existing.Weight()
		}
		links.SetWeightedEdge(links.NewWeightedEdge(simple.Node(u), simple.Node(v), weight))
	}
	return links, ids
}
