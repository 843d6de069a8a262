package graph

import (
	"cmp"
	"errors"
	"slices"
	"strings"
)

// ErrNotClustered is returned when path extraction runs before clustering
var ErrNotClustered = errors.New("graph has not been clustered")

// DefaultMaxHops bounds the length of enumerated paths
const DefaultMaxHops = 6

// Justification records the chunk-level reference behind a cluster hop
type Justification struct {
	SrcChunk string `json:"src_chunk"`
	Ref      string `json:"ref"`
	DstChunk string `json:"dst_chunk"`
}

// PathStep is one hop of a narrative path
type PathStep struct {
	Src            string          `json:"src"`
	Dst            string          `json:"dst"`
	Justifications []Justification `json:"justifications"`
}

// NarrativePath is an ordered sequence of cluster hops
type NarrativePath struct {
	Steps []PathStep `json:"steps"`
}

// Weight is the total number of justifications along the path
func (p NarrativePath) Weight() int {
	total := 0
	for _, step := range p.Steps {
		total += len(step.Justifications)
	}
	return total
}

// Clusters returns the cluster ids visited by the path in order
func (p NarrativePath) Clusters() []string {
	if len(p.Steps) == 0 {
		return nil
	}
	ids := []string{p.Steps[0].Src}
	for _, step := range p.Steps {
		ids = append(ids, step.Dst)
	}
	return ids
}

func (p NarrativePath) key() string {
	var b strings.Builder
	for _, step := range p.Steps {
		b.WriteString(step.Src)
		b.WriteByte('>')
		b.WriteString(step.Dst)
		b.WriteByte('[')
		for _, j := range step.Justifications {
			b.WriteString(j.SrcChunk)
			b.WriteByte('|')
			b.WriteString(j.Ref)
			b.WriteByte('|')
			b.WriteString(j.DstChunk)
			b.WriteByte(';')
		}
		b.WriteByte(']')
	}
	return b.String()
}

// AggregateClusterRefs lifts every chunk-level import edge whose endpoints
// sit in different clusters to a ClusterRefEdge and returns how many were
// added. Existing ClusterRefEdges are replaced.
func (g *Graph) AggregateClusterRefs() (int, error) {
	for _, e := range g.Edges(EdgeClusterRef) {
		g.RemoveEdge(e.ID)
	}

	added := 0
	for _, e := range g.Edges(EdgeImport) {
		srcCluster, ok := g.ClusterOf(e.Src)
		if !ok {
			continue
		}
		dstCluster, ok := g.ClusterOf(e.Dst)
		if !ok || srcCluster == dstCluster {
			continue
		}
		if _, err := g.AddEdge(Edge{
			Src:      srcCluster,
			Dst:      dstCluster,
			Kind:     EdgeClusterRef,
			Ref:      e.Ref,
			SrcChunk: e.Src,
			DstChunk: e.Dst,
		}); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// PathOptions bounds path enumeration
type PathOptions struct {
	MaxHops int
}

// GetLongestPath returns the n highest-weighted narrative paths
func (g *Graph) GetLongestPath(n int) ([]NarrativePath, error) {
	return g.LongestPaths(n, PathOptions{})
}

// LongestPaths enumerates simple paths over ClusterRefEdges between every
// pair of clusters, in both directions, and returns the top n ranked by
// total justification count. Ties keep discovery order.
func (g *Graph) LongestPaths(n int, opts PathOptions) ([]NarrativePath, error) {
	if !g.clustered {
		return nil, ErrNotClustered
	}
	if opts.MaxHops <= 0 {
		opts.MaxHops = DefaultMaxHops
	}

	// Adjacency restricted to clusters touched by ClusterRefEdges
	var nodes []string
	seen := make(map[string]bool)
	adjacency := make(map[string][]string)
	justifications := make(map[[2]string][]Justification)
	for _, e := range g.Edges(EdgeClusterRef) {
		pair := [2]string{e.Src, e.Dst}
		if _, ok := justifications[pair]; !ok {
			adjacency[e.Src] = append(adjacency[e.Src], e.Dst)
		}
		justifications[pair] = append(justifications[pair], Justification{
			SrcChunk: e.SrcChunk,
			Ref:      e.Ref,
			DstChunk: e.DstChunk,
		})
		for _, id := range pair {
			if !seen[id] {
				seen[id] = true
				nodes = append(nodes, id)
			}
		}
	}
	for pair, js := range justifications {
		justifications[pair] = normalizeJustifications(js)
	}

	var paths []NarrativePath
	keys := make(map[string]bool)
	emit := func(route []string) {
		path := NarrativePath{Steps: make([]PathStep, 0, len(route)-1)}
		for i := 0; i+1 < len(route); i++ {
			pair := [2]string{route[i], route[i+1]}
			path.Steps = append(path.Steps, PathStep{
				Src:            pair[0],
				Dst:            pair[1],
				Justifications: justifications[pair],
			})
		}
		if k := path.key(); !keys[k] {
			keys[k] = true
			paths = append(paths, path)
		}
	}

	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			simplePaths(adjacency, nodes[i], nodes[j], opts.MaxHops, emit)
			simplePaths(adjacency, nodes[j], nodes[i], opts.MaxHops, emit)
		}
	}

	slices.SortStableFunc(paths, func(a, b NarrativePath) int {
		return cmp.Compare(b.Weight(), a.Weight())
	})
	if n >= 0 && len(paths) > n {
		paths = paths[:n]
	}
	return paths, nil
}

// simplePaths calls emit for every simple path from src to dst with at most
// maxHops edges
func simplePaths(adjacency map[string][]string, src, dst string, maxHops int, emit func([]string)) {
	route := []string{src}
	onRoute := map[string]bool{src: true}

	var walk func(current string)
	walk = func(current string) {
		if len(route)-1 >= maxHops {
			return
		}
		for _, next := range adjacency[current] {
			if onRoute[next] {
				continue
			}
			route = append(route, next)
			if next == dst {
				emit(slices.Clone(route))
			} else {
				onRoute[next] = true
				walk(next)
				delete(onRoute, next)
			}
			route = route[:len(route)-1]
		}
	}
	walk(src)
}

func normalizeJustifications(js []Justification) []Justification {
	slices.SortFunc(js, func(a, b Justification) int {
		return cmp.Or(
			cmp.Compare(a.SrcChunk, b.SrcChunk),
			cmp.Compare(a.Ref, b.Ref),
			cmp.Compare(a.DstChunk, b.DstChunk),
		)
	})
	return slices.Compact(js)
}
