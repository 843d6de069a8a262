package refine

import (
	"context"
	"fmt"
	"path"
	"slices"
)

// LocalRefiner refines clusters with file layout heuristics. It needs no
// network and always converges.
type LocalRefiner struct{}

// NewLocalRefiner creates a heuristic refiner
func NewLocalRefiner() *LocalRefiner {
	return &LocalRefiner{}
}

// Split groups a cluster's chunks by file. A cluster drawn from a single
// file is cut into two halves in line order.
func (l *LocalRefiner) Split(ctx context.Context, req SplitRequest) (*SplitProposal, error) {
	chunks := req.Cluster.Chunks
	if len(chunks) == 0 {
		return nil, ErrEmptyRequest
	}

	var files []string
	byFile := make(map[string][]string)
	for _, c := range chunks {
		if _, ok := byFile[c.FilePath]; !ok {
			files = append(files, c.FilePath)
		}
		byFile[c.FilePath] = append(byFile[c.FilePath], c.ID)
	}

	proposal := &SplitProposal{}
	if len(files) == 1 {
		half := (len(chunks) + 1) / 2
		base := path.Base(files[0])
		proposal.Clusters = []SubCluster{
			{Title: base + " (part 1)", Chunks: idsOf(chunks[:half])},
			{Title: base + " (part 2)", Chunks: idsOf(chunks[half:])},
		}
		return proposal, nil
	}

	for _, f := range files {
		proposal.Clusters = append(proposal.Clusters, SubCluster{
			Title:  path.Base(f),
			Chunks: byFile[f],
		})
	}
	return proposal, nil
}

// Compare moves a chunk to the cluster holding most chunks of its file,
// when that cluster is in the other group
func (l *LocalRefiner) Compare(ctx context.Context, req CompareRequest) (*CompareProposal, error) {
	side := make(map[string]int)
	for _, c := range req.Left {
		side[c.ID] = 1
	}
	for _, c := range req.Right {
		side[c.ID] = 2
	}

	all := append(slices.Clone(req.Left), req.Right...)
	// file -> cluster -> count, with first-seen cluster order for ties
	counts := make(map[string]map[string]int)
	order := make(map[string][]string)
	for _, cluster := range all {
		for _, c := range cluster.Chunks {
			if counts[c.FilePath] == nil {
				counts[c.FilePath] = make(map[string]int)
			}
			if counts[c.FilePath][cluster.ID] == 0 {
				order[c.FilePath] = append(order[c.FilePath], cluster.ID)
			}
			counts[c.FilePath][cluster.ID]++
		}
	}

	proposal := &CompareProposal{}
	for _, cluster := range all {
		for _, c := range cluster.Chunks {
			best := cluster.ID
			for _, candidate := range order[c.FilePath] {
				if counts[c.FilePath][candidate] > counts[c.FilePath][best] {
					best = candidate
				}
			}
			if best != cluster.ID && side[best] != side[cluster.ID] {
				proposal.Moves = append(proposal.Moves, Move{Chunk: c.ID, Src: cluster.ID, Dst: best})
			}
		}
	}
	return proposal, nil
}

// ProposeHierarchy places every unparented cluster under a parent named
// after the directory most of its chunks live in
func (l *LocalRefiner) ProposeHierarchy(ctx context.Context, req HierarchyRequest) (*HierarchyProposal, error) {
	existing := make(map[string]string)
	for _, p := range req.Parents {
		existing[p.Title] = p.ID
	}

	proposal := &HierarchyProposal{}
	created := make(map[string]string)
	for _, cluster := range req.Unparented {
		dir := dominantDir(cluster)
		parent, ok := existing[dir]
		if !ok {
			parent, ok = created[dir]
		}
		if !ok {
			parent = fmt.Sprintf("p%d", len(created))
			created[dir] = parent
			proposal.Creates = append(proposal.Creates, NewParent{ID: parent, Title: dir})
		}
		proposal.Adopts = append(proposal.Adopts, Adoption{Child: cluster.ID, Parent: parent})
	}
	return proposal, nil
}

// Provider returns the provider name
func (l *LocalRefiner) Provider() string {
	return ProviderLocal
}

func dominantDir(cluster ClusterSummary) string {
	counts := make(map[string]int)
	best := "."
	for _, c := range cluster.Chunks {
		dir := path.Dir(c.FilePath)
		counts[dir]++
		if counts[dir] > counts[best] {
			best = dir
		}
	}
	return best
}

func idsOf(chunks []ChunkSummary) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

var _ Refiner = (*LocalRefiner)(nil)
