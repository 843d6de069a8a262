package cluster

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codegraph/internal/graph"
	"github.com/dshills/codegraph/internal/refine"
)

// BalancedGroups partitions items into k groups by greedy longest-first bin
// packing: items are taken by size descending (stable) and each goes to the
// group with the smallest running total, lowest index on ties. It returns
// item indices per group.
func BalancedGroups(sizes []int, k int) [][]int {
	if k <= 0 {
		k = 1
	}
	order := make([]int, len(sizes))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(sizes[b], sizes[a])
	})

	groups := make([][]int, k)
	totals := make([]int, k)
	for _, item := range order {
		smallest := 0
		for g := 1; g < k; g++ {
			if totals[g] < totals[smallest] {
				smallest = g
			}
		}
		groups[smallest] = append(groups[smallest], item)
		totals[smallest] += sizes[item]
	}
	return groups
}

// RegroupResult describes one regroup pass
type RegroupResult struct {
	Groups   int                `json:"groups"`
	Pairs    int                `json:"pairs"`
	Proposed int                `json:"proposed"`
	Batch    *graph.BatchResult `json:"batch"`
}

// Regroup splits the leaf clusters into balanced groups, asks the comparer
// for moves between every pair of groups and applies all proposed moves in
// one batch. Pair calls run concurrently; their moves are concatenated in
// pair order.
func (p *Pipeline) Regroup(ctx context.Context) (*RegroupResult, error) {
	g := p.engine.Graph()

	clusters := leafClusters(g)
	summaries := make([]refine.ClusterSummary, len(clusters))
	sizes := make([]int, len(clusters))
	for i, id := range clusters {
		summaries[i] = summarize(g, id)
		sizes[i] = len(summaries[i].Chunks)
	}

	groups := BalancedGroups(sizes, p.config.RegroupGroups)
	var pairs []refine.CompareRequest
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			if len(groups[i]) == 0 || len(groups[j]) == 0 {
				continue
			}
			pairs = append(pairs, refine.CompareRequest{
				Left:  pick(summaries, groups[i]),
				Right: pick(summaries, groups[j]),
			})
		}
	}

	result := &RegroupResult{Groups: len(groups), Pairs: len(pairs)}
	if len(pairs) == 0 {
		result.Batch = &graph.BatchResult{}
		return result, nil
	}

	proposals := make([]*refine.CompareProposal, len(pairs))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.config.RegroupConcurrency)
	for i, req := range pairs {
		eg.Go(func() error {
			proposal, err := p.refiner.Compare(egctx, req)
			if err != nil {
				return fmt.Errorf("compare group pair %d: %w", i, err)
			}
			proposals[i] = proposal
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var ops []graph.Op
	for _, proposal := range proposals {
		for _, mv := range proposal.Moves {
			ops = append(ops, graph.MoveOp{Src: mv.Src, Dst: mv.Dst, Chunk: mv.Chunk})
		}
	}
	result.Proposed = len(ops)

	batch, err := p.engine.ApplyBatch(ops)
	if err != nil {
		return nil, fmt.Errorf("apply regroup moves: %w", err)
	}
	result.Batch = batch

	p.logger.Info("regrouped clusters",
		zap.Int("groups", result.Groups),
		zap.Int("pairs", result.Pairs),
		zap.Int("proposed", result.Proposed),
		zap.Int("applied", batch.Applied),
		zap.Int("skipped", batch.Skipped),
		zap.Int("collisions", batch.Collisions))

	return result, nil
}

func pick(summaries []refine.ClusterSummary, indices []int) []refine.ClusterSummary {
	out := make([]refine.ClusterSummary, len(indices))
	for i, idx := range indices {
		out[i] = summaries[idx]
	}
	return out
}
