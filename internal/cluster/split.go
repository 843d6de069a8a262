package cluster

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/dshills/codegraph/internal/graph"
	"github.com/dshills/codegraph/internal/refine"
)

// SplitResult describes one split pass
type SplitResult struct {
	Cluster  string   `json:"cluster"`
	Size     int      `json:"size"`
	Created  []string `json:"created"`
	Moved    int      `json:"moved"`
	Ignored  int      `json:"ignored"`
	Removed  bool     `json:"removed"`
	Collided int      `json:"collided"`
}

// SplitLargest runs a single split pass. It returns nil when the largest
// cluster is below the split threshold.
func (p *Pipeline) SplitLargest(ctx context.Context) (*SplitResult, error) {
	g := p.engine.Graph()

	largest, size := "", 0
	for _, id := range g.ClusterIDs() {
		if n := len(g.ChunkChildren(id)); n > size {
			largest, size = id, n
		}
	}
	if size < p.config.SplitThreshold {
		return nil, nil
	}

	proposal, err := p.refiner.Split(ctx, refine.SplitRequest{Cluster: summarize(g, largest)})
	if err != nil {
		return nil, fmt.Errorf("split cluster %s: %w", largest, err)
	}

	members := make(map[string]bool, size)
	for _, id := range g.ChunkChildren(largest) {
		members[id] = true
	}

	result := &SplitResult{Cluster: largest, Size: size}
	var ops []graph.Op
	for _, sub := range proposal.Clusters {
		var chunks []string
		for _, name := range sub.Chunks {
			if !members[name] {
				p.logger.Warn("ignoring unknown chunk in split proposal",
					zap.String("cluster", largest),
					zap.String("chunk", name))
				result.Ignored++
				continue
			}
			chunks = append(chunks, name)
		}
		if len(chunks) == 0 {
			continue
		}

		id := g.NewClusterID()
		result.Created = append(result.Created, id)
		ops = append(ops, graph.CreateOp{ID: id, Title: sub.Title, Level: graph.LevelLeaf})
		for _, chunk := range chunks {
			ops = append(ops, graph.MoveOp{Src: largest, Dst: id, Chunk: chunk})
		}
	}
	if len(ops) == 0 {
		p.logger.Warn("split proposal named no chunks", zap.String("cluster", largest))
		return result, nil
	}

	batch, err := p.engine.ApplyBatch(ops)
	if err != nil {
		return nil, fmt.Errorf("apply split of %s: %w", largest, err)
	}
	result.Moved = batch.Applied - len(result.Created)
	result.Collided = len(batch.Dropped)
	result.Removed = !g.HasNode(largest)
	if pruneEmpty(g, result.Created) > 0 {
		result.Created = slices.DeleteFunc(result.Created, func(id string) bool { return !g.HasNode(id) })
	}

	p.logger.Info("split cluster",
		zap.String("cluster", largest),
		zap.Int("size", size),
		zap.Strings("created", result.Created),
		zap.Int("moved", result.Moved),
		zap.Bool("removed", result.Removed))

	return result, nil
}

// SplitRounds re-runs SplitLargest up to rounds times, stopping early once
// a pass moves nothing
func (p *Pipeline) SplitRounds(ctx context.Context, rounds int) ([]SplitResult, error) {
	var results []SplitResult
	for i := 0; i < rounds; i++ {
		result, err := p.SplitLargest(ctx)
		if err != nil {
			return results, err
		}
		if result == nil {
			break
		}
		results = append(results, *result)
		if result.Moved == 0 {
			break
		}
	}
	return results, nil
}
