package cluster

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/codegraph/internal/graph"
	"github.com/dshills/codegraph/internal/refine"
)

// ErrHierarchyNotConverged is returned when clusters are still unparented
// after the maximum number of hierarchy iterations
var ErrHierarchyNotConverged = errors.New("cluster hierarchy did not converge")

// HierarchyResult describes a hierarchy build
type HierarchyResult struct {
	Iterations int      `json:"iterations"`
	Categories []string `json:"categories"`
	Dropped    int      `json:"dropped"`
}

// BuildHierarchy places every leaf cluster under a category. Each
// iteration asks the proposer to parent the clusters that still lack one,
// showing it the categories created so far so it can reuse them.
func (p *Pipeline) BuildHierarchy(ctx context.Context) (*HierarchyResult, error) {
	g := p.engine.Graph()
	result := &HierarchyResult{}

	for iteration := 0; ; iteration++ {
		unparented := p.unparented()
		if len(unparented) == 0 {
			result.Iterations = iteration
			break
		}
		if iteration == p.config.MaxHierarchyIterations {
			return result, fmt.Errorf("%w: %d clusters unparented after %d iterations",
				ErrHierarchyNotConverged, len(unparented), iteration)
		}

		req := refine.HierarchyRequest{Parents: p.parentSummaries()}
		for _, id := range unparented {
			req.Unparented = append(req.Unparented, summarize(g, id))
		}

		proposal, err := p.refiner.ProposeHierarchy(ctx, req)
		if err != nil {
			return result, fmt.Errorf("propose hierarchy (iteration %d): %w", iteration+1, err)
		}

		ops, created, dropped := p.hierarchyOps(proposal)
		result.Dropped += dropped
		if _, err := p.engine.ApplyBatch(ops); err != nil {
			return result, fmt.Errorf("apply hierarchy (iteration %d): %w", iteration+1, err)
		}
		pruneEmpty(g, created)
		for _, id := range created {
			if g.HasNode(id) {
				result.Categories = append(result.Categories, id)
			}
		}

		p.logger.Info("hierarchy iteration",
			zap.Int("iteration", iteration+1),
			zap.Int("unparented", len(unparented)),
			zap.Int("ops", len(ops)),
			zap.Int("dropped", dropped))
	}

	return result, nil
}

// unparented returns the non-category clusters without a parent
func (p *Pipeline) unparented() []string {
	g := p.engine.Graph()
	var ids []string
	for _, id := range g.Roots() {
		if c, _ := g.Cluster(id); c.Level != graph.LevelCategory {
			ids = append(ids, id)
		}
	}
	return ids
}

func (p *Pipeline) parentSummaries() []refine.ParentSummary {
	g := p.engine.Graph()
	var parents []refine.ParentSummary
	for _, id := range g.ClusterIDs() {
		c, _ := g.Cluster(id)
		if c.Level != graph.LevelCategory {
			continue
		}
		parents = append(parents, refine.ParentSummary{
			ID:       id,
			Title:    c.Title,
			Children: g.ClusterChildren(id),
		})
	}
	return parents
}

// hierarchyOps validates a proposal against the graph. Proposal-local ids
// of new parents are replaced by freshly allocated cluster ids; adoptions
// that name unknown clusters, adopt a category, or re-parent a cluster are
// dropped.
func (p *Pipeline) hierarchyOps(proposal *refine.HierarchyProposal) (ops []graph.Op, created []string, dropped int) {
	g := p.engine.Graph()
	local := make(map[string]string)

	for _, np := range proposal.Creates {
		if _, seen := local[np.ID]; seen {
			continue
		}
		if c, ok := g.Cluster(np.ID); ok && c.Level == graph.LevelCategory {
			local[np.ID] = np.ID
			continue
		}
		id := g.NewClusterID()
		local[np.ID] = id
		created = append(created, id)
		ops = append(ops, graph.CreateOp{ID: id, Title: np.Title, Level: graph.LevelCategory})
	}

	adopted := make(map[string]bool)
	for _, a := range proposal.Adopts {
		parent, ok := local[a.Parent]
		if !ok {
			if c, exists := g.Cluster(a.Parent); exists && c.Level == graph.LevelCategory {
				parent, ok = a.Parent, true
			}
		}
		child, known := g.Cluster(a.Child)

		var reason string
		switch {
		case !ok:
			reason = "unknown parent"
		case !known:
			reason = "unknown child"
		case child.Level == graph.LevelCategory:
			reason = "child is a category"
		case adopted[a.Child]:
			reason = "child adopted twice"
		default:
			if _, has := g.Parent(a.Child); has {
				reason = "child already has a parent"
			}
		}
		if reason != "" {
			p.logger.Warn("dropping adoption",
				zap.String("child", a.Child),
				zap.String("parent", a.Parent),
				zap.String("reason", reason))
			dropped++
			continue
		}

		adopted[a.Child] = true
		ops = append(ops, graph.AdoptCluster{Child: a.Child, Parent: parent})
	}
	return ops, created, dropped
}
