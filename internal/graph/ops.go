package graph

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrOpSkipped marks an operation that was not applied because it named
// nodes that do not exist or were already in the requested state
var ErrOpSkipped = errors.New("operation skipped")

// Op is a graph edit. Refinement output is turned into Ops and applied
// through Engine.ApplyBatch.
type Op interface {
	// Apply mutates g. Errors wrapping ErrOpSkipped mean nothing changed.
	Apply(g *Graph) error
	String() string
}

// MoveOp reassigns a chunk from one cluster to another
type MoveOp struct {
	Src   string
	Dst   string
	Chunk string
}

func (op MoveOp) String() string {
	return fmt.Sprintf("move %s: %s -> %s", op.Chunk, op.Src, op.Dst)
}

// Apply removes chunk->Src and adds chunk->Dst. Src is deleted once it has
// no children left.
func (op MoveOp) Apply(g *Graph) error {
	if _, ok := g.Chunk(op.Chunk); !ok {
		return fmt.Errorf("%w: unknown chunk %q", ErrOpSkipped, op.Chunk)
	}
	if _, ok := g.Cluster(op.Src); !ok {
		return fmt.Errorf("%w: unknown source cluster %q", ErrOpSkipped, op.Src)
	}
	if _, ok := g.Cluster(op.Dst); !ok {
		return fmt.Errorf("%w: unknown destination cluster %q", ErrOpSkipped, op.Dst)
	}
	if op.Src == op.Dst {
		return fmt.Errorf("%w: chunk %q already in %q", ErrOpSkipped, op.Chunk, op.Dst)
	}
	if current, ok := g.ClusterOf(op.Chunk); ok && current != op.Src {
		return fmt.Errorf("%w: chunk %q is in %q, not %q", ErrOpSkipped, op.Chunk, current, op.Src)
	}

	g.RemoveEdgesBetween(op.Chunk, op.Src, EdgeChunkToCluster)
	if _, err := g.AddEdge(Edge{Src: op.Chunk, Dst: op.Dst, Kind: EdgeChunkToCluster}); err != nil {
		return err
	}
	g.PruneIfEmpty(op.Src)
	return nil
}

// CreateOp creates a cluster node. It must precede any op that names ID.
type CreateOp struct {
	ID    string
	Title string
	Level ClusterLevel
}

func (op CreateOp) String() string {
	return fmt.Sprintf("create %s (%q)", op.ID, op.Title)
}

func (op CreateOp) Apply(g *Graph) error {
	if g.HasNode(op.ID) {
		return fmt.Errorf("%w: id %q already exists", ErrOpSkipped, op.ID)
	}
	return g.AddCluster(&ClusterNode{ID: op.ID, Title: op.Title, Level: op.Level})
}

// AdoptCluster makes Parent the parent of Child
type AdoptCluster struct {
	Child  string
	Parent string
}

func (op AdoptCluster) String() string {
	return fmt.Sprintf("adopt %s under %s", op.Child, op.Parent)
}

func (op AdoptCluster) Apply(g *Graph) error {
	if _, ok := g.Cluster(op.Child); !ok {
		return fmt.Errorf("%w: unknown child cluster %q", ErrOpSkipped, op.Child)
	}
	if _, ok := g.Cluster(op.Parent); !ok {
		return fmt.Errorf("%w: unknown parent cluster %q", ErrOpSkipped, op.Parent)
	}
	if op.Child == op.Parent {
		return fmt.Errorf("%w: cluster %q cannot adopt itself", ErrOpSkipped, op.Child)
	}
	if g.HasEdge(op.Child, op.Parent, EdgeClusterToCluster) {
		return fmt.Errorf("%w: %q already under %q", ErrOpSkipped, op.Child, op.Parent)
	}
	_, err := g.AddEdge(Edge{Src: op.Child, Dst: op.Parent, Kind: EdgeClusterToCluster})
	return err
}

// BatchResult summarizes one ApplyBatch call
type BatchResult struct {
	Applied    int
	Skipped    int
	Collisions int      // number of (src, chunk) keys with conflicting destinations
	Dropped    []MoveOp // moves discarded because of collisions
}

// Engine applies operation batches to a graph. ApplyBatch is the single
// serialization point for refinement results.
type Engine struct {
	mu     sync.Mutex
	graph  *Graph
	logger *zap.Logger
}

// NewEngine creates an engine bound to g
func NewEngine(g *Graph, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{graph: g, logger: logger}
}

// Graph returns the graph the engine mutates
func (e *Engine) Graph() *Graph {
	return e.graph
}

type moveKey struct {
	src   string
	chunk string
}

// ApplyBatch applies ops in input order. Moves sharing a (Src, Chunk) key
// but disagreeing on Dst are all dropped. There is no rollback: an error
// leaves the ops before it applied.
func (e *Engine) ApplyBatch(ops []Op) (*BatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	destinations := make(map[moveKey]map[string]struct{})
	for _, op := range ops {
		mv, ok := op.(MoveOp)
		if !ok {
			continue
		}
		key := moveKey{src: mv.Src, chunk: mv.Chunk}
		if destinations[key] == nil {
			destinations[key] = make(map[string]struct{})
		}
		destinations[key][mv.Dst] = struct{}{}
	}

	result := &BatchResult{}
	collided := make(map[moveKey]bool)
	for key, dsts := range destinations {
		if len(dsts) > 1 {
			collided[key] = true
			result.Collisions++
		}
	}

	for _, op := range ops {
		if mv, ok := op.(MoveOp); ok && collided[moveKey{src: mv.Src, chunk: mv.Chunk}] {
			e.logger.Warn("dropping colliding move",
				zap.String("chunk", mv.Chunk),
				zap.String("src", mv.Src),
				zap.String("dst", mv.Dst))
			result.Dropped = append(result.Dropped, mv)
			continue
		}

		err := op.Apply(e.graph)
		switch {
		case err == nil:
			result.Applied++
		case errors.Is(err, ErrOpSkipped):
			e.logger.Warn("skipping operation", zap.String("op", op.String()), zap.Error(err))
			result.Skipped++
		default:
			return result, fmt.Errorf("apply %s: %w", op, err)
		}
	}

	e.logger.Debug("applied operation batch",
		zap.Int("ops", len(ops)),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", result.Skipped),
		zap.Int("collisions", result.Collisions))

	return result, nil
}
