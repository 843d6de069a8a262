package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/codegraph/internal/community"
	"github.com/dshills/codegraph/internal/graph"
	"github.com/dshills/codegraph/internal/refine"
)

// Defaults for Config
const (
	DefaultSplitThreshold         = 8
	DefaultSplitRounds            = 3
	DefaultRegroupGroups          = 3
	DefaultRegroupConcurrency     = 4
	DefaultMaxHierarchyIterations = 5
)

// ErrNoRefiner is returned when a pipeline is created without a refiner
var ErrNoRefiner = errors.New("refiner is required")

// Config controls the clustering phases
type Config struct {
	Community              community.Config
	SplitThreshold         int
	SplitRounds            int
	RegroupGroups          int
	RegroupConcurrency     int
	MaxHierarchyIterations int
	SkipRegroup            bool
	SkipHierarchy          bool
}

// DefaultConfig returns the default phase settings
func DefaultConfig() Config {
	return Config{
		Community: community.Config{
			Algorithm:  community.AlgorithmLouvain,
			Seed:       community.DefaultSeed,
			Resolution: community.DefaultResolution,
		},
		SplitThreshold:         DefaultSplitThreshold,
		SplitRounds:            DefaultSplitRounds,
		RegroupGroups:          DefaultRegroupGroups,
		RegroupConcurrency:     DefaultRegroupConcurrency,
		MaxHierarchyIterations: DefaultMaxHierarchyIterations,
	}
}

// withDefaults fills zero values
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SplitThreshold <= 0 {
		c.SplitThreshold = d.SplitThreshold
	}
	if c.SplitRounds <= 0 {
		c.SplitRounds = d.SplitRounds
	}
	if c.RegroupGroups <= 0 {
		c.RegroupGroups = d.RegroupGroups
	}
	if c.RegroupConcurrency <= 0 {
		c.RegroupConcurrency = d.RegroupConcurrency
	}
	if c.MaxHierarchyIterations <= 0 {
		c.MaxHierarchyIterations = d.MaxHierarchyIterations
	}
	return c
}

// Result summarizes a pipeline run
type Result struct {
	Communities int              `json:"communities"`
	Modularity  float64          `json:"modularity"`
	Assembled   int              `json:"assembled"`
	Splits      []SplitResult    `json:"splits,omitempty"`
	Regroup     *RegroupResult   `json:"regroup,omitempty"`
	Hierarchy   *HierarchyResult `json:"hierarchy,omitempty"`
	ClusterRefs int              `json:"cluster_refs"`
	Stats       *graph.Stats     `json:"stats,omitempty"`
	Duration    time.Duration    `json:"duration"`
}

// Pipeline owns a graph and clusters it. It is not safe for concurrent use.
type Pipeline struct {
	config  Config
	engine  *graph.Engine
	refiner refine.Refiner
	logger  *zap.Logger
}

// New creates a pipeline over g
func New(g *graph.Graph, refiner refine.Refiner, cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if refiner == nil {
		return nil, ErrNoRefiner
	}
	if err := cfg.Community.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		config:  cfg.withDefaults(),
		engine:  graph.NewEngine(g, logger),
		refiner: refiner,
		logger:  logger,
	}, nil
}

// Graph returns the graph the pipeline mutates
func (p *Pipeline) Graph() *graph.Graph {
	return p.engine.Graph()
}

// Run executes every phase and marks the graph clustered. A failing phase
// leaves the graph as the earlier phases left it.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	g := p.engine.Graph()
	result := &Result{}

	partition, err := community.Detect(g, p.config.Community, p.logger)
	if err != nil {
		return nil, fmt.Errorf("detect communities: %w", err)
	}
	result.Communities = partition.Communities
	result.Modularity = partition.Modularity

	if result.Assembled, err = Assemble(g, partition); err != nil {
		return nil, fmt.Errorf("assemble clusters: %w", err)
	}

	if result.Splits, err = p.SplitRounds(ctx, p.config.SplitRounds); err != nil {
		return nil, err
	}

	if !p.config.SkipRegroup {
		if result.Regroup, err = p.Regroup(ctx); err != nil {
			return nil, err
		}
	}

	if !p.config.SkipHierarchy {
		if result.Hierarchy, err = p.BuildHierarchy(ctx); err != nil {
			return nil, err
		}
	}

	if result.ClusterRefs, err = g.AggregateClusterRefs(); err != nil {
		return nil, fmt.Errorf("aggregate cluster refs: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("validate graph: %w", err)
	}
	g.SetClustered(true)

	if stats, err := g.GetStats(); err == nil {
		result.Stats = stats
	}
	result.Duration = time.Since(start)

	p.logger.Info("clustering complete",
		zap.Int("communities", result.Communities),
		zap.Int("clusters", len(g.ClusterIDs())),
		zap.Int("cluster_refs", result.ClusterRefs),
		zap.Duration("duration", result.Duration))

	return result, nil
}
