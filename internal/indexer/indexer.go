package indexer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codegraph/internal/builder"
	"github.com/dshills/codegraph/internal/capture"
	"github.com/dshills/codegraph/internal/chunker"
	"github.com/dshills/codegraph/internal/cluster"
	"github.com/dshills/codegraph/internal/community"
	"github.com/dshills/codegraph/internal/graph"
	"github.com/dshills/codegraph/internal/parser"
	"github.com/dshills/codegraph/internal/refine"
	"github.com/dshills/codegraph/internal/scope"
	"github.com/dshills/codegraph/internal/storage"
	"github.com/dshills/codegraph/pkg/types"
)

var (
	// ErrNoChunks is returned when a repository yields nothing to cluster
	ErrNoChunks = errors.New("no chunks found")
	// ErrNotIndexed is returned when a project has no stored graph yet
	ErrNotIndexed = errors.New("project has not been indexed")
)

// Indexer coordinates the pipeline: discover -> parse -> chunk -> build -> cluster -> store
type Indexer struct {
	parser   *parser.Parser
	chunker  *chunker.Chunker
	capturer capture.Capturer
	refiner  refine.Refiner
	storage  storage.Storage
	logger   *zap.Logger

	// Worker pool configuration
	workers int
}

// Config contains configuration for the indexer
type Config struct {
	Workers       int  // Number of concurrent parse workers (default: runtime.NumCPU())
	IncludeTests  bool // Whether to index test files
	IncludeVendor bool // Whether to index vendor directory
	Force         bool // Re-cluster even when the corpus is unchanged
	KeepSnapshots int  // Snapshots retained per project; 0 keeps all
	Cluster       cluster.Config
}

// DefaultConfig returns the configuration used when IndexProject gets nil
func DefaultConfig() *Config {
	return &Config{
		Workers:      runtime.NumCPU(),
		IncludeTests: false,
		Cluster:      cluster.DefaultConfig(),
	}
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	FilesIndexed  int             `json:"files_indexed"`
	FilesFailed   int             `json:"files_failed"`
	ChunksCreated int             `json:"chunks_created"`
	Build         *builder.Stats  `json:"build,omitempty"`
	Cluster       *cluster.Result `json:"cluster,omitempty"`
	Reused        bool            `json:"reused"`
	Duration      time.Duration   `json:"duration"`
	ErrorMessages []string        `json:"error_messages,omitempty"`
}

// Result is a clustered project graph and the snapshot it was stored as
type Result struct {
	Project  *storage.Project
	Snapshot *storage.Snapshot
	Graph    *graph.Graph
	Stats    *Statistics
}

// New creates a new Indexer instance
func New(store storage.Storage, refiner refine.Refiner, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		parser:   parser.New(),
		chunker:  chunker.New(),
		capturer: capture.New(),
		refiner:  refiner,
		storage:  store,
		logger:   logger,
		workers:  runtime.NumCPU(),
	}
}

// analyzedFile is one discovered file after reading and parsing
type analyzedFile struct {
	relPath string
	content []byte
	hash    [32]byte
	modTime time.Time
	size    int64
	result  *parser.Result
	chunks  []types.Chunk
}

// IndexProject indexes and clusters an entire Go project. When the corpus
// and settings match the latest snapshot, that snapshot is returned instead.
func (idx *Indexer) IndexProject(ctx context.Context, rootPath string, config *Config) (*Result, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	idx.workers = config.Workers

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	rootPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	project, err := idx.getOrCreateProject(ctx, rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create project: %w", err)
	}

	paths, err := idx.discoverFiles(rootPath, config)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	files, err := idx.analyzeFiles(ctx, rootPath, paths, stats)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze files: %w", err)
	}

	digest := corpusDigest(files, config, idx.refiner.Provider())
	if !config.Force {
		if snap, err := idx.storage.LatestSnapshot(ctx, project.ID); err == nil && snap.CorpusHash == digest {
			g, err := graph.UnmarshalNodeLink(snap.Graph)
			if err != nil {
				return nil, fmt.Errorf("failed to load snapshot %s: %w", snap.ID, err)
			}
			stats.Reused = true
			stats.Duration = time.Since(startTime)
			idx.logger.Info("corpus unchanged, reusing snapshot",
				zap.String("project", rootPath),
				zap.String("snapshot", snap.ID))
			return &Result{Project: project, Snapshot: snap, Graph: g, Stats: stats}, nil
		} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
		}
	}

	resolver := scope.NewGoResolver(project.ModuleName)
	var chunks []types.Chunk
	for _, f := range files {
		if f.result.File != nil {
			resolver.Add(f.result)
		}
		f.chunks = idx.chunker.ChunkFile(f.result, f.content)
		chunks = append(chunks, f.chunks...)
	}
	stats.ChunksCreated = len(chunks)
	oversized := 0
	for i := range chunks {
		if chunker.Oversized(&chunks[i]) {
			oversized++
		}
	}
	if oversized > 0 {
		idx.logger.Debug("oversized chunks",
			zap.Int("count", oversized),
			zap.Int("max_tokens", chunker.MaxTokensPerChunk))
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoChunks, rootPath)
	}

	g, _, buildStats, err := builder.New(resolver, idx.capturer, idx.logger).
		Build(ctx, chunks, builder.Options{SkipTests: !config.IncludeTests})
	if err != nil {
		return nil, fmt.Errorf("failed to build chunk graph: %w", err)
	}
	stats.Build = buildStats

	pipeline, err := cluster.New(g, idx.refiner, config.Cluster, idx.logger)
	if err != nil {
		return nil, err
	}
	clusterResult, err := pipeline.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to cluster %s: %w", rootPath, err)
	}
	stats.Cluster = clusterResult

	snap, err := idx.store(ctx, project, files, g, config, digest)
	if err != nil {
		return nil, err
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info("indexed project",
		zap.String("project", rootPath),
		zap.Int("files", stats.FilesIndexed),
		zap.Int("failed", stats.FilesFailed),
		zap.Int("chunks", stats.ChunksCreated),
		zap.String("snapshot", snap.ID),
		zap.Duration("duration", stats.Duration))

	return &Result{Project: project, Snapshot: snap, Graph: g, Stats: stats}, nil
}

// LoadLatest returns the most recent clustered graph stored for rootPath
func (idx *Indexer) LoadLatest(ctx context.Context, rootPath string) (*graph.Graph, *storage.Snapshot, error) {
	rootPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	project, err := idx.storage.GetProject(ctx, rootPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotIndexed, rootPath)
	}
	if err != nil {
		return nil, nil, err
	}
	snap, err := idx.storage.LatestSnapshot(ctx, project.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotIndexed, rootPath)
	}
	if err != nil {
		return nil, nil, err
	}
	g, err := graph.UnmarshalNodeLink(snap.Graph)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load snapshot %s: %w", snap.ID, err)
	}
	return g, snap, nil
}

// getOrCreateProject retrieves an existing project or creates a new one
func (idx *Indexer) getOrCreateProject(ctx context.Context, rootPath string) (*storage.Project, error) {
	project, err := idx.storage.GetProject(ctx, rootPath)
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	project = &storage.Project{
		RootPath:     rootPath,
		IndexVersion: storage.CurrentSchemaVersion,
	}

	// Try to extract module info from go.mod
	if modInfo, err := parseGoMod(filepath.Join(rootPath, "go.mod")); err == nil {
		project.ModuleName = modInfo.Module
		project.GoVersion = modInfo.GoVersion
	}

	if err := idx.storage.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// discoverFiles finds all Go files in the project, in lexical order
func (idx *Indexer) discoverFiles(rootPath string, config *Config) ([]string, error) {
	var files []string

	err := filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == rootPath {
				return nil
			}
			if !config.IncludeVendor && d.Name() == "vendor" {
				return filepath.SkipDir
			}
			// Skip hidden and underscore directories, as the go tool does
			if strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		if !config.IncludeTests && strings.HasSuffix(path, "_test.go") {
			return nil
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// analyzeFiles reads and parses files concurrently. Unreadable files are
// counted as failed and left out; syntax errors keep the partial result.
func (idx *Indexer) analyzeFiles(ctx context.Context, rootPath string, paths []string, stats *Statistics) ([]*analyzedFile, error) {
	semaphore := make(chan struct{}, idx.workers)
	results := make([]*analyzedFile, len(paths))
	errs := make([]error, len(paths))
	var failed int32

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			f, err := idx.analyzeFile(rootPath, path)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				errs[i] = err
				return nil
			}
			results[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := make([]*analyzedFile, 0, len(paths))
	for i, f := range results {
		if f == nil {
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", paths[i], errs[i]))
			continue
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].relPath < files[j].relPath })

	stats.FilesIndexed = len(files)
	stats.FilesFailed = int(failed)
	return files, nil
}

func (idx *Indexer) analyzeFile(rootPath, path string) (*analyzedFile, error) {
	relPath, err := filepath.Rel(rootPath, path)
	if err != nil {
		return nil, err
	}
	relPath = filepath.ToSlash(relPath)

	content, hash, modTime, size, err := readSource(path)
	if err != nil {
		return nil, err
	}
	result, err := idx.parser.ParseSource(relPath, content)
	if err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		idx.logger.Debug("parse errors", zap.String("file", relPath), zap.Int("errors", len(result.Errors)))
	}

	return &analyzedFile{
		relPath: relPath,
		content: content,
		hash:    hash,
		modTime: modTime,
		size:    size,
		result:  result,
	}, nil
}

// store records file state and the clustered graph in one transaction
func (idx *Indexer) store(ctx context.Context, project *storage.Project, files []*analyzedFile,
	g *graph.Graph, config *Config, digest string) (*storage.Snapshot, error) {

	data, err := graph.MarshalNodeLink(g)
	if err != nil {
		return nil, fmt.Errorf("failed to encode graph: %w", err)
	}

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current := make(map[string]bool, len(files))
	totalChunks := 0
	for _, f := range files {
		current[f.relPath] = true
		totalChunks += len(f.chunks)
		record := &storage.File{
			ProjectID:   project.ID,
			FilePath:    f.relPath,
			PackageName: f.result.PackageName,
			ContentHash: f.hash,
			ModTime:     f.modTime,
			SizeBytes:   f.size,
			ChunkCount:  len(f.chunks),
		}
		if len(f.result.Errors) > 0 {
			msg := f.result.Errors[0].Message
			record.ParseError = &msg
		}
		if err := tx.UpsertFile(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to store file %s: %w", f.relPath, err)
		}
	}

	// Drop files that disappeared since the last run
	stored, err := tx.ListFiles(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	for _, f := range stored {
		if !current[f.FilePath] {
			if err := tx.DeleteFile(ctx, f.ID); err != nil {
				return nil, err
			}
		}
	}

	algorithm := config.Cluster.Community.Algorithm
	if algorithm == "" {
		algorithm = community.AlgorithmLouvain
	}
	snap := &storage.Snapshot{
		ProjectID:   project.ID,
		CorpusHash:  digest,
		Algorithm:   algorithm,
		Seed:        config.Cluster.Community.Seed,
		Provider:    idx.refiner.Provider(),
		Clustered:   g.Clustered(),
		NumChunks:   len(g.ChunkIDs()),
		NumClusters: len(g.ClusterIDs()),
		NumEdges:    g.NumEdges(),
		Graph:       data,
	}
	if err := tx.SaveSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	if config.KeepSnapshots > 0 {
		if _, err := tx.PruneSnapshots(ctx, project.ID, config.KeepSnapshots); err != nil {
			return nil, err
		}
	}

	project.TotalFiles = len(files)
	project.TotalChunks = totalChunks
	project.LastIndexedAt = time.Now()
	if err := tx.UpdateProject(ctx, project); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return snap, nil
}

// corpusDigest hashes every file hash together with the settings that shape
// the clustered graph
func corpusDigest(files []*analyzedFile, config *Config, provider string) string {
	h := sha256.New()
	for _, f := range files {
		h.Write([]byte(f.relPath))
		h.Write([]byte{0})
		h.Write(f.hash[:])
	}
	c := config.Cluster
	fmt.Fprintf(h, "|%s|%d|%g|%d|%d|%d|%d|%t|%t|%t|%s",
		c.Community.Algorithm, c.Community.Seed, c.Community.Resolution,
		c.SplitThreshold, c.SplitRounds, c.RegroupGroups, c.MaxHierarchyIterations,
		c.SkipRegroup, c.SkipHierarchy, config.IncludeTests, provider)
	return hex.EncodeToString(h.Sum(nil))
}

// readSource reads a file and computes its SHA-256 hash
func readSource(filePath string) ([]byte, [32]byte, time.Time, int64, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, [32]byte{}, time.Time{}, 0, err
	}
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, [32]byte{}, time.Time{}, 0, err
	}
	return content, sha256.Sum256(content), info.ModTime(), info.Size(), nil
}

// goModInfo contains parsed go.mod information
type goModInfo struct {
	Module    string
	GoVersion string
}

// parseGoMod extracts basic info from go.mod file
func parseGoMod(goModPath string) (*goModInfo, error) {
	content, err := os.ReadFile(goModPath)
	if err != nil {
		return nil, err
	}

	info := &goModInfo{}
	for _, line := range bytes.Split(content, []byte("\n")) {
		line := strings.TrimSpace(string(line))
		if strings.HasPrefix(line, "module ") {
			info.Module = strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "module")), `"`)
		} else if strings.HasPrefix(line, "go ") {
			info.GoVersion = strings.TrimSpace(strings.TrimPrefix(line, "go"))
		}
	}

	return info, nil
}
