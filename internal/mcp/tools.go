package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/codegraph/internal/community"
	"github.com/dshills/codegraph/internal/graph"
	"github.com/dshills/codegraph/internal/indexer"
	"github.com/dshills/codegraph/internal/refine"
	"github.com/dshills/codegraph/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound    = -32001 // Specified path does not contain a Go project
	ErrorCodeIndexingInProgress = -32002 // Another clustering run is already in progress
	ErrorCodeNotIndexed         = -32003 // Project not clustered yet
	ErrorCodeRefinerFailed      = -32004 // Refinement calls kept failing
)

// Defaults for get_paths
const (
	DefaultPathCount = 5
	MaxPathCount     = 100
	MaxPathHops      = 20
)

// handleClusterCodebase handles the cluster_codebase tool invocation
func (s *Server) handleClusterCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := pathArgs(request)
	if err != nil {
		return nil, err
	}

	config := s.config
	config.Force = getBoolDefault(args, "force", false)
	config.IncludeTests = getBoolDefault(args, "include_tests", config.IncludeTests)
	config.Cluster.Community.Algorithm = getStringDefault(args, "algorithm", config.Cluster.Community.Algorithm)
	seed := getIntDefault(args, "seed", int(config.Cluster.Community.Seed))
	if seed < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "seed must not be negative", map[string]interface{}{
			"param": "seed",
			"value": seed,
		})
	}
	config.Cluster.Community.Seed = uint64(seed)
	if err := config.Cluster.Community.Validate(); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "unsupported algorithm", map[string]interface{}{
			"param":   "algorithm",
			"value":   config.Cluster.Community.Algorithm,
			"allowed": []string{community.AlgorithmLouvain, community.AlgorithmComponents},
		})
	}

	lock := s.locks.For(path)
	if !lock.TryAcquire() {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "clustering already in progress for this project", map[string]interface{}{
			"path": path,
		})
	}
	defer lock.Release()

	result, err := s.indexer.IndexProject(ctx, path, &config)
	if err != nil {
		s.logger.Error("clustering failed", zap.String("path", path), zap.Error(err))
		code := ErrorCodeInternalError
		if errors.Is(err, indexer.ErrNoChunks) {
			code = ErrorCodeProjectNotFound
		} else if errors.Is(err, refine.ErrRetriesExhausted) {
			code = ErrorCodeRefinerFailed
		}
		return nil, newMCPError(code, "clustering failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	stats := result.Stats
	response := map[string]interface{}{
		"clustered":     true,
		"snapshot_id":   result.Snapshot.ID,
		"reused":        stats.Reused,
		"files_indexed": stats.FilesIndexed,
		"files_failed":  stats.FilesFailed,
		"chunks":        len(result.Graph.ChunkIDs()),
		"clusters":      len(result.Graph.ClusterIDs()),
		"edges":         result.Graph.NumEdges(),
		"duration_ms":   stats.Duration.Milliseconds(),
		"refiner":       result.Snapshot.Provider,
		"algorithm":     result.Snapshot.Algorithm,
		"seed":          result.Snapshot.Seed,
		"created_at":    result.Snapshot.CreatedAt.Format(time.RFC3339),
	}
	if stats.Build != nil {
		response["build"] = stats.Build
	}
	if stats.Cluster != nil {
		response["communities"] = stats.Cluster.Communities
		response["modularity"] = stats.Cluster.Modularity
		response["cluster_refs"] = stats.Cluster.ClusterRefs
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetClusters handles the get_clusters tool invocation
func (s *Server) handleGetClusters(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := pathArgs(request)
	if err != nil {
		return nil, err
	}

	g, snap, err := s.loadGraph(ctx, path)
	if err != nil {
		return nil, err
	}

	clusters, err := g.GetClusters(getBoolDefault(args, "parents_only", true))
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read clusters", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"snapshot_id": snap.ID,
		"count":       len(clusters),
		"clusters":    clusters,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStats handles the get_stats tool invocation
func (s *Server) handleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, path, err := pathArgs(request)
	if err != nil {
		return nil, err
	}

	project, err := s.storage.GetProject(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		response := map[string]interface{}{
			"clustered": false,
			"path":      path,
			"message":   "Project not clustered. Use cluster_codebase tool to cluster this project.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	status, err := s.storage.GetStatus(ctx, project.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"clustered": status.Latest != nil && status.Latest.Clustered,
		"project": map[string]interface{}{
			"path":            project.RootPath,
			"module_name":     project.ModuleName,
			"go_version":      project.GoVersion,
			"last_indexed_at": project.LastIndexedAt.Format(time.RFC3339),
		},
		"index": map[string]interface{}{
			"files_count":       status.FilesCount,
			"files_with_errors": status.FilesWithErrors,
			"snapshots_count":   status.SnapshotsCount,
			"index_size_mb":     fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible": status.Health.DatabaseAccessible,
			"snapshot_available":  status.Health.SnapshotAvailable,
		},
	}

	if status.Latest != nil {
		g, _, err := s.loadGraph(ctx, path)
		if err != nil {
			return nil, err
		}
		stats, err := g.GetStats()
		switch {
		case err == nil:
			response["stats"] = stats
		case errors.Is(err, graph.ErrNoClusters):
			response["stats"] = graph.Stats{NumChunks: len(g.ChunkIDs())}
		default:
			return nil, newMCPError(ErrorCodeInternalError, "failed to compute stats", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response["snapshot_id"] = status.Latest.ID
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetPaths handles the get_paths tool invocation
func (s *Server) handleGetPaths(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, path, err := pathArgs(request)
	if err != nil {
		return nil, err
	}

	n := getIntDefault(args, "n", DefaultPathCount)
	if n < 1 || n > MaxPathCount {
		return nil, newMCPError(ErrorCodeInvalidParams, "n must be between 1 and 100", map[string]interface{}{
			"param": "n",
			"value": n,
		})
	}
	maxHops := getIntDefault(args, "max_hops", graph.DefaultMaxHops)
	if maxHops < 1 || maxHops > MaxPathHops {
		return nil, newMCPError(ErrorCodeInvalidParams, "max_hops must be between 1 and 20", map[string]interface{}{
			"param": "max_hops",
			"value": maxHops,
		})
	}

	g, snap, err := s.loadGraph(ctx, path)
	if err != nil {
		return nil, err
	}

	paths, err := g.LongestPaths(n, graph.PathOptions{MaxHops: maxHops})
	if err != nil {
		code := ErrorCodeInternalError
		if errors.Is(err, graph.ErrNotClustered) {
			code = ErrorCodeNotIndexed
		}
		return nil, newMCPError(code, "failed to extract paths", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(paths))
	for _, p := range paths {
		results = append(results, map[string]interface{}{
			"clusters": p.Clusters(),
			"weight":   p.Weight(),
			"steps":    p.Steps,
		})
	}

	response := map[string]interface{}{
		"snapshot_id": snap.ID,
		"count":       len(results),
		"paths":       results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// loadGraph reads the latest snapshot, mapping a missing one to ErrorCodeNotIndexed
func (s *Server) loadGraph(ctx context.Context, path string) (*graph.Graph, *storage.Snapshot, error) {
	g, snap, err := s.indexer.LoadLatest(ctx, path)
	if errors.Is(err, indexer.ErrNotIndexed) {
		return nil, nil, newMCPError(ErrorCodeNotIndexed, "project not clustered", map[string]interface{}{
			"path": path,
			"hint": "run cluster_codebase first",
		})
	}
	if err != nil {
		return nil, nil, newMCPError(ErrorCodeInternalError, "failed to load snapshot", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return g, snap, nil
}

// Helper functions

// pathArgs extracts the arguments map and the validated path parameter
func pathArgs(request mcp.CallToolRequest) (map[string]interface{}, string, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrNoGoFiles) {
			code = ErrorCodeProjectNotFound
		}
		return nil, "", newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	return args, filepath.Clean(path), nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path exists and is accessible
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() {
		return ErrNotDirectory
	}

	// Stop at the first Go file
	hasGoFiles := false
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(p, ".go") {
			hasGoFiles = true
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return ErrPathNotReadable
	}

	if !hasGoFiles {
		return ErrNoGoFiles
	}

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrNoGoFiles       = errors.New("directory does not contain Go files")
)
