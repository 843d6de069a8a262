package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/codegraph/internal/indexer"
	"github.com/dshills/codegraph/internal/refine"
	"github.com/dshills/codegraph/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "codegraph"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Options wires the server's dependencies
type Options struct {
	DBPath  string          // SQLite database file
	Refiner refine.Refiner  // defaults to the local refiner
	Index   *indexer.Config // defaults for cluster_codebase
	Logger  *zap.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	storage storage.Storage
	indexer *indexer.Indexer
	locks   indexer.Locks
	config  indexer.Config
	logger  *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(opts Options) (*Server, error) {
	if opts.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Refiner == nil {
		opts.Refiner = refine.NewLocalRefiner()
	}
	if opts.Index == nil {
		opts.Index = indexer.DefaultConfig()
	}

	if err := os.MkdirAll(filepath.Dir(opts.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		storage: store,
		indexer: indexer.New(store, opts.Refiner, opts.Logger),
		config:  *opts.Index,
		logger:  opts.Logger,
	}

	if err := s.registerTools(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	s.logger.Info("serving MCP on stdio", zap.String("name", ServerName), zap.String("version", ServerVersion))
	return server.ServeStdio(s.mcp)
}

// Close releases the storage without serving
func (s *Server) Close() error {
	return s.storage.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(clusterCodebaseTool(), s.handleClusterCodebase)
	s.mcp.AddTool(getClustersTool(), s.handleGetClusters)
	s.mcp.AddTool(getStatsTool(), s.handleGetStats)
	s.mcp.AddTool(getPathsTool(), s.handleGetPaths)
	return nil
}
