// Package mcp implements the Model Context Protocol (MCP) server for codegraph.
//
// The server exposes four tools:
//   - cluster_codebase: Index, cluster and store a Go project
//   - get_clusters: Return the cluster hierarchy
//   - get_stats: Cluster sizes plus index health
//   - get_paths: Highest-weighted reference paths between clusters
//
// MCP is JSON-RPC 2.0 over stdio. Logs go to stderr so stdout carries only
// protocol messages. The server is started with:
//
//	codegraph serve
//
// # Tool: cluster_codebase
//
//	Request:
//	{
//	  "name": "cluster_codebase",
//	  "arguments": {"path": "/path/to/project", "force": false, "seed": 42}
//	}
//
//	Response:
//	{
//	  "clustered": true,
//	  "snapshot_id": "8f1c...",
//	  "reused": false,
//	  "chunks": 312,
//	  "clusters": 41,
//	  "communities": 27
//	}
//
// An unchanged project returns its stored snapshot with "reused": true.
// Only one run per project may be in flight; a second call fails with
// ErrorCodeIndexingInProgress.
//
// # Query Tools
//
// get_clusters, get_stats and get_paths read the latest snapshot. On a
// project that was never clustered, get_clusters and get_paths fail with
// ErrorCodeNotIndexed and get_stats reports "clustered": false.
//
// # Errors
//
// Handlers return *MCPError with a JSON-RPC code, a message and structured
// data naming the offending parameter.
package mcp
