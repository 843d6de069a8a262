package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func pathProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// clusterCodebaseTool returns the tool definition for cluster_codebase
func clusterCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cluster_codebase",
		Description: "Index a Go codebase, build its chunk reference graph and cluster it into a hierarchy",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to Go project root (must contain .go files)"),
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-cluster even when the stored snapshot matches the source",
					"default":     false,
				},
				"include_tests": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include *_test.go files",
					"default":     false,
				},
				"algorithm": map[string]interface{}{
					"type":        "string",
					"description": "Community detection algorithm",
					"enum":        []string{"louvain", "components"},
					"default":     "louvain",
				},
				"seed": map[string]interface{}{
					"type":        "integer",
					"description": "Seed for community detection",
					"default":     42,
					"minimum":     0,
				},
			},
			Required: []string{"path"},
		},
	}
}

// getClustersTool returns the tool definition for get_clusters
func getClustersTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_clusters",
		Description: "Return the cluster hierarchy of a clustered Go project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to a clustered Go project"),
				"parents_only": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, return only top-level clusters, each with its full subtree",
					"default":     true,
				},
			},
			Required: []string{"path"},
		},
	}
}

// getStatsTool returns the tool definition for get_stats
func getStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_stats",
		Description: "Report cluster statistics and index status for a Go project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to Go project"),
			},
			Required: []string{"path"},
		},
	}
}

// getPathsTool returns the tool definition for get_paths
func getPathsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_paths",
		Description: "Return the highest-weighted multi-hop reference paths between clusters",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty("Absolute path to a clustered Go project"),
				"n": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of paths to return (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
				"max_hops": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum hops per path",
					"default":     6,
					"minimum":     1,
					"maximum":     20,
				},
			},
			Required: []string{"path"},
		},
	}
}
