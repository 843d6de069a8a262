// Package cluster turns a chunk reference graph into a cluster hierarchy.
//
// A Pipeline owns one graph and runs the phases in order:
//
//  1. community detection and assembly of leaf clusters
//  2. splitting of oversized clusters
//  3. pairwise regrouping of chunks across cluster groups
//  4. hierarchy construction over the leaf clusters
//  5. aggregation of cluster-level reference edges
//
// Each refinement phase reads a view of the graph, asks a refine.Refiner for
// a proposal, turns the proposal into graph operations and applies them in a
// single graph.Engine batch. Proposals are untrusted: ids that do not name a
// live node are dropped with a warning.
package cluster
