// Package indexer turns a Go repository into a clustered chunk graph.
//
// IndexProject runs the whole pipeline:
//
//  1. Discover .go files (vendor, hidden and underscore directories skipped)
//  2. Read, hash and parse files concurrently
//  3. Feed parsed files to the scope resolver and cut them into chunks
//  4. Build the chunk reference graph
//  5. Cluster it with the configured refiner
//  6. Store file records and a graph snapshot in one transaction
//
// # Incremental Runs
//
// The corpus digest covers every file hash and the clustering settings. When
// it matches the latest snapshot the stored graph is returned and nothing is
// re-clustered. Config.Force disables the check.
//
//	idx := indexer.New(store, refiner, logger)
//	result, err := idx.IndexProject(ctx, "/path/to/project", nil)
//	if err != nil {
//	    return err
//	}
//	paths, err := result.Graph.GetLongestPath(5)
//
// LoadLatest reads back the most recent snapshot without touching the
// repository.
package indexer
