// Package refine provides the cluster refinement calls used by the
// clustering pipeline: splitting an oversized cluster, comparing two groups
// of clusters for misplaced chunks, and proposing parent clusters.
//
// Providers:
//   - llm: an OpenAI-compatible chat completions endpoint returning JSON
//   - local: file and directory heuristics, no network
//   - script: proposals replayed from a YAML file
//
// New wraps the provider with an LRU response cache and retry. Retry makes
// up to three attempts with randomized exponential backoff between one and
// fifteen seconds; when every attempt fails the error wraps
// ErrRetriesExhausted.
//
// Proposals are untrusted. Ids they name are checked against the live graph
// by the caller and unknown ones are dropped.
package refine
