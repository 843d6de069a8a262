// Package storage provides SQLite-based persistence for clustered chunk graphs.
//
// The storage layer manages:
//   - Project metadata
//   - File content hashes and per-file chunk counts
//   - Graph snapshots in node-link form
//
// # Database Schema
//
// Tables:
//   - projects: Project metadata (root path, module name)
//   - files: File paths, SHA-256 hashes and parse errors
//   - graph_snapshots: UUID-keyed serialized graphs with the clustering
//     settings (algorithm, seed, refiner provider) and a corpus digest
//   - schema_version: Applied migrations
//
// # Build Modes
//
// Two SQLite drivers are supported through build tags:
//
//	go build ./...                   # modernc.org/sqlite, no cgo
//	go build -tags sqlite_cgo ./...  # github.com/mattn/go-sqlite3
//
// # Transactions
//
// BeginTx returns a Tx that implements Storage. All operations on it run
// inside the transaction until Commit or Rollback. Nested transactions are
// not supported.
//
// # Migrations
//
// Migrations are versioned with semver and applied in order when the
// database is opened. RollbackMigration undoes the most recent one.
package storage
