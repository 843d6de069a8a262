package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultSnapshotLimit caps ListSnapshots when no limit is given
const DefaultSnapshotLimit = 20

const snapshotColumns = `id, project_id, corpus_hash, algorithm, seed, provider, clustered,
		       num_chunks, num_clusters, num_edges, created_at`

func scanSnapshot(row rowScanner, withGraph bool) (*Snapshot, error) {
	var snap Snapshot
	var seed int64
	dest := []interface{}{
		&snap.ID, &snap.ProjectID, &snap.CorpusHash, &snap.Algorithm, &seed, &snap.Provider,
		&snap.Clustered, &snap.NumChunks, &snap.NumClusters, &snap.NumEdges, &snap.CreatedAt,
	}
	if withGraph {
		dest = append(dest, &snap.Graph)
	}
	err := row.Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	snap.Seed = uint64(seed)
	return &snap, nil
}

func (s *SQLiteStorage) saveSnapshotWithQuerier(ctx context.Context, q querier, snap *Snapshot) error {
	if len(snap.Graph) == 0 {
		return fmt.Errorf("snapshot graph is empty")
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	} else if _, err := uuid.Parse(snap.ID); err != nil {
		return fmt.Errorf("invalid snapshot id %q: %w", snap.ID, err)
	}

	query := `
		INSERT INTO graph_snapshots (id, project_id, corpus_hash, algorithm, seed, provider, clustered,
		                             num_chunks, num_clusters, num_edges, graph, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	_, err := q.ExecContext(ctx, query,
		snap.ID, snap.ProjectID, snap.CorpusHash, snap.Algorithm, int64(snap.Seed), snap.Provider,
		snap.Clustered, snap.NumChunks, snap.NumClusters, snap.NumEdges, snap.Graph, now)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	snap.CreatedAt = now
	return nil
}

// SaveSnapshot stores a snapshot, assigning a UUID when ID is empty
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	return s.saveSnapshotWithQuerier(ctx, s.querier(), snap)
}

func (s *SQLiteStorage) getSnapshotWithQuerier(ctx context.Context, q querier, id string) (*Snapshot, error) {
	query := `SELECT ` + snapshotColumns + `, graph FROM graph_snapshots WHERE id = ?`
	return scanSnapshot(q.QueryRowContext(ctx, query, id), true)
}

// GetSnapshot loads a snapshot with its graph
func (s *SQLiteStorage) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	return s.getSnapshotWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) latestSnapshotWithQuerier(ctx context.Context, q querier, projectID int64, withGraph bool) (*Snapshot, error) {
	columns := snapshotColumns
	if withGraph {
		columns += ", graph"
	}
	query := `SELECT ` + columns + ` FROM graph_snapshots
		WHERE project_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`
	return scanSnapshot(q.QueryRowContext(ctx, query, projectID), withGraph)
}

// LatestSnapshot loads the most recent snapshot of a project with its graph
func (s *SQLiteStorage) LatestSnapshot(ctx context.Context, projectID int64) (*Snapshot, error) {
	return s.latestSnapshotWithQuerier(ctx, s.querier(), projectID, true)
}

func (s *SQLiteStorage) listSnapshotsWithQuerier(ctx context.Context, q querier, projectID int64, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = DefaultSnapshotLimit
	}
	query := `SELECT ` + snapshotColumns + ` FROM graph_snapshots
		WHERE project_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`
	rows, err := q.QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	snapshots := make([]*Snapshot, 0)
	for rows.Next() {
		snap, err := scanSnapshot(rows, false)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// ListSnapshots returns snapshot metadata, newest first, without graphs
func (s *SQLiteStorage) ListSnapshots(ctx context.Context, projectID int64, limit int) ([]*Snapshot, error) {
	return s.listSnapshotsWithQuerier(ctx, s.querier(), projectID, limit)
}

func (s *SQLiteStorage) deleteSnapshotWithQuerier(ctx context.Context, q querier, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM graph_snapshots WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSnapshot removes a snapshot
func (s *SQLiteStorage) DeleteSnapshot(ctx context.Context, id string) error {
	return s.deleteSnapshotWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) pruneSnapshotsWithQuerier(ctx context.Context, q querier, projectID int64, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := q.ExecContext(ctx, `
		DELETE FROM graph_snapshots
		WHERE project_id = ? AND id NOT IN (
			SELECT id FROM graph_snapshots
			WHERE project_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		)`, projectID, projectID, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// PruneSnapshots keeps the newest keep snapshots of a project and deletes
// the rest, returning how many were deleted
func (s *SQLiteStorage) PruneSnapshots(ctx context.Context, projectID int64, keep int) (int, error) {
	return s.pruneSnapshotsWithQuerier(ctx, s.querier(), projectID, keep)
}
