package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func createProject(t *testing.T, s Storage, root string) *Project {
	t.Helper()
	project := &Project{RootPath: root, ModuleName: "example.com/app", GoVersion: "1.25"}
	require.NoError(t, s.CreateProject(context.Background(), project))
	return project
}

func TestNewSQLiteStorage_OnDisk(t *testing.T) {
	path := t.TempDir() + "/codegraph.db"
	storage, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	createProject(t, storage, "/repo")
	require.NoError(t, storage.Close())

	// reopening keeps data and does not re-run migrations
	storage, err = NewSQLiteStorage(path)
	require.NoError(t, err)
	defer storage.Close()

	project, err := storage.GetProject(context.Background(), "/repo")
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, project.IndexVersion)
}

func TestCreateProject(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	project := createProject(t, storage, "/test/path")
	assert.Greater(t, project.ID, int64(0))
	assert.Equal(t, CurrentSchemaVersion, project.IndexVersion)

	// Duplicate root paths violate the unique constraint
	err := storage.CreateProject(ctx, &Project{RootPath: "/test/path"})
	assert.Error(t, err)
}

func TestGetProject(t *testing.T) {
	storage := setupTestDB(t)
	project := createProject(t, storage, "/test/path")

	retrieved, err := storage.GetProject(context.Background(), "/test/path")
	require.NoError(t, err)
	assert.Equal(t, project.ID, retrieved.ID)
	assert.Equal(t, "example.com/app", retrieved.ModuleName)
	assert.Equal(t, "1.25", retrieved.GoVersion)
	assert.True(t, retrieved.LastIndexedAt.IsZero())

	_, err = storage.GetProject(context.Background(), "/nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProject(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createProject(t, storage, "/test/path")

	project.ModuleName = "example.com/renamed"
	project.TotalFiles = 10
	project.TotalChunks = 100
	project.LastIndexedAt = time.Now()
	require.NoError(t, storage.UpdateProject(ctx, project))

	updated, err := storage.GetProject(ctx, "/test/path")
	require.NoError(t, err)
	assert.Equal(t, "example.com/renamed", updated.ModuleName)
	assert.Equal(t, 10, updated.TotalFiles)
	assert.Equal(t, 100, updated.TotalChunks)
	assert.False(t, updated.LastIndexedAt.IsZero())

	err = storage.UpdateProject(ctx, &Project{ID: 999})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertFile(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createProject(t, storage, "/test")

	file := &File{
		ProjectID:   project.ID,
		FilePath:    "main.go",
		PackageName: "main",
		ContentHash: [32]byte{1, 2, 3},
		ModTime:     time.Now(),
		SizeBytes:   1234,
		ChunkCount:  3,
	}
	require.NoError(t, storage.UpsertFile(ctx, file))
	firstID := file.ID
	assert.Greater(t, firstID, int64(0))

	// Same path updates in place
	parseErr := "main.go:3:1: expected declaration"
	file.ContentHash = [32]byte{4, 5, 6}
	file.ParseError = &parseErr
	file.ChunkCount = 1
	require.NoError(t, storage.UpsertFile(ctx, file))
	assert.Equal(t, firstID, file.ID)

	stored, err := storage.GetFile(ctx, project.ID, "main.go")
	require.NoError(t, err)
	assert.Equal(t, [32]byte{4, 5, 6}, stored.ContentHash)
	assert.Equal(t, 1, stored.ChunkCount)
	require.NotNil(t, stored.ParseError)
	assert.Equal(t, parseErr, *stored.ParseError)

	_, err = storage.GetFile(ctx, project.ID, "missing.go")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndDeleteFiles(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createProject(t, storage, "/test")

	for _, path := range []string{"b.go", "a.go", "c.go"} {
		require.NoError(t, storage.UpsertFile(ctx, &File{ProjectID: project.ID, FilePath: path}))
	}

	files, err := storage.ListFiles(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a.go", files[0].FilePath)

	require.NoError(t, storage.DeleteFile(ctx, files[0].ID))
	files, err = storage.ListFiles(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestGetStatus(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createProject(t, storage, "/test")

	broken := "syntax error"
	require.NoError(t, storage.UpsertFile(ctx, &File{ProjectID: project.ID, FilePath: "a.go"}))
	require.NoError(t, storage.UpsertFile(ctx, &File{ProjectID: project.ID, FilePath: "b.go", ParseError: &broken}))

	status, err := storage.GetStatus(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.FilesCount)
	assert.Equal(t, 1, status.FilesWithErrors)
	assert.Equal(t, 0, status.SnapshotsCount)
	assert.Nil(t, status.Latest)
	assert.True(t, status.Health.DatabaseAccessible)
	assert.False(t, status.Health.SnapshotAvailable)

	require.NoError(t, storage.SaveSnapshot(ctx, &Snapshot{ProjectID: project.ID, Algorithm: "louvain", Provider: "local", Graph: []byte(`{}`)}))
	status, err = storage.GetStatus(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.SnapshotsCount)
	require.NotNil(t, status.Latest)
	assert.Empty(t, status.Latest.Graph)
	assert.True(t, status.Health.SnapshotAvailable)

	_, err = storage.GetStatus(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransaction(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createProject(t, storage, "/test")

	t.Run("commit", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.UpsertFile(ctx, &File{ProjectID: project.ID, FilePath: "kept.go"}))
		require.NoError(t, tx.SaveSnapshot(ctx, &Snapshot{ProjectID: project.ID, Algorithm: "louvain", Provider: "local", Graph: []byte(`{}`)}))
		require.NoError(t, tx.Commit())

		_, err = storage.GetFile(ctx, project.ID, "kept.go")
		assert.NoError(t, err)
	})

	t.Run("rollback", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.UpsertFile(ctx, &File{ProjectID: project.ID, FilePath: "dropped.go"}))
		require.NoError(t, tx.Rollback())

		_, err = storage.GetFile(ctx, project.ID, "dropped.go")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("nested", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()
		_, err = tx.BeginTx(ctx)
		assert.Error(t, err)
	})
}

func TestCascadeDelete(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project := createProject(t, storage, "/test")
	require.NoError(t, storage.UpsertFile(ctx, &File{ProjectID: project.ID, FilePath: "a.go"}))

	_, err := storage.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", project.ID)
	require.NoError(t, err)

	files, err := storage.ListFiles(ctx, project.ID)
	require.NoError(t, err)
	assert.Empty(t, files)
}
