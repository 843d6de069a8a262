package indexer

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/codegraph/internal/cluster"
	"github.com/dshills/codegraph/internal/refine"
	"github.com/dshills/codegraph/internal/storage"
)

const (
	testGoMod = "module example.com/app\n\ngo 1.25\n"

	testMain = `package main

import "example.com/app/store"

func main() {
	db := store.Open()
	println(db.Get("key"))
}
`

	testStore = `package store

// DB is an in-memory store
type DB struct {
	data map[string]string
}

// Open creates a store
func Open() *DB {
	return &DB{data: map[string]string{}}
}

// Get reads a key
func (d *DB) Get(k string) string {
	return d.data[k]
}
`
)

func setupTestStorage(t testing.TB) storage.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err, "Failed to create test storage")
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// createTestFile creates a temporary Go file for testing
func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()

	filePath := filepath.Join(dir, name)
	err := os.MkdirAll(filepath.Dir(filePath), 0755)
	require.NoError(t, err)

	err = os.WriteFile(filePath, []byte(content), 0644)
	require.NoError(t, err)

	return filePath
}

func createTestProject(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	createTestFile(t, dir, "go.mod", testGoMod)
	createTestFile(t, dir, "main.go", testMain)
	createTestFile(t, dir, "store/store.go", testStore)
	return dir
}

func newTestIndexer(t *testing.T, store storage.Storage) *Indexer {
	t.Helper()
	return New(store, refine.NewLocalRefiner(), zaptest.NewLogger(t))
}

func TestNew(t *testing.T) {
	idx := New(setupTestStorage(t), refine.NewLocalRefiner(), nil)

	assert.NotNil(t, idx.parser)
	assert.NotNil(t, idx.chunker)
	assert.NotNil(t, idx.capturer)
	assert.NotNil(t, idx.logger)
	assert.Equal(t, runtime.NumCPU(), idx.workers)
}

func TestDiscoverFiles(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "main.go", "package main\n")
	createTestFile(t, tmpDir, "main_test.go", "package main\n")
	createTestFile(t, tmpDir, "README.md", "# README\n")
	createTestFile(t, tmpDir, "pkg/util.go", "package pkg\n")
	createTestFile(t, tmpDir, "vendor/lib/lib.go", "package lib\n")
	createTestFile(t, tmpDir, ".git/config.go", "package git\n")
	createTestFile(t, tmpDir, "_scratch/tmp.go", "package scratch\n")

	tests := []struct {
		name   string
		config *Config
		want   []string
	}{
		{
			name:   "defaults skip tests and vendor",
			config: &Config{},
			want:   []string{"main.go", "pkg/util.go"},
		},
		{
			name:   "include tests",
			config: &Config{IncludeTests: true},
			want:   []string{"main.go", "main_test.go", "pkg/util.go"},
		},
		{
			name:   "include vendor",
			config: &Config{IncludeVendor: true},
			want:   []string{"main.go", "pkg/util.go", "vendor/lib/lib.go"},
		},
	}

	idx := newTestIndexer(t, setupTestStorage(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := idx.discoverFiles(tmpDir, tt.config)
			require.NoError(t, err)

			var rel []string
			for _, f := range files {
				r, err := filepath.Rel(tmpDir, f)
				require.NoError(t, err)
				rel = append(rel, filepath.ToSlash(r))
			}
			assert.Equal(t, tt.want, rel)
		})
	}
}

func TestIndexProject_Success(t *testing.T) {
	store := setupTestStorage(t)
	idx := newTestIndexer(t, store)
	root := createTestProject(t)
	ctx := context.Background()

	result, err := idx.IndexProject(ctx, root, nil)
	require.NoError(t, err)

	assert.False(t, result.Stats.Reused)
	assert.Equal(t, 2, result.Stats.FilesIndexed)
	assert.Zero(t, result.Stats.FilesFailed)
	assert.Equal(t, len(result.Graph.ChunkIDs()), result.Stats.ChunksCreated)
	require.NotNil(t, result.Stats.Build)
	assert.Greater(t, result.Stats.Build.ImportEdges, 0, "main should reference the store package")
	require.NotNil(t, result.Stats.Cluster)
	assert.True(t, result.Graph.Clustered())

	assert.Equal(t, "example.com/app", result.Project.ModuleName)
	assert.Equal(t, 2, result.Project.TotalFiles)

	snap, err := store.GetSnapshot(ctx, result.Snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, "louvain", snap.Algorithm)
	assert.Equal(t, "local", snap.Provider)
	assert.True(t, snap.Clustered)
	assert.Equal(t, result.Stats.ChunksCreated, snap.NumChunks)

	file, err := store.GetFile(ctx, result.Project.ID, "store/store.go")
	require.NoError(t, err)
	assert.Equal(t, "store", file.PackageName)
	assert.Equal(t, 3, file.ChunkCount)
	assert.Nil(t, file.ParseError)
}

func TestIndexProject_ReusesUnchangedCorpus(t *testing.T) {
	store := setupTestStorage(t)
	idx := newTestIndexer(t, store)
	root := createTestProject(t)
	ctx := context.Background()

	first, err := idx.IndexProject(ctx, root, nil)
	require.NoError(t, err)

	second, err := idx.IndexProject(ctx, root, nil)
	require.NoError(t, err)
	assert.True(t, second.Stats.Reused)
	assert.Equal(t, first.Snapshot.ID, second.Snapshot.ID)
	assert.Equal(t, first.Graph.ChunkIDs(), second.Graph.ChunkIDs())
	assert.True(t, second.Graph.Clustered())

	// Force always re-clusters
	config := DefaultConfig()
	config.Force = true
	forced, err := idx.IndexProject(ctx, root, config)
	require.NoError(t, err)
	assert.False(t, forced.Stats.Reused)
	assert.NotEqual(t, first.Snapshot.ID, forced.Snapshot.ID)

	// So does a different seed
	config = DefaultConfig()
	config.Cluster.Community.Seed = 7
	reseeded, err := idx.IndexProject(ctx, root, config)
	require.NoError(t, err)
	assert.False(t, reseeded.Stats.Reused)
	assert.Equal(t, uint64(7), reseeded.Snapshot.Seed)
}

func TestIndexProject_IncrementalUpdate(t *testing.T) {
	store := setupTestStorage(t)
	idx := newTestIndexer(t, store)
	root := createTestProject(t)
	ctx := context.Background()

	first, err := idx.IndexProject(ctx, root, nil)
	require.NoError(t, err)

	createTestFile(t, root, "store/put.go", `package store

// Put writes a key
func (d *DB) Put(k, v string) {
	d.data[k] = v
}
`)
	second, err := idx.IndexProject(ctx, root, nil)
	require.NoError(t, err)
	assert.False(t, second.Stats.Reused)
	assert.NotEqual(t, first.Snapshot.CorpusHash, second.Snapshot.CorpusHash)
	assert.Equal(t, 3, second.Stats.FilesIndexed)

	// Removed files disappear from the file table
	require.NoError(t, os.Remove(filepath.Join(root, "store", "put.go")))
	_, err = idx.IndexProject(ctx, root, nil)
	require.NoError(t, err)

	files, err := store.ListFiles(ctx, first.Project.ID)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestIndexProject_WithParseErrors(t *testing.T) {
	store := setupTestStorage(t)
	idx := newTestIndexer(t, store)
	root := createTestProject(t)
	createTestFile(t, root, "broken/broken.go", "package broken\n\nfunc Good() int { return 1 }\n\nfunc Bad( {\n")
	ctx := context.Background()

	result, err := idx.IndexProject(ctx, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Stats.FilesIndexed)

	file, err := store.GetFile(ctx, result.Project.ID, "broken/broken.go")
	require.NoError(t, err)
	require.NotNil(t, file.ParseError)
	assert.Contains(t, *file.ParseError, "syntax error")
}

func TestIndexProject_EmptyProject(t *testing.T) {
	idx := newTestIndexer(t, setupTestStorage(t))
	root := t.TempDir()
	createTestFile(t, root, "go.mod", testGoMod)

	_, err := idx.IndexProject(context.Background(), root, nil)
	assert.ErrorIs(t, err, ErrNoChunks)
}

func TestIndexProject_ContextCancellation(t *testing.T) {
	idx := newTestIndexer(t, setupTestStorage(t))
	root := createTestProject(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.IndexProject(ctx, root, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndexProject_UnsupportedAlgorithm(t *testing.T) {
	idx := newTestIndexer(t, setupTestStorage(t))
	root := createTestProject(t)

	config := DefaultConfig()
	config.Cluster.Community.Algorithm = "leiden"
	_, err := idx.IndexProject(context.Background(), root, config)
	assert.Error(t, err)
}

func TestIndexProject_KeepSnapshots(t *testing.T) {
	store := setupTestStorage(t)
	idx := newTestIndexer(t, store)
	root := createTestProject(t)
	ctx := context.Background()

	config := DefaultConfig()
	config.Force = true
	config.KeepSnapshots = 2
	var last *Result
	for range 3 {
		var err error
		last, err = idx.IndexProject(ctx, root, config)
		require.NoError(t, err)
	}

	snaps, err := store.ListSnapshots(ctx, last.Project.ID, 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
	assert.Equal(t, last.Snapshot.ID, snaps[0].ID)
}

func TestLoadLatest(t *testing.T) {
	store := setupTestStorage(t)
	idx := newTestIndexer(t, store)
	root := createTestProject(t)
	ctx := context.Background()

	_, _, err := idx.LoadLatest(ctx, root)
	assert.ErrorIs(t, err, ErrNotIndexed)

	result, err := idx.IndexProject(ctx, root, nil)
	require.NoError(t, err)

	g, snap, err := idx.LoadLatest(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, result.Snapshot.ID, snap.ID)
	assert.True(t, g.Clustered())
	assert.Equal(t, result.Graph.ClusterIDs(), g.ClusterIDs())
}

func TestCorpusDigest(t *testing.T) {
	files := []*analyzedFile{
		{relPath: "a.go", hash: [32]byte{1}},
		{relPath: "b.go", hash: [32]byte{2}},
	}
	base := corpusDigest(files, DefaultConfig(), refine.ProviderLocal)
	assert.Len(t, base, 64)
	assert.Equal(t, base, corpusDigest(files, DefaultConfig(), refine.ProviderLocal))

	changed := []*analyzedFile{files[0], {relPath: "b.go", hash: [32]byte{3}}}
	assert.NotEqual(t, base, corpusDigest(changed, DefaultConfig(), refine.ProviderLocal))

	config := DefaultConfig()
	config.Cluster.SplitThreshold = cluster.DefaultSplitThreshold + 1
	assert.NotEqual(t, base, corpusDigest(files, config, refine.ProviderLocal))
	assert.NotEqual(t, base, corpusDigest(files, DefaultConfig(), refine.ProviderLLM))
}

func TestParseGoMod(t *testing.T) {
	tmpDir := t.TempDir()

	goModContent := `module github.com/example/project

go 1.21

require (
	github.com/stretchr/testify v1.8.0
)
`
	goModPath := createTestFile(t, tmpDir, "go.mod", goModContent)

	info, err := parseGoMod(goModPath)
	require.NoError(t, err)
	assert.Equal(t, "github.com/example/project", info.Module)
	assert.Equal(t, "1.21", info.GoVersion)

	_, err = parseGoMod("/nonexistent/go.mod")
	assert.Error(t, err)
}

func TestReadSource(t *testing.T) {
	path := createTestFile(t, t.TempDir(), "a.go", "package a\n")

	content, hash, _, size, err := readSource(path)
	require.NoError(t, err)
	assert.Equal(t, "package a\n", string(content))
	assert.Equal(t, int64(10), size)

	other := createTestFile(t, t.TempDir(), "b.go", "package b\n")
	_, otherHash, _, _, err := readSource(other)
	require.NoError(t, err)
	assert.NotEqual(t, hash, otherHash)

	_, _, _, _, err = readSource("/nonexistent/file.go")
	assert.Error(t, err)
}

func TestIndexLock(t *testing.T) {
	var lock IndexLock
	require.True(t, lock.TryAcquire())
	assert.False(t, lock.TryAcquire(), "lock is held")

	lock.Release()
	assert.True(t, lock.TryAcquire(), "lock can be re-acquired after release")
	lock.Release()
}

func TestIndexLock_ConcurrentAcquisition(t *testing.T) {
	var lock IndexLock
	var acquired atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lock.TryAcquire() {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), acquired.Load(), "exactly one goroutine holds the lock")
}

func TestLocks_PerProject(t *testing.T) {
	var locks Locks
	a := locks.For("/repo/a")
	require.True(t, a.TryAcquire())
	defer a.Release()

	assert.Same(t, a, locks.For("/repo/a"))
	assert.False(t, locks.For("/repo/a").TryAcquire())
	assert.True(t, locks.For("/repo/b").TryAcquire())
}
