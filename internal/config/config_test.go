package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codegraph/internal/community"
	"github.com/dshills/codegraph/internal/refine"
)

// isolate keeps a developer's own config file out of the test
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codegraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".codegraph", "codegraph.db"), cfg.DBPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, community.AlgorithmLouvain, cfg.Cluster.Algorithm)
	assert.Equal(t, uint64(42), cfg.Cluster.Seed)
	assert.Equal(t, 1.0, cfg.Cluster.Resolution)
	assert.Equal(t, 8, cfg.Cluster.SplitThreshold)
	assert.Equal(t, 3, cfg.Cluster.RegroupGroups)
	assert.Equal(t, 5, cfg.Cluster.MaxHierarchyIterations)
	assert.Equal(t, 3, cfg.Refiner.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Refiner.BaseDelay)
	assert.Equal(t, 15*time.Second, cfg.Refiner.MaxDelay)
	assert.Equal(t, refine.ProviderLocal, refine.DetectProvider(cfg.RefinerConfig()))
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
db_path: /tmp/graphs.db
log:
  level: debug
  format: console
cluster:
  algorithm: components
  seed: 7
  split_threshold: 12
  skip_regroup: true
refiner:
  provider: local
  base_delay: 2s
  max_delay: 4s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/graphs.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "components", cfg.Cluster.Algorithm)
	assert.Equal(t, uint64(7), cfg.Cluster.Seed)
	assert.Equal(t, 12, cfg.Cluster.SplitThreshold)
	assert.True(t, cfg.Cluster.SkipRegroup)
	assert.Equal(t, 2*time.Second, cfg.Refiner.BaseDelay)

	// Unset keys keep their defaults
	assert.Equal(t, 3, cfg.Cluster.RegroupGroups)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("CODEGRAPH_CLUSTER_SEED", "99")
	t.Setenv("CODEGRAPH_REFINER_API_KEY", "secret")
	t.Setenv("CODEGRAPH_INDEX_INCLUDE_TESTS", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, uint64(99), cfg.Cluster.Seed)
	assert.True(t, cfg.Index.IncludeTests)
	assert.Equal(t, refine.ProviderLLM, refine.DetectProvider(cfg.RefinerConfig()))
}

func TestLoad_Errors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"unsupported algorithm", "cluster:\n  algorithm: leiden\n", "cluster.algorithm"},
		{"tiny split threshold", "cluster:\n  split_threshold: 1\n", "split_threshold"},
		{"llm without key", "refiner:\n  provider: llm\n", "api_key"},
		{"script without path", "refiner:\n  provider: script\n", "script_path"},
		{"unknown provider", "refiner:\n  provider: oracle\n", "refiner.provider"},
		{"inverted delays", "refiner:\n  base_delay: 10s\n  max_delay: 1s\n", "max_delay"},
		{"bad log format", "log:\n  format: xml\n", "log.format"},
		{"malformed yaml", "cluster: [\n", "config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConversions(t *testing.T) {
	isolate(t)
	cfg, err := Load(writeConfig(t, `
index:
  workers: 2
  keep_snapshots: 4
cluster:
  seed: 5
  regroup_concurrency: 6
refiner:
  cache_size: 32
`))
	require.NoError(t, err)

	idx := cfg.IndexerConfig()
	assert.Equal(t, 2, idx.Workers)
	assert.Equal(t, 4, idx.KeepSnapshots)
	assert.Equal(t, uint64(5), idx.Cluster.Community.Seed)
	assert.Equal(t, 6, idx.Cluster.RegroupConcurrency)
	assert.Equal(t, community.AlgorithmLouvain, idx.Cluster.Community.Algorithm)

	rc := cfg.RefinerConfig()
	assert.Equal(t, 32, rc.CacheSize)
	assert.Equal(t, 3, rc.Retry.MaxAttempts)
	assert.Equal(t, refine.BackoffMultiplier, rc.Retry.Multiplier)
}

func TestExpandHome(t *testing.T) {
	home := isolate(t)

	assert.Equal(t, filepath.Join(home, "x.db"), ExpandHome("~/x.db"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/abs/x.db", ExpandHome("/abs/x.db"))
	assert.Equal(t, "~user/x.db", ExpandHome("~user/x.db"))
	assert.Equal(t, "", ExpandHome(""))
}
