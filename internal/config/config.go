// Package config loads codegraph settings from defaults, an optional YAML
// file and CODEGRAPH_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dshills/codegraph/internal/cluster"
	"github.com/dshills/codegraph/internal/community"
	"github.com/dshills/codegraph/internal/indexer"
	"github.com/dshills/codegraph/internal/refine"
)

const (
	// EnvPrefix prefixes every environment override, e.g. CODEGRAPH_CLUSTER_SEED
	EnvPrefix = "CODEGRAPH"
	// FileName is the config file name searched without extension
	FileName = "codegraph"
	// DefaultDBPath is the database location when none is configured
	DefaultDBPath = "~/.codegraph/codegraph.db"
)

// Config holds the complete application configuration
type Config struct {
	DBPath  string        `mapstructure:"db_path"`
	Log     LogConfig     `mapstructure:"log"`
	Index   IndexConfig   `mapstructure:"index"`
	Cluster ClusterConfig `mapstructure:"cluster"`
	Refiner RefinerConfig `mapstructure:"refiner"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IndexConfig holds repository discovery settings
type IndexConfig struct {
	Workers       int  `mapstructure:"workers"`
	IncludeTests  bool `mapstructure:"include_tests"`
	IncludeVendor bool `mapstructure:"include_vendor"`
	KeepSnapshots int  `mapstructure:"keep_snapshots"`
}

// ClusterConfig holds community detection and refinement phase settings
type ClusterConfig struct {
	Algorithm              string  `mapstructure:"algorithm"`
	Seed                   uint64  `mapstructure:"seed"`
	Resolution             float64 `mapstructure:"resolution"`
	SplitThreshold         int     `mapstructure:"split_threshold"`
	SplitRounds            int     `mapstructure:"split_rounds"`
	RegroupGroups          int     `mapstructure:"regroup_groups"`
	RegroupConcurrency     int     `mapstructure:"regroup_concurrency"`
	MaxHierarchyIterations int     `mapstructure:"max_hierarchy_iterations"`
	SkipRegroup            bool    `mapstructure:"skip_regroup"`
	SkipHierarchy          bool    `mapstructure:"skip_hierarchy"`
}

// RefinerConfig selects and configures the refinement provider
type RefinerConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ScriptPath  string        `mapstructure:"script_path"`
	CacheSize   int           `mapstructure:"cache_size"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// SetDefaults registers every key with its default. Keys must be known to
// viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db_path", DefaultDBPath)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("index.workers", runtime.NumCPU())
	v.SetDefault("index.include_tests", false)
	v.SetDefault("index.include_vendor", false)
	v.SetDefault("index.keep_snapshots", 10)

	v.SetDefault("cluster.algorithm", community.AlgorithmLouvain)
	v.SetDefault("cluster.seed", community.DefaultSeed)
	v.SetDefault("cluster.resolution", community.DefaultResolution)
	v.SetDefault("cluster.split_threshold", cluster.DefaultSplitThreshold)
	v.SetDefault("cluster.split_rounds", cluster.DefaultSplitRounds)
	v.SetDefault("cluster.regroup_groups", cluster.DefaultRegroupGroups)
	v.SetDefault("cluster.regroup_concurrency", cluster.DefaultRegroupConcurrency)
	v.SetDefault("cluster.max_hierarchy_iterations", cluster.DefaultMaxHierarchyIterations)
	v.SetDefault("cluster.skip_regroup", false)
	v.SetDefault("cluster.skip_hierarchy", false)

	v.SetDefault("refiner.provider", "")
	v.SetDefault("refiner.api_key", "")
	v.SetDefault("refiner.base_url", refine.DefaultLLMBaseURL)
	v.SetDefault("refiner.model", refine.DefaultLLMModel)
	v.SetDefault("refiner.timeout", refine.DefaultLLMTimeout)
	v.SetDefault("refiner.script_path", "")
	v.SetDefault("refiner.cache_size", 256)
	v.SetDefault("refiner.max_attempts", refine.DefaultMaxAttempts)
	v.SetDefault("refiner.base_delay", refine.DefaultBaseDelay)
	v.SetDefault("refiner.max_delay", refine.DefaultMaxDelay)
}

// NewViper builds a viper instance with defaults, the config file and
// environment overrides. An empty cfgFile searches ./codegraph.yaml and
// $HOME/.codegraph/codegraph.yaml; a missing file is not an error.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".codegraph"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

// Load reads and validates the configuration
func Load(cfgFile string) (*Config, error) {
	v, err := NewViper(cfgFile)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes and validates a configured viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.DBPath = ExpandHome(cfg.DBPath)
	cfg.Refiner.ScriptPath = ExpandHome(cfg.Refiner.ScriptPath)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "console", "text":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}

	if err := (community.Config{Algorithm: c.Cluster.Algorithm}).Validate(); err != nil {
		return fmt.Errorf("cluster.algorithm: %w", err)
	}
	if c.Cluster.Resolution < 0 {
		return errors.New("cluster.resolution must not be negative")
	}
	if c.Cluster.SplitThreshold < 2 {
		return errors.New("cluster.split_threshold must be at least 2")
	}
	if c.Cluster.RegroupGroups < 1 {
		return errors.New("cluster.regroup_groups must be at least 1")
	}
	if c.Cluster.MaxHierarchyIterations < 1 {
		return errors.New("cluster.max_hierarchy_iterations must be at least 1")
	}

	if c.Index.Workers < 1 {
		return errors.New("index.workers must be at least 1")
	}
	if c.Index.KeepSnapshots < 0 {
		return errors.New("index.keep_snapshots must not be negative")
	}

	switch provider := refine.DetectProvider(c.RefinerConfig()); provider {
	case refine.ProviderLLM:
		if c.Refiner.APIKey == "" {
			return errors.New("refiner.api_key is required for the llm provider")
		}
	case refine.ProviderScript:
		if c.Refiner.ScriptPath == "" {
			return errors.New("refiner.script_path is required for the script provider")
		}
	case refine.ProviderLocal:
	default:
		return fmt.Errorf("refiner.provider: %w: %s", refine.ErrUnknownProvider, provider)
	}
	if c.Refiner.MaxAttempts < 1 {
		return errors.New("refiner.max_attempts must be at least 1")
	}
	if c.Refiner.MaxDelay < c.Refiner.BaseDelay {
		return errors.New("refiner.max_delay must not be below refiner.base_delay")
	}

	return nil
}

// ClusterConfig converts the cluster section for the pipeline
func (c *Config) ClusterConfig() cluster.Config {
	return cluster.Config{
		Community: community.Config{
			Algorithm:  c.Cluster.Algorithm,
			Seed:       c.Cluster.Seed,
			Resolution: c.Cluster.Resolution,
		},
		SplitThreshold:         c.Cluster.SplitThreshold,
		SplitRounds:            c.Cluster.SplitRounds,
		RegroupGroups:          c.Cluster.RegroupGroups,
		RegroupConcurrency:     c.Cluster.RegroupConcurrency,
		MaxHierarchyIterations: c.Cluster.MaxHierarchyIterations,
		SkipRegroup:            c.Cluster.SkipRegroup,
		SkipHierarchy:          c.Cluster.SkipHierarchy,
	}
}

// IndexerConfig converts the index and cluster sections for the indexer
func (c *Config) IndexerConfig() *indexer.Config {
	return &indexer.Config{
		Workers:       c.Index.Workers,
		IncludeTests:  c.Index.IncludeTests,
		IncludeVendor: c.Index.IncludeVendor,
		KeepSnapshots: c.Index.KeepSnapshots,
		Cluster:       c.ClusterConfig(),
	}
}

// RefinerConfig converts the refiner section for refine.New
func (c *Config) RefinerConfig() refine.Config {
	return refine.Config{
		Provider:   c.Refiner.Provider,
		APIKey:     c.Refiner.APIKey,
		BaseURL:    c.Refiner.BaseURL,
		Model:      c.Refiner.Model,
		Timeout:    c.Refiner.Timeout,
		ScriptPath: c.Refiner.ScriptPath,
		CacheSize:  c.Refiner.CacheSize,
		Retry: refine.RetryConfig{
			MaxAttempts: c.Refiner.MaxAttempts,
			BaseDelay:   c.Refiner.BaseDelay,
			MaxDelay:    c.Refiner.MaxDelay,
			Multiplier:  refine.BackoffMultiplier,
		},
	}
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
