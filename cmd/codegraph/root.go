package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dshills/codegraph/internal/config"
	"github.com/dshills/codegraph/internal/indexer"
	"github.com/dshills/codegraph/internal/logging"
	"github.com/dshills/codegraph/internal/refine"
	"github.com/dshills/codegraph/internal/storage"
)

// flagKeys maps command-line flags to config keys
var flagKeys = map[string]string{
	"db":            "db_path",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"algorithm":     "cluster.algorithm",
	"seed":          "cluster.seed",
	"provider":      "refiner.provider",
	"include-tests": "index.include_tests",
}

// app carries what PersistentPreRunE loaded into the subcommands
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "codegraph",
		Short: "Cluster a Go codebase by its chunk reference graph",
		Long: `codegraph cuts a Go repository into chunks, links them through the
references between them, clusters the graph into a hierarchy and extracts
the strongest reference paths between clusters.

Results are stored in SQLite and served to MCP clients over stdio.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./codegraph.yaml or ~/.codegraph/codegraph.yaml)")
	flags.String("db", "", "SQLite database path (default: "+config.DefaultDBPath+")")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "json", "Log format (json, console)")

	root.AddCommand(
		newServeCmd(a),
		newClusterCmd(a),
		newClustersCmd(a),
		newStatsCmd(a),
		newPathsCmd(a),
		newVersionCmd(),
	)
	return root
}

// load reads the configuration with the executing command's flags bound on top
func (a *app) load(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}

	v, err := config.NewViper(a.cfgFile)
	if err != nil {
		return err
	}
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && f.Changed && bindErr == nil {
			bindErr = v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return fmt.Errorf("failed to bind flags: %w", bindErr)
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// openIndexer opens the database and builds an indexer with the configured refiner
func (a *app) openIndexer() (*indexer.Indexer, storage.Storage, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(a.cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	refiner, err := refine.New(a.cfg.RefinerConfig(), a.logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return indexer.New(store, refiner, a.logger), store, nil
}
