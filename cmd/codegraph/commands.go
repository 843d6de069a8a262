package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/codegraph/internal/graph"
	"github.com/dshills/codegraph/internal/mcp"
	"github.com/dshills/codegraph/internal/refine"
	"github.com/dshills/codegraph/internal/storage"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			refiner, err := refine.New(a.cfg.RefinerConfig(), a.logger)
			if err != nil {
				return err
			}
			server, err := mcp.NewServer(mcp.Options{
				DBPath:  a.cfg.DBPath,
				Refiner: refiner,
				Index:   a.cfg.IndexerConfig(),
				Logger:  a.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			a.logger.Info("codegraph starting",
				zap.String("version", version),
				zap.String("build_mode", storage.BuildMode),
				zap.String("driver", storage.DriverName),
				zap.String("db", a.cfg.DBPath))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errChan := make(chan error, 1)
			go func() {
				errChan <- server.Serve(ctx)
			}()

			select {
			case <-ctx.Done():
				a.logger.Info("shutting down")
				return nil
			case err := <-errChan:
				return err
			}
		},
	}
}

func newClusterCmd(a *app) *cobra.Command {
	var (
		force bool
		out   string
	)

	cmd := &cobra.Command{
		Use:   "cluster <path>",
		Short: "Index and cluster a Go project, storing a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, store, err := a.openIndexer()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			config := a.cfg.IndexerConfig()
			config.Force = force
			result, err := idx.IndexProject(cmd.Context(), args[0], config)
			if err != nil {
				return err
			}

			if out != "" {
				data, err := graph.MarshalNodeLink(result.Graph)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", out, err)
				}
			}

			summary := map[string]interface{}{
				"snapshot_id": result.Snapshot.ID,
				"reused":      result.Stats.Reused,
				"files":       result.Stats.FilesIndexed,
				"chunks":      len(result.Graph.ChunkIDs()),
				"clusters":    len(result.Graph.ClusterIDs()),
				"duration":    result.Stats.Duration.String(),
			}
			if stats, err := result.Graph.GetStats(); err == nil {
				summary["stats"] = stats
			}
			if len(result.Stats.ErrorMessages) > 0 {
				summary["errors"] = result.Stats.ErrorMessages
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "re-cluster even when the source is unchanged")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the node-link graph to this file")
	cmd.Flags().String("algorithm", "", "community detection algorithm (louvain, components)")
	cmd.Flags().Uint64("seed", 0, "community detection seed")
	cmd.Flags().String("provider", "", "refiner provider (llm, local, script)")
	cmd.Flags().Bool("include-tests", false, "include *_test.go files")
	return cmd
}

func newClustersCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clusters <path>",
		Short: "Print the cluster hierarchy of a clustered project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, store, err := a.openIndexer()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			g, _, err := idx.LoadLatest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			clusters, err := g.GetClusters(!all)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), clusters)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "list every cluster, not only top-level ones")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <path>",
		Short: "Print cluster statistics of a clustered project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, store, err := a.openIndexer()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			g, _, err := idx.LoadLatest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			stats, err := g.GetStats()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newPathsCmd(a *app) *cobra.Command {
	var (
		n       int
		maxHops int
	)

	cmd := &cobra.Command{
		Use:   "paths <path>",
		Short: "Print the highest-weighted reference paths between clusters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if n < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			idx, store, err := a.openIndexer()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			g, _, err := idx.LoadLatest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			paths, err := g.LongestPaths(n, graph.PathOptions{MaxHops: maxHops})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), paths)
		},
	}

	cmd.Flags().IntVarP(&n, "count", "n", 5, "number of paths")
	cmd.Flags().IntVar(&maxHops, "max-hops", graph.DefaultMaxHops, "maximum hops per path")
	return cmd
}

func newVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if short {
				_, err := fmt.Fprintln(w, version)
				return err
			}
			_, err := fmt.Fprintf(w, "codegraph %s\nBuild Time: %s\nBuild Mode: %s\nSQLite Driver: %s\n",
				version, buildTime, storage.BuildMode, storage.DriverName)
			return err
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "show only the version number")
	return cmd
}
