package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chronoshard/chronoshard/pkg/config"
	"github.com/chronoshard/chronoshard/pkg/graph"
)

// newServeCmd builds the serve subcommand: it loads every *.graph file
// under --data-dir into a graph.Manager and holds the process open until
// SIGINT/SIGTERM, at which point every registered graph is saved back to
// --data-dir before exiting. No GraphQL/HTTP surface is started here;
// the query and mutation APIs are external collaborators this process
// stands in for.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load graphs from a data directory and hold them open",
		RunE:  runServe,
	}
	cmd.Flags().String("data-dir", "", "Data directory holding *.graph files (defaults to CHRONOSHARD_DATA_DIR)")
	cmd.Flags().Int("shard-count", 0, "Shard count for any newly created graph (defaults to CHRONOSHARD_SHARD_COUNT)")
	cmd.Flags().Bool("persistent", false, "Open new graphs as the persistent (deletion-capable) variant")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()

	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if shardCount, _ := cmd.Flags().GetInt("shard-count"); shardCount > 0 {
		cfg.Storage.ShardCount = shardCount
	}
	if persistent, _ := cmd.Flags().GetBool("persistent"); persistent {
		cfg.Storage.Persistent = persistent
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.New(os.Stderr, "[serve] ", log.LstdFlags)

	mgr := graph.NewManager(cfg)
	if _, err := os.Stat(cfg.Storage.DataDir); err == nil {
		names, err := mgr.LoadGraphsFromPath(cfg.Storage.DataDir)
		if err != nil {
			return err
		}
		logger.Printf("loaded graphs from %s: %v", cfg.Storage.DataDir, names)
	} else {
		logger.Printf("data directory %s absent, starting with no graphs loaded", cfg.Storage.DataDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Printf("serving %d graph(s); waiting for shutdown signal", len(mgr.Names()))
	<-ctx.Done()
	logger.Printf("shutdown signal received, saving graphs to %s", cfg.Storage.DataDir)

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return err
	}
	for _, name := range mgr.Names() {
		if err := mgr.SaveGraph(name, cfg.Storage.DataDir); err != nil {
			logger.Printf("save %s: %v", name, err)
		}
	}
	return nil
}
