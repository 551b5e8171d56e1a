// Command sources manages the academic source corpus used by semantic search.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"assignmenthelper/api/internal/config"
	"assignmenthelper/api/internal/logger"
	"assignmenthelper/api/internal/store"

	"github.com/spf13/cobra"
)

var (
	cfg config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sources",
	Short: "Load and inspect the academic source corpus",
	Long: `sources loads academic sources, with embeddings, into the database used by
the assignment helper API.

Example usage:
  sources load data/*.json             # Load every JSON file in data/
  sources load "corpus/**/*.yaml" -c 8 # Load YAML files with 8 parallel embeddings
  sources count                        # Print the corpus size`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log, err = logger.New(cfg.LogMode, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
}

// openStore connects to the database and brings the schema up to date.
func openStore(ctx context.Context) (*store.PostgresStore, func(), error) {
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	if _, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations failed: %w", err)
	}
	return store.NewPostgresStore(db), func() { _ = db.Close() }, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
