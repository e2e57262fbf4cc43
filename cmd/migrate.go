package cmd

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/chadmayfield/sensord/internal/config"
	"github.com/chadmayfield/sensord/internal/store"
	"github.com/spf13/cobra"
)

var dryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Driver == "memory" {
		return fmt.Errorf("memory storage has no schema to migrate")
	}

	if dryRun {
		slog.Info("dry run mode, showing pending migrations")
		return showPendingMigrations(cmd.OutOrStdout(), cfg)
	}

	// Opening the store automatically runs migrations.
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	slog.Info("migrations complete", "driver", cfg.Storage.Driver)
	return nil
}

func showPendingMigrations(w io.Writer, cfg *config.Config) error {
	var driverName string
	switch cfg.Storage.Driver {
	case "sqlite":
		driverName = "sqlite"
	case "postgres":
		driverName = "pgx"
	default:
		return fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	current, pending, err := store.PendingMigrations(db, cfg.Storage.Driver)
	if err != nil {
		return err
	}

	slog.Info("migration status", "current_version", current, "pending", len(pending), "driver", cfg.Storage.Driver)
	if len(pending) == 0 {
		fmt.Fprintf(w, "schema up to date at version %d\n", current)
		return nil
	}
	for _, name := range pending {
		fmt.Fprintf(w, "pending: %s\n", name)
	}
	return nil
}
