package store

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/pressly/goose/v3"
)

// migrationSource returns the embedded migration tree, its directory and the
// goose dialect for driver.
func migrationSource(driver string) (fs.FS, string, string, error) {
	switch driver {
	case "sqlite":
		return migrations, "migrations", "sqlite3", nil
	case "postgres":
		return pgMigrations, "pgmigrations", "postgres", nil
	default:
		return nil, "", "", fmt.Errorf("no migrations for storage driver %q", driver)
	}
}

// migrate brings db up to the latest schema. goose keeps its settings in
// package state, so stores must not be opened concurrently.
func migrate(db *sql.DB, driver string) error {
	fsys, dir, dialect, err := migrationSource(driver)
	if err != nil {
		return err
	}
	goose.SetBaseFS(fsys)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// PendingMigrations reports the applied schema version and the names of
// migrations not yet applied, without applying them.
func PendingMigrations(db *sql.DB, driver string) (int64, []string, error) {
	fsys, dir, dialect, err := migrationSource(driver)
	if err != nil {
		return 0, nil, err
	}
	goose.SetBaseFS(fsys)
	if err := goose.SetDialect(dialect); err != nil {
		return 0, nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	current, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, nil, fmt.Errorf("reading schema version: %w", err)
	}
	pending, err := goose.CollectMigrations(dir, current, goose.MaxVersion)
	if errors.Is(err, goose.ErrNoMigrationFiles) {
		// Nothing newer than current: the schema is up to date.
		return current, nil, nil
	}
	if err != nil {
		return current, nil, fmt.Errorf("collecting migrations: %w", err)
	}

	names := make([]string, 0, len(pending))
	for _, m := range pending {
		names = append(names, path.Base(m.Source))
	}
	return current, names, nil
}
