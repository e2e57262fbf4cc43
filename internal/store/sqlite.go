package store

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore implements Store backed by SQLite.
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore opens a SQLite database, sets file permissions, and runs migrations.
// A dsn of ":memory:" opens a private in-memory database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	onDisk := dsn != ":memory:" && !strings.HasPrefix(dsn, "file::memory:")
	if onDisk {
		dir := filepath.Dir(dsn)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, fmt.Errorf("creating db directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// Pragmas are per connection and an in-memory database is per connection too.
	db.SetMaxOpenConns(1)

	// Set pragmas for performance and safety.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	// Set file permissions to 0600.
	if onDisk {
		if err := os.Chmod(dsn, 0600); err != nil && !os.IsNotExist(err) {
			_ = db.Close()
			return nil, fmt.Errorf("setting file permissions: %w", err)
		}
	}

	if err := migrate(db, "sqlite"); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{sqlStore: &sqlStore{db: db, dialect: dialect{name: "sqlite"}}}, nil
}
