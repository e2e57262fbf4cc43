package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/chadmayfield/sensord/internal/config"
	"github.com/chadmayfield/sensord/internal/store"
)

// loadConfig reads the config file, applies the persistent logging flags and
// installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := setupLogging(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) error {
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(newLogHandler(os.Stderr, cfg.LogFormat, level)))
	return nil
}

// newLogHandler builds the handler for a log format. "pretty" is colorized
// output for a terminal.
func newLogHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	switch format {
	case "pretty":
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	case "text":
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	default:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
}

// openStore opens the configured backend. SQL backends are migrated on open.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(cfg.DSN())
	case "postgres":
		return store.NewPostgresStore(cfg.DSN(), store.PostgresOptions{
			MaxOpenConns: cfg.Storage.Postgres.MaxOpenConns,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}

// redactDSN masks the password in a PostgreSQL DSN for safe display.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	if u.User != nil {
		if _, hasPW := u.User.Password(); hasPW {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
