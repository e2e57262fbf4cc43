package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for sensord.
type Config struct {
	ListenAddr string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	LogFormat  string        `mapstructure:"log_format" yaml:"log_format"`
	LogLevel   string        `mapstructure:"log_level" yaml:"log_level"`
	Storage    StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// StorageConfig defines the database backend.
type StorageConfig struct {
	Driver   string         `mapstructure:"driver" yaml:"driver"` // "memory", "sqlite" or "postgres"
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific configuration.
type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig holds PostgreSQL-specific configuration.
type PostgresConfig struct {
	DSN          string `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
}

// Load reads configuration from flag path, env vars, then default file paths.
// Precedence: flag → $SENSORD_CONFIG env → ~/.config/sensord/config.yaml → /etc/sensord/config.yaml
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_level", "info")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite.path", "sensord.db")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.max_open_conns", 10)

	// Env var support: SENSORD_STORAGE_DRIVER maps to storage.driver.
	v.SetEnvPrefix("SENSORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if envPath := os.Getenv("SENSORD_CONFIG"); envPath != "" {
		v.SetConfigFile(envPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "sensord"))
		}
		v.AddConfigPath("/etc/sensord")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else {
		// Warn if config file is world-readable; it may carry database credentials.
		if cfgPath := v.ConfigFileUsed(); cfgPath != "" {
			if info, err := os.Stat(cfgPath); err == nil {
				perm := info.Mode().Perm()
				if perm&0004 != 0 {
					slog.Warn("config file is world-readable", "path", cfgPath, "permissions", fmt.Sprintf("%04o", perm))
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Storage.Driver == "postgres" && cfg.Storage.Postgres.DSN == "" {
		cfg.Storage.Postgres.DSN = dsnFromEnv()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// dsnFromEnv assembles a postgres URL from the conventional DB_HOST, DB_PORT,
// DB_USER, DB_PASSWORD and DB_NAME variables. It returns "" without DB_HOST.
func dsnFromEnv() string {
	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + os.Getenv("DB_NAME"),
	}
	if user := os.Getenv("DB_USER"); user != "" {
		if pw, ok := os.LookupEnv("DB_PASSWORD"); ok {
			u.User = url.UserPassword(user, pw)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}

// Validate checks that the configuration is complete and correct.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required for sqlite driver")
		}
		dir := filepath.Dir(c.Storage.SQLite.Path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return fmt.Errorf("creating storage directory %q: %w", dir, err)
			}
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn (or DB_HOST) is required for postgres driver")
		}
		if c.Storage.Postgres.MaxOpenConns < 0 {
			return fmt.Errorf("storage.postgres.max_open_conns must not be negative")
		}
	default:
		return fmt.Errorf("storage.driver must be 'memory', 'sqlite' or 'postgres', got %q", c.Storage.Driver)
	}

	switch c.LogFormat {
	case "json", "text", "pretty":
	default:
		return fmt.Errorf("log_format must be 'json', 'text' or 'pretty', got %q", c.LogFormat)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("listen_addr %q is not a valid address: %w", c.ListenAddr, err)
	}

	return nil
}

// SlogLevel parses LogLevel. An empty level means info.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// DSN returns the appropriate DSN for the configured storage driver.
func (c *Config) DSN() string {
	switch c.Storage.Driver {
	case "sqlite":
		return c.Storage.SQLite.Path
	case "postgres":
		return c.Storage.Postgres.DSN
	default:
		return ""
	}
}
