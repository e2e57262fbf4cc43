package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X github.com/chadmayfield/sensord/cmd.Version=...".
var Version = "dev"

var (
	cfgFile   string
	logFormat string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "sensord",
	Short: "Sensor registry and metric aggregation service",
	Long: `sensord registers environmental sensors, records their temperature and
humidity readings in memory, SQLite or PostgreSQL, and answers min, max, avg
and sum queries over a sensor's latest reading or a date range of up to 31 days.`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, text or pretty; overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error; overrides config)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
