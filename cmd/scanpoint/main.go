package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ganot/scanpoint/internal/config"
	"github.com/ganot/scanpoint/internal/logger"
)

var version = "dev"

var (
	configPath string
	logLevel   string
)

// rootCmd is the scanpoint CLI.
var rootCmd = &cobra.Command{
	Use:   "scanpoint",
	Short: "Attendance check-in station with an offline queue",
	Long: `scanpoint runs a check-in station: it turns scanned codes into attendance
records, saves scans locally while the registry is unreachable and syncs them
when connectivity returns.

It also ships a reference registry service for development and tests.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config (or set SCANPOINT_CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(registryCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig applies command line overrides on top of config.Load.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// newLogger writes to the configured log file when set, otherwise to w.
// The returned func closes the file.
func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, func()) {
	if cfg.Log.Path != "" {
		fw, err := logger.OpenFile(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			return logger.New(fw, cfg.Log.Level, cfg.Log.Format), func() { _ = fw.Close() }
		}
	}
	return logger.New(w, cfg.Log.Level, cfg.Log.Format), func() {}
}
