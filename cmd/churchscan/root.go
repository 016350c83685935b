package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwyoon/churchscan/version"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "churchscan",
	Short: "Church publication scanner with LLM-powered recognition",
	Long: `Churchscan ingests scanned church newsletters and bulletins into a
searchable chunk store.

The pipeline includes:
  - Listing discovery with incremental and full-rescan modes
  - Multi-provider vision recognition with fixed fallback order
  - Proper-noun correction against a member/position roster
  - Article segmentation, metadata extraction, chunking, and embedding`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.churchscan/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn, error",
	)

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(reprocessCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process logger from the --log-level flag.
func newLogger() *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
