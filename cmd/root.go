// Package cmd implements the strata command line interface.
package cmd

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strataworks/strata/internal/log"
)

var (
	logLevel string
	jsonLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Level-aware knowledge retrieval across the ISA-95 hierarchy",
	Long: `Strata is a knowledge retrieval and cross-level analysis engine
organized around the ISA-95 hierarchy (1=Field, 2=Supervisory,
3=Planning, 4=Management).

Documents live in per-level collections; a requester at level N
retrieves from levels 1..N only. The engine serves retrieval,
cross-level analysis, integration, and compliance tools over MCP.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit logs as JSON")
}

func newLogger() log.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return log.New(log.Config{Level: level, JSON: jsonLogs})
}
