// Package cmd provides the searchgrep CLI commands: a thin cobra shell
// mapping 1:1 to sync, watch, search, ask, info, and clear.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/searchgrep/searchgrep/internal/logging"
	"github.com/searchgrep/searchgrep/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the searchgrep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "searchgrep",
		Short:   "Local semantic code search",
		Long:    "searchgrep indexes a source tree into a durable vector store and answers natural-language queries by fusing dense and lexical retrieval.",
		Version: version.Version,
	}
	cmd.SetVersionTemplate("searchgrep version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to ~/.searchgrep/logs/")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newClearCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
