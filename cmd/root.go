// Package cmd implements the CLI commands for ConfChunk using Cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gaurav-prasanna/confchunk/config"
)

var rootCmd = &cobra.Command{
	Use:   "confchunk",
	Short: "ConfChunk — turn Confluence pages into retrieval-ready chunks",
	Long: `ConfChunk fetches wiki pages over the Confluence REST API, extracts their
content into ordered blocks, and packs the blocks into token-bounded,
overlapping chunks with heading and navigation metadata.

Usage:
  confchunk run
  confchunk chunk <file.html>`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging applies the configured log level. An unknown level falls
// back to info rather than aborting the run.
func setupLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
