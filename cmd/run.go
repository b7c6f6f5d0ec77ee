// Package cmd — run command.
// This is the main command that orchestrates the pipeline:
// list → fetch → extract → normalize → chunk → write.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gaurav-prasanna/confchunk/config"
	"github.com/gaurav-prasanna/confchunk/core"
	"github.com/gaurav-prasanna/confchunk/core/chunk"
	"github.com/gaurav-prasanna/confchunk/core/extract"
	"github.com/gaurav-prasanna/confchunk/core/fetch"
	"github.com/gaurav-prasanna/confchunk/core/output"
	"github.com/gaurav-prasanna/confchunk/core/token"
	"github.com/gaurav-prasanna/confchunk/pipeline"
)

// Flag variables.
var (
	flagPages     string
	flagOutputDir string
	flagSQLite    bool
	flagProgress  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch pages and write chunked output",
	Long: `Run executes the full pipeline: it lists the pages visible to the
configured Confluence instance (or takes an explicit id list), fetches
each page concurrently, and writes chunked output to the configured sinks.

Settings come from the environment / .env file; flags override a few of
them for one-off runs.

Examples:
  confchunk run
  confchunk run --pages 12345,67890
  confchunk run --sqlite --output_dir ./out`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&flagPages, "pages", "", "Comma-separated page ids (default: all pages)")
	runCmd.Flags().StringVar(&flagOutputDir, "output_dir", "", "Output directory (default: from env)")
	runCmd.Flags().BoolVar(&flagSQLite, "sqlite", false, "Also write a SQLite chunk database")
	runCmd.Flags().BoolVar(&flagProgress, "progress", false, "Show a progress bar")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Flag overrides.
	if flagPages != "" {
		cfg.PageIDs = splitIDs(flagPages)
	}
	if flagOutputDir != "" {
		cfg.OutputDir = flagOutputDir
	}
	if flagSQLite {
		cfg.SQLiteOutput = true
	}
	if flagProgress {
		cfg.ShowProgressBar = true
	}

	if err := cfg.Validate(true); err != nil {
		return err
	}
	setupLogging(cfg)

	fetcher := fetch.New(fetch.Config{
		BaseURL:    cfg.BaseURL,
		AuthToken:  authHeader(cfg.AuthToken),
		Timeout:    cfg.RequestTimeout,
		MaxRetries: cfg.MaxRetries,
		SpaceKey:   cfg.SpaceKey,
	})

	sink, err := buildSink(cfg)
	if err != nil {
		return err
	}

	runner := pipeline.New(fetcher, newExtractor(cfg), sink, pipeline.Config{
		PageIDs:      cfg.PageIDs,
		Workers:      cfg.Workers,
		TokenConfig:  tokenConfig(cfg),
		ChunkConfig:  chunkConfig(cfg),
		ShowProgress: cfg.ShowProgressBar,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "✓ %d pages → %d chunks in %s\n",
		stats.PagesProcessed, stats.TotalChunks, stats.Duration.Round(time.Millisecond))
	if stats.PagesSkipped > 0 || stats.PagesFailed > 0 {
		fmt.Fprintf(os.Stderr, "  %d skipped, %d failed\n", stats.PagesSkipped, stats.PagesFailed)
	}
	fmt.Fprintf(os.Stdout, "  Output: %s\n", sink.OutputPath())
	return nil
}

// buildSink assembles the configured sink set. JSON is always on; SQLite
// joins it by flag.
func buildSink(cfg *config.Config) (core.Sink, error) {
	jsonSink, err := output.NewJSONSink(cfg.OutputDir, cfg.OutputPrefix, cfg.IncludeBlocks)
	if err != nil {
		return nil, fmt.Errorf("initializing json sink: %w", err)
	}
	if !cfg.SQLiteOutput {
		return jsonSink, nil
	}

	sqliteSink, err := output.NewSQLiteSink(cfg.OutputDir, cfg.SQLiteFilename, cfg.SQLiteTable, "")
	if err != nil {
		return nil, fmt.Errorf("initializing sqlite sink: %w", err)
	}
	return output.NewCompositeSink(jsonSink, sqliteSink)
}

func newExtractor(cfg *config.Config) *extract.Extractor {
	return extract.New(extract.Config{
		BlockTags:       cfg.BlockTags,
		ExcludedTags:    cfg.ExcludedTags,
		ExcludedClasses: cfg.ExcludedClasses,
		ExcludedIDs:     cfg.ExcludedIDs,
		IDPrefix:        cfg.IDPrefix,
		IncludeMarkdown: cfg.IncludeMarkdown,
	})
}

func tokenConfig(cfg *config.Config) token.Config {
	return token.Config{
		Strategy:         cfg.TokenStrategy,
		SentenceSplitter: cfg.SentenceSplitter,
		VocabPath:        cfg.TokenizerPath,
	}
}

func chunkConfig(cfg *config.Config) chunk.Config {
	return chunk.Config{
		ChunkSize:         cfg.ChunkSize,
		ChunkOverlap:      cfg.ChunkOverlap,
		MaxHeadingLevels:  cfg.MaxHeadingLevels,
		IncludePageTag:    cfg.IncludePageTag,
		IncludeSectionTag: cfg.IncludeSectionTag,
		IDPrefix:          cfg.IDPrefix,
	}
}

// authHeader turns a bare token into an Authorization header value.
func authHeader(tok string) string {
	if tok == "" {
		return ""
	}
	if strings.Contains(tok, " ") {
		return tok
	}
	return "Bearer " + tok
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
