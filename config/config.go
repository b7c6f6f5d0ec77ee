// Package config loads application settings from the environment, with an
// optional .env file, and validates them before the pipeline starts.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/gaurav-prasanna/confchunk/core/token"
)

// Config holds every runtime knob. Tag lists left empty fall back to the
// extractor package defaults; see cmd for the wiring.
type Config struct {
	// Confluence access.
	BaseURL   string   `env:"CONFLUENCE_BASE_URL"`
	AuthToken string   `env:"CONFLUENCE_AUTH_TOKEN"`
	PageIDs   []string `env:"CONFLUENCE_PAGE_IDS" envSeparator:","`
	SpaceKey  string   `env:"CONFLUENCE_SPACE_KEY"`

	// Chunking.
	ChunkSize         int    `env:"CHUNK_SIZE" envDefault:"512"`
	ChunkOverlap      int    `env:"CHUNK_OVERLAP" envDefault:"0"`
	TokenStrategy     string `env:"TOKEN_STRATEGY" envDefault:"simple"`
	SentenceSplitter  string `env:"SENTENCE_SPLITTER" envDefault:"simple"`
	TokenizerPath     string `env:"TOKENIZER_PATH"`
	MaxHeadingLevels  int    `env:"MAX_HEADING_LEVELS" envDefault:"2"`
	IncludePageTag    bool   `env:"INCLUDE_PAGE_TAG" envDefault:"true"`
	IncludeSectionTag bool   `env:"INCLUDE_SECTION_TAG" envDefault:"true"`
	IDPrefix          string `env:"ID_PREFIX" envDefault:"EDU"`

	// HTML extraction.
	BlockTags       []string `env:"BLOCK_TAGS" envSeparator:","`
	ExcludedTags    []string `env:"EXCLUDED_TAGS" envSeparator:","`
	ExcludedClasses []string `env:"EXCLUDED_CLASSES" envSeparator:","`
	ExcludedIDs     []string `env:"EXCLUDED_IDS" envSeparator:","`
	IncludeMarkdown bool     `env:"INCLUDE_BLOCK_MARKDOWN" envDefault:"false"`

	// Pipeline.
	Workers         int           `env:"MAX_CONCURRENT_REQUESTS" envDefault:"10"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	MaxRetries      int           `env:"MAX_RETRIES" envDefault:"3"`
	ShowProgressBar bool          `env:"SHOW_PROGRESS_BAR" envDefault:"false"`

	// Output.
	OutputDir      string `env:"OUTPUT_DIR" envDefault:"output"`
	OutputPrefix   string `env:"OUTPUT_PREFIX" envDefault:"confluence_chunks"`
	IncludeBlocks  bool   `env:"INCLUDE_BLOCKS_IN_OUTPUT" envDefault:"false"`
	SQLiteOutput   bool   `env:"SQLITE_OUTPUT" envDefault:"false"`
	SQLiteFilename string `env:"SQLITE_DB_FILENAME" envDefault:"confluence_chunks.sqlite3"`
	SQLiteTable    string `env:"SQLITE_TABLE_NAME" envDefault:"chunks"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file, then the environment. A missing .env
// is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return cfg, nil
}

// Validate checks the settings and reports every problem at once. needBase
// is true when the run will talk to the remote API.
func (c *Config) Validate(needBase bool) error {
	var errs []string

	if needBase && c.BaseURL == "" {
		errs = append(errs, "CONFLUENCE_BASE_URL must be set")
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, "CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 {
		errs = append(errs, "CHUNK_OVERLAP must be non-negative")
	}
	if c.ChunkSize > 0 && c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, "CHUNK_OVERLAP must be strictly less than CHUNK_SIZE")
	}
	switch c.TokenStrategy {
	case token.StrategySimple, token.StrategyWordPiece:
	default:
		errs = append(errs, fmt.Sprintf("TOKEN_STRATEGY must be %q or %q", token.StrategySimple, token.StrategyWordPiece))
	}
	switch c.SentenceSplitter {
	case token.SplitterSimple, token.SplitterUnicode:
	default:
		errs = append(errs, fmt.Sprintf("SENTENCE_SPLITTER must be %q or %q", token.SplitterSimple, token.SplitterUnicode))
	}
	if c.MaxHeadingLevels <= 0 {
		errs = append(errs, "MAX_HEADING_LEVELS must be positive")
	}
	if c.IDPrefix == "" {
		errs = append(errs, "ID_PREFIX must not be empty")
	}
	if c.Workers <= 0 {
		errs = append(errs, "MAX_CONCURRENT_REQUESTS must be positive")
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, "REQUEST_TIMEOUT must be positive")
	}
	if c.MaxRetries < 0 {
		errs = append(errs, "MAX_RETRIES must be non-negative")
	}
	if c.SQLiteOutput && !identOK(c.SQLiteTable) {
		errs = append(errs, "SQLITE_TABLE_NAME must be a plain identifier")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// identOK accepts the identifiers we are willing to splice into SQL.
func identOK(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
