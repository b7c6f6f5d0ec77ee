package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFLUENCE_BASE_URL", "https://wiki.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.BaseURL != "https://wiki.example.com" {
		t.Errorf("BaseURL = %q, want trailing slash stripped", cfg.BaseURL)
	}
	if cfg.ChunkSize != 512 {
		t.Errorf("ChunkSize = %d, want 512", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap != 0 {
		t.Errorf("ChunkOverlap = %d, want 0", cfg.ChunkOverlap)
	}
	if cfg.TokenStrategy != "simple" || cfg.SentenceSplitter != "simple" {
		t.Errorf("strategy/splitter = %q/%q, want simple/simple", cfg.TokenStrategy, cfg.SentenceSplitter)
	}
	if cfg.MaxHeadingLevels != 2 {
		t.Errorf("MaxHeadingLevels = %d, want 2", cfg.MaxHeadingLevels)
	}
	if !cfg.IncludePageTag || !cfg.IncludeSectionTag {
		t.Error("page/section tags should default to enabled")
	}
	if cfg.Workers != 10 {
		t.Errorf("Workers = %d, want 10", cfg.Workers)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
	}
	if cfg.OutputDir != "output" {
		t.Errorf("OutputDir = %q, want output", cfg.OutputDir)
	}
	if cfg.IDPrefix != "EDU" {
		t.Errorf("IDPrefix = %q, want EDU", cfg.IDPrefix)
	}
	if len(cfg.BlockTags) != 0 {
		t.Errorf("BlockTags should be empty by default, got %v", cfg.BlockTags)
	}

	if err := cfg.Validate(true); err != nil {
		t.Errorf("Validate on defaults: %v", err)
	}
}

func TestLoadLists(t *testing.T) {
	t.Setenv("CONFLUENCE_PAGE_IDS", "100,200,300")
	t.Setenv("EXCLUDED_CLASSES", "toc-,macro-")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.PageIDs) != 3 || cfg.PageIDs[1] != "200" {
		t.Errorf("PageIDs = %v", cfg.PageIDs)
	}
	if len(cfg.ExcludedClasses) != 2 || cfg.ExcludedClasses[0] != "toc-" {
		t.Errorf("ExcludedClasses = %v", cfg.ExcludedClasses)
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := &Config{
		ChunkSize:        0,
		ChunkOverlap:     -1,
		TokenStrategy:    "bpe",
		SentenceSplitter: "simple",
		MaxHeadingLevels: 2,
		IDPrefix:         "EDU",
		Workers:          10,
		RequestTimeout:   30 * time.Second,
	}

	err := cfg.Validate(true)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{
		"CONFLUENCE_BASE_URL",
		"CHUNK_SIZE",
		"CHUNK_OVERLAP",
		"TOKEN_STRATEGY",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q: %s", want, msg)
		}
	}
}

func TestValidateOverlapBound(t *testing.T) {
	cfg := &Config{
		BaseURL:          "https://wiki.example.com",
		ChunkSize:        100,
		ChunkOverlap:     100,
		TokenStrategy:    "simple",
		SentenceSplitter: "simple",
		MaxHeadingLevels: 2,
		IDPrefix:         "EDU",
		Workers:          1,
		RequestTimeout:   time.Second,
	}

	if err := cfg.Validate(true); err == nil {
		t.Error("overlap equal to size should be rejected")
	}
	cfg.ChunkOverlap = 99
	if err := cfg.Validate(true); err != nil {
		t.Errorf("overlap just under size should pass: %v", err)
	}
}

func TestValidateSQLiteTable(t *testing.T) {
	cfg := &Config{
		ChunkSize:        100,
		TokenStrategy:    "simple",
		SentenceSplitter: "simple",
		MaxHeadingLevels: 2,
		IDPrefix:         "EDU",
		Workers:          1,
		RequestTimeout:   time.Second,
		SQLiteOutput:     true,
		SQLiteTable:      "chunks; drop table",
	}

	if err := cfg.Validate(false); err == nil {
		t.Error("suspicious table name should be rejected")
	}
	cfg.SQLiteTable = "chunks_v2"
	if err := cfg.Validate(false); err != nil {
		t.Errorf("plain identifier should pass: %v", err)
	}
}
