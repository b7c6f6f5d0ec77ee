package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/gaurav-prasanna/confchunk/core"
	"github.com/gaurav-prasanna/confchunk/core/chunk"
	"github.com/gaurav-prasanna/confchunk/core/extract"
	"github.com/gaurav-prasanna/confchunk/core/token"
)

type fakeFetcher struct {
	pages      map[string]*core.Page
	failIDs    map[string]bool
	listErr    error
	listCalled bool
}

func (f *fakeFetcher) ListPageIDs(_ context.Context) ([]string, error) {
	f.listCalled = true
	if f.listErr != nil {
		return nil, f.listErr
	}
	ids := make([]string, 0, len(f.pages))
	for id := range f.pages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeFetcher) FetchPage(_ context.Context, pageID string) (*core.Page, error) {
	if f.failIDs[pageID] {
		return nil, errors.New("boom")
	}
	return f.pages[pageID], nil
}

type recordSink struct {
	opened bool
	closed bool
	meta   core.RunMetadata
	pages  []string
	chunks int
}

func (s *recordSink) Open() error { s.opened = true; return nil }

func (s *recordSink) WritePage(page *core.Page, _ []*core.ContentBlock, chunks []*core.Chunk) error {
	s.pages = append(s.pages, page.ID)
	s.chunks += len(chunks)
	return nil
}

func (s *recordSink) Close(meta core.RunMetadata) error {
	s.closed = true
	s.meta = meta
	return nil
}

func (s *recordSink) OutputPath() string { return "test" }

func testPage(id string) *core.Page {
	return &core.Page{
		ID:       id,
		Title:    "Page " + id,
		SpaceKey: "DOCS",
		Version:  1,
		URL:      "https://wiki.example.com/pages/" + id,
		BodyHTML: fmt.Sprintf("<h2>Section</h2><p>Body of page %s. More text here.</p>", id),
	}
}

func testConfig(workers int, pageIDs []string) Config {
	return Config{
		PageIDs:     pageIDs,
		Workers:     workers,
		TokenConfig: token.Config{Strategy: "simple", SentenceSplitter: "simple"},
		ChunkConfig: chunk.Config{ChunkSize: 50, IncludePageTag: true, IncludeSectionTag: true},
	}
}

func TestRunProcessesAllPages(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*core.Page{
		"1": testPage("1"),
		"2": testPage("2"),
		"3": testPage("3"),
	}}
	sink := &recordSink{}

	runner := New(fetcher, extract.New(extract.Config{}), sink, testConfig(2, nil))
	stats, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !fetcher.listCalled {
		t.Error("expected page listing")
	}
	if !sink.opened || !sink.closed {
		t.Error("sink not opened/closed")
	}
	if stats.PagesProcessed != 3 {
		t.Errorf("PagesProcessed = %d, want 3", stats.PagesProcessed)
	}
	if stats.TotalChunks == 0 || stats.TotalChunks != sink.chunks {
		t.Errorf("TotalChunks = %d, sink saw %d", stats.TotalChunks, sink.chunks)
	}
	if len(sink.pages) != 3 {
		t.Errorf("sink received %d pages, want 3", len(sink.pages))
	}
	if sink.meta.TotalPages != 3 || sink.meta.ChunkSize != 50 {
		t.Errorf("metadata = %+v", sink.meta)
	}
}

func TestRunSkipsMissingAndFailedPages(t *testing.T) {
	fetcher := &fakeFetcher{
		pages:   map[string]*core.Page{"1": testPage("1")},
		failIDs: map[string]bool{"9": true},
	}
	sink := &recordSink{}

	runner := New(fetcher, extract.New(extract.Config{}), sink, testConfig(2, []string{"1", "5", "9"}))
	stats, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if fetcher.listCalled {
		t.Error("listing should be bypassed when page ids are configured")
	}
	if stats.PagesProcessed != 1 || stats.PagesSkipped != 1 || stats.PagesFailed != 1 {
		t.Errorf("stats = %+v, want 1 processed / 1 skipped / 1 failed", stats)
	}
	if len(sink.pages) != 1 || sink.pages[0] != "1" {
		t.Errorf("sink pages = %v, want [1]", sink.pages)
	}
}

func TestRunListFailureAborts(t *testing.T) {
	fetcher := &fakeFetcher{listErr: errors.New("api down")}
	sink := &recordSink{}

	runner := New(fetcher, extract.New(extract.Config{}), sink, testConfig(2, nil))
	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if sink.opened {
		t.Error("sink should not open when listing fails")
	}
}

func TestRunBadStrategyAborts(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*core.Page{"1": testPage("1")}}
	sink := &recordSink{}

	cfg := testConfig(1, []string{"1"})
	cfg.TokenConfig.Strategy = "nope"

	runner := New(fetcher, extract.New(extract.Config{}), sink, cfg)
	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunManyPagesFewWorkers(t *testing.T) {
	pages := make(map[string]*core.Page)
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("%d", i)
		pages[id] = testPage(id)
	}
	fetcher := &fakeFetcher{pages: pages}
	sink := &recordSink{}

	runner := New(fetcher, extract.New(extract.Config{}), sink, testConfig(4, nil))
	stats, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.PagesProcessed != 40 {
		t.Errorf("PagesProcessed = %d, want 40", stats.PagesProcessed)
	}

	seen := make(map[string]bool)
	for _, id := range sink.pages {
		if seen[id] {
			t.Errorf("page %s written twice", id)
		}
		seen[id] = true
	}
}
