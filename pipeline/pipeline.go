// Package pipeline orchestrates a full run: page listing, concurrent
// fetch and chunking, and serialized output.
//
// Layout: page ids flow through a bounded channel to N workers, each
// owning its token strategy and chunk builder. Finished pages flow
// through a second bounded channel to a single writer goroutine that
// feeds the sink, so sinks never see concurrent writes. A failed page is
// logged and skipped; the run keeps going.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v2"
	"github.com/sirupsen/logrus"

	"github.com/gaurav-prasanna/confchunk/core"
	"github.com/gaurav-prasanna/confchunk/core/chunk"
	"github.com/gaurav-prasanna/confchunk/core/token"
)

// Config controls one run.
type Config struct {
	PageIDs      []string // empty means list every page the API returns
	Workers      int
	TokenConfig  token.Config
	ChunkConfig  chunk.Config
	ShowProgress bool
}

// Stats summarizes a finished run.
type Stats struct {
	PagesProcessed int
	PagesSkipped   int
	PagesFailed    int
	TotalBlocks    int
	TotalChunks    int
	Duration       time.Duration
}

// Runner wires the pipeline stages together.
type Runner struct {
	fetcher   core.Fetcher
	extractor core.Extractor
	sink      core.Sink
	cfg       Config
	log       *logrus.Entry
}

// New creates a Runner. All three collaborators are required.
func New(fetcher core.Fetcher, extractor core.Extractor, sink core.Sink, cfg Config) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	return &Runner{
		fetcher:   fetcher,
		extractor: extractor,
		sink:      sink,
		cfg:       cfg,
		log:       logrus.WithField("component", "pipeline"),
	}
}

// pageResult is what a worker hands to the writer. Exactly one of the
// payload fields and err is meaningful; skipped pages carry neither.
type pageResult struct {
	pageID  string
	page    *core.Page
	blocks  []*core.ContentBlock
	chunks  []*core.Chunk
	err     error
	skipped bool
}

// Run executes the pipeline and returns run statistics. Only setup
// failures (listing, sink open, bad strategy config) abort the run;
// individual page failures are logged and counted.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	start := time.Now()

	pageIDs := r.cfg.PageIDs
	if len(pageIDs) == 0 {
		var err error
		pageIDs, err = r.fetcher.ListPageIDs(ctx)
		if err != nil {
			return Stats{}, fmt.Errorf("listing pages: %w", err)
		}
		r.log.WithField("pages", len(pageIDs)).Info("page listing complete")
	} else {
		r.log.WithField("pages", len(pageIDs)).Info("using configured page id filter")
	}

	// Fail on bad strategy config before any work starts. Workers build
	// their own instances from the same config below.
	if _, err := token.New(r.cfg.TokenConfig); err != nil {
		return Stats{}, err
	}

	if err := r.sink.Open(); err != nil {
		return Stats{}, fmt.Errorf("opening sink: %w", err)
	}

	ids := make(chan string, r.cfg.Workers)
	results := make(chan pageResult, r.cfg.Workers)

	workers := r.cfg.Workers
	if workers > len(pageIDs) && len(pageIDs) > 0 {
		workers = len(pageIDs)
	}

	done := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			r.worker(ctx, ids, results)
			done <- struct{}{}
		}()
	}

	go func() {
		defer close(ids)
		for _, id := range pageIDs {
			select {
			case ids <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		for i := 0; i < workers; i++ {
			<-done
		}
		close(results)
	}()

	stats := r.drain(results, len(pageIDs))
	stats.Duration = time.Since(start)

	meta := core.RunMetadata{
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		TotalPages:    stats.PagesProcessed,
		TotalChunks:   stats.TotalChunks,
		TotalBlocks:   stats.TotalBlocks,
		ChunkSize:     r.cfg.ChunkConfig.ChunkSize,
		ChunkOverlap:  r.cfg.ChunkConfig.ChunkOverlap,
		TokenStrategy: r.cfg.TokenConfig.Strategy,
	}
	if err := r.sink.Close(meta); err != nil {
		return stats, fmt.Errorf("closing sink: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"pages":    stats.PagesProcessed,
		"skipped":  stats.PagesSkipped,
		"failed":   stats.PagesFailed,
		"chunks":   stats.TotalChunks,
		"duration": stats.Duration.Round(time.Millisecond),
		"output":   r.sink.OutputPath(),
	}).Info("run complete")

	return stats, nil
}

// worker pulls page ids until the channel closes. Each worker owns its
// token strategy: the wordpiece backend is stateful.
func (r *Runner) worker(ctx context.Context, ids <-chan string, results chan<- pageResult) {
	strategy, err := token.New(r.cfg.TokenConfig)
	if err != nil {
		// Validated in Run; only reachable if config mutates mid-run.
		r.log.WithError(err).Error("worker could not build token strategy")
		for range ids {
		}
		return
	}
	builder := chunk.New(strategy, r.cfg.ChunkConfig)

	for id := range ids {
		results <- r.processPage(ctx, id, builder)
	}
}

// processPage runs fetch, extract, normalize and build for one page.
func (r *Runner) processPage(ctx context.Context, pageID string, builder *chunk.Builder) pageResult {
	page, err := r.fetcher.FetchPage(ctx, pageID)
	if err != nil {
		return pageResult{pageID: pageID, err: fmt.Errorf("fetch: %w", err)}
	}
	if page == nil {
		return pageResult{pageID: pageID, skipped: true}
	}

	blocks, headings, err := r.extractor.Extract(page.BodyHTML, page.ID)
	if err != nil {
		return pageResult{pageID: pageID, err: fmt.Errorf("extract: %w", err)}
	}

	blocks, headings = builder.Normalize(blocks, headings, page.ID, page.Title)

	chunks := builder.Build(&blocks, chunk.PageMeta{
		PageID:       page.ID,
		PageTitle:    page.Title,
		SpaceKey:     page.SpaceKey,
		PageVersion:  page.Version,
		LastModified: page.LastModified,
		PageURL:      page.URL,
	})

	return pageResult{pageID: pageID, page: page, blocks: blocks, chunks: chunks}
}

// drain consumes worker results and feeds the sink.
func (r *Runner) drain(results <-chan pageResult, total int) Stats {
	var stats Stats

	var bar *progressbar.ProgressBar
	if r.cfg.ShowProgress && total > 0 {
		bar = progressbar.New(total)
	}

	for res := range results {
		if bar != nil {
			_ = bar.Add(1)
		}

		switch {
		case res.skipped:
			stats.PagesSkipped++
			continue
		case res.err != nil:
			stats.PagesFailed++
			r.log.WithField("page_id", res.pageID).WithError(res.err).Error("page failed")
			continue
		}

		if err := r.sink.WritePage(res.page, res.blocks, res.chunks); err != nil {
			stats.PagesFailed++
			r.log.WithField("page_id", res.pageID).WithError(err).Error("write failed")
			continue
		}

		stats.PagesProcessed++
		stats.TotalBlocks += len(res.blocks)
		stats.TotalChunks += len(res.chunks)
		r.log.WithFields(logrus.Fields{
			"page_id": res.pageID,
			"blocks":  len(res.blocks),
			"chunks":  len(res.chunks),
		}).Debug("page written")
	}

	if bar != nil {
		_ = bar.Finish()
	}
	return stats
}
