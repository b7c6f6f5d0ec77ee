package core

import "context"

// Fetcher lists and retrieves pages from the remote content API.
type Fetcher interface {
	// ListPageIDs returns the ids of all pages visible to the client,
	// following API pagination.
	ListPageIDs(ctx context.Context) ([]string, error)
	// FetchPage retrieves one page with rendered HTML and metadata.
	// A missing page returns (nil, nil) so callers can skip it.
	FetchPage(ctx context.Context, pageID string) (*Page, error)
}

// Extractor turns raw page HTML into an ordered block sequence plus a
// heading index.
type Extractor interface {
	Extract(html, pageID string) ([]*ContentBlock, []*HeadingInfo, error)
}

// TokenStrategy is the pluggable token counting and text segmentation
// backend. Implementations wrapping stateful backends must not be shared,
// unguarded, across parallel invocations; give each worker its own
// instance.
type TokenStrategy interface {
	// Name reports the backend name the instance was built for.
	Name() string
	// Count returns the number of tokens in text.
	Count(text string) int
	// Split segments text into parts of at most maxTokens each, cutting at
	// sentence boundaries and falling back to word boundaries for single
	// sentences over the limit.
	Split(text string, maxTokens int) []string
	// TakePrefix returns the longest whole-sentence prefix of text that
	// fits maxTokens, plus the remainder. When even the first sentence
	// exceeds the budget: with mustTake=false the prefix is empty (the
	// caller ends the current chunk); with mustTake=true the sentence is
	// cut at a word boundary so forward progress is guaranteed.
	TakePrefix(text string, maxTokens int, mustTake bool) (prefix, remainder string)
}

// Sink persists per-page results. Implementations are driven by a single
// writer goroutine and don't need to be safe for concurrent use.
type Sink interface {
	Open() error
	WritePage(page *Page, blocks []*ContentBlock, chunks []*Chunk) error
	Close(meta RunMetadata) error
	// OutputPath names the sink's destination, for logs.
	OutputPath() string
}
