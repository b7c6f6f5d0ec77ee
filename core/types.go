// Package core defines the data model and pipeline interfaces for ConfChunk.
// Each stage of the pipeline is a clean, testable interface over these types.
package core

import "fmt"

// Page holds one fetched wiki page: its rendered HTML plus the metadata
// needed to identify, version and link back to it.
type Page struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	SpaceKey     string `json:"space_key"`
	SpaceName    string `json:"space_name"`
	Version      int    `json:"version"`
	LastModified string `json:"last_modified"`
	URL          string `json:"url"`
	BodyHTML     string `json:"-"`
}

// PageInfo is the short per-page record written to the output document,
// so consumers don't have to dig page metadata out of every chunk.
type PageInfo struct {
	PageID       string    `json:"page_id"`
	PageTitle    string    `json:"page_title"`
	Space        SpaceInfo `json:"space"`
	LastModified string    `json:"last_modified"`
	PageVersion  int       `json:"page_version"`
}

// SpaceInfo identifies the space/collection a page belongs to.
type SpaceInfo struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Info returns the output record for the page.
func (p *Page) Info() PageInfo {
	return PageInfo{
		PageID:       p.ID,
		PageTitle:    p.Title,
		Space:        SpaceInfo{Key: p.SpaceKey, Name: p.SpaceName},
		LastModified: p.LastModified,
		PageVersion:  p.Version,
	}
}

// ContentBlock is the minimal semantic unit extracted from a page: a
// paragraph, a list item, a table row, a heading and so on.
//
// Indices are contiguous 0..N-1 within one page snapshot and the ID is a
// pure function of page id and index, so any re-indexing must regenerate
// IDs everywhere they are referenced.
type ContentBlock struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	PageID    string `json:"page_id"`
	BlockType string `json:"block_type"`
	Text      string `json:"text"`

	// Markdown rendition of the source element, when enabled. Synthetic
	// blocks produced by splitting carry no markdown.
	Markdown string `json:"markdown,omitempty"`

	// Navigation fields.
	XPath       string `json:"xpath"`
	CSSSelector string `json:"css_selector"`
	TextOffset  int    `json:"text_offset"`
	TextLength  int    `json:"text_length"`

	// ParentHeadingID is a weak back-reference (a lookup key, never an
	// owning pointer) to the nearest enclosing heading block.
	ParentHeadingID string `json:"parent_heading_id,omitempty"`

	// HTMLID is the element's real id attribute, for anchor navigation.
	HTMLID string `json:"html_id,omitempty"`
}

// HeadingInfo records one heading block, used for lookups and for
// hierarchy reconstruction.
type HeadingInfo struct {
	Level      int    `json:"level"`
	Text       string `json:"text"`
	BlockID    string `json:"block_id"`
	BlockIndex int    `json:"block_index"`
	HTMLID     string `json:"html_id,omitempty"`
}

// Fragment describes the exact slice of one block's text that landed in a
// chunk. The fields are intentionally redundant: xpath/css locate the DOM
// element, text_offset plus fragment bounds allow in-element highlighting,
// and html_id gives a chance to jump by anchor without script support.
type Fragment struct {
	BlockIndex    int    `json:"block_index"`
	BlockID       string `json:"block_id"`
	BlockType     string `json:"block_type"`
	XPath         string `json:"xpath"`
	CSSSelector   string `json:"css_selector"`
	HTMLID        string `json:"html_id,omitempty"`
	TextOffset    int    `json:"text_offset"`
	TextLength    int    `json:"text_length"`
	FragmentStart int    `json:"fragment_start"`
	FragmentEnd   int    `json:"fragment_end"`
	Text          string `json:"text"`
}

// Highlight carries the sub-block text fragments and anchors a UI needs to
// highlight a chunk inside the rendered page.
type Highlight struct {
	TextFragment         string     `json:"text_fragment"`
	BlockType            string     `json:"block_type"`
	TextOffset           int        `json:"text_offset"`
	FirstBlockHTMLID     string     `json:"first_block_html_id,omitempty"`
	NearestHeadingHTMLID string     `json:"nearest_heading_html_id,omitempty"`
	ChunkIDBase          string     `json:"chunk_id_base"`
	CoreFragments        []Fragment `json:"core_fragments"`
	OverlapPrevFragments []Fragment `json:"overlap_prev_fragments,omitempty"`
	OverlapNextFragments []Fragment `json:"overlap_next_fragments,omitempty"`
}

// Navigation groups the fields that let a UI jump back to the chunk's
// source passage.
type Navigation struct {
	XPathStart       string    `json:"xpath_start"`
	CSSSelectorStart string    `json:"css_selector_start"`
	TextOffsetStart  int       `json:"text_offset_start"`
	TextLength       int       `json:"text_length"`
	URL              string    `json:"url"`
	Highlight        Highlight `json:"highlight_metadata"`
}

// Chunk is a token-bounded span of one or more blocks, plus overlap text,
// ready for embedding and indexing.
type Chunk struct {
	ChunkID      string `json:"chunk_id"`
	PageID       string `json:"page_id"`
	SpaceKey     string `json:"space_key"`
	PageTitle    string `json:"page_title"`
	PageVersion  int    `json:"page_version"`
	LastModified string `json:"last_modified"`

	// Block bookkeeping. Overlap indices are disjoint from core by
	// construction.
	BlockIndices            []int `json:"block_indices"`
	CoreBlockIndices        []int `json:"core_block_indices"`
	OverlapPrevBlockIndices []int `json:"overlap_prev_block_indices"`
	OverlapNextBlockIndices []int `json:"overlap_next_block_indices"`

	// Heading context. Ordering is least-important → most-important
	// ("h3 > h2 > h1"); the text hierarchy is truncated for embedding.
	FullHeadingHierarchy []string `json:"full_heading_hierarchy"`
	TextHeadingHierarchy []string `json:"text_heading_hierarchy"`
	NearestHeadingID     string   `json:"nearest_heading_id,omitempty"`

	// Text representations.
	NormalizedText  string `json:"normalized_text"`
	OverlapPrevText string `json:"overlap_prev_text"`
	OverlapNextText string `json:"overlap_next_text"`
	FullText        string `json:"full_text"`
	EmbeddingText   string `json:"embedding_text"`

	Navigation Navigation `json:"navigation"`
}

// RunMetadata summarizes one pipeline run; sinks persist it alongside the
// chunk output.
type RunMetadata struct {
	GeneratedAt   string `json:"generated_at"`
	TotalPages    int    `json:"total_pages"`
	TotalChunks   int    `json:"total_chunks"`
	TotalBlocks   int    `json:"total_blocks,omitempty"`
	BaseURL       string `json:"base_url,omitempty"`
	ChunkSize     int    `json:"chunk_size"`
	ChunkOverlap  int    `json:"chunk_overlap"`
	TokenStrategy string `json:"token_strategy"`
}

// BlockID builds the canonical block id: {prefix}:{page_id}-{index}.
func BlockID(prefix, pageID string, index int) string {
	return fmt.Sprintf("%s:%s-%d", prefix, pageID, index)
}

// ChunkIDBase builds the canonical chunk id from the first and last core
// block index: {prefix}:{page_id}:{first}-{last}.
func ChunkIDBase(prefix, pageID string, first, last int) string {
	return fmt.Sprintf("%s:%s:%d-%d", prefix, pageID, first, last)
}

// ChunkIDWithOffsets appends the character-offset suffix used when a chunk
// begins or ends inside a block: {base}@{start}-{end}.
func ChunkIDWithOffsets(base string, start, end int) string {
	return fmt.Sprintf("%s@%d-%d", base, start, end)
}
