// Package chunk packs a page's content blocks into token-bounded,
// overlapping chunks.
//
// Budget accounting per chunk:
//
//	chunk_size = tags + prev_overlap + core_content + next_overlap_reserve
//
// Overlap works on the text level: when a neighboring block does not fit
// the overlap budget whole, a sentence-bounded part of it is taken instead
// of skipping the block. The next-overlap share is reserved during packing
// and filled in by a second pass once all chunks exist.
package chunk

import (
	"strings"

	"github.com/gaurav-prasanna/confchunk/core"
)

// PageMeta carries the page-level fields stamped onto every chunk.
type PageMeta struct {
	PageID       string
	PageTitle    string
	SpaceKey     string
	PageVersion  int
	LastModified string
	PageURL      string
}

// Config controls chunk sizing and embedding-text shape.
type Config struct {
	ChunkSize         int
	ChunkOverlap      int
	MaxHeadingLevels  int
	IncludePageTag    bool
	IncludeSectionTag bool
	IDPrefix          string
}

// Builder packs normalized blocks into chunks. One Builder serves one
// goroutine; the token strategy it wraps may be stateful.
type Builder struct {
	strategy          core.TokenStrategy
	chunkSize         int
	chunkOverlap      int
	maxHeadingLevels  int
	includePageTag    bool
	includeSectionTag bool
	idPrefix          string
}

// New creates a Builder around the given token strategy.
func New(strategy core.TokenStrategy, cfg Config) *Builder {
	size := cfg.ChunkSize
	if size <= 0 {
		size = 512
	}
	levels := cfg.MaxHeadingLevels
	if levels <= 0 {
		levels = 2
	}
	prefix := cfg.IDPrefix
	if prefix == "" {
		prefix = "EDU"
	}
	return &Builder{
		strategy:          strategy,
		chunkSize:         size,
		chunkOverlap:      cfg.ChunkOverlap,
		maxHeadingLevels:  levels,
		includePageTag:    cfg.IncludePageTag,
		includeSectionTag: cfg.IncludeSectionTag,
		idPrefix:          prefix,
	}
}

// Build produces the page's ordered chunk sequence in two passes: pass one
// packs chunks forward, carrying overlap from the previous chunk and
// reserving room for the next one; pass two fills the reserved room with
// overlap pulled from each following chunk.
//
// Build may split oversized blocks in place (see materializeSplit), so the
// blocks slice is taken by pointer and reflects the final numbering when
// Build returns.
func (b *Builder) Build(blocks *[]*core.ContentBlock, meta PageMeta) []*core.Chunk {
	if len(*blocks) == 0 {
		return nil
	}

	var chunks []*core.Chunk
	pos := 0
	for pos < len(*blocks) {
		// The block list can gain members mid-build, so the heading index
		// is rebuilt from the blocks themselves each round.
		headingIdx := headingIndexFromBlocks(*blocks)

		var prev *core.Chunk
		if len(chunks) > 0 {
			prev = chunks[len(chunks)-1]
		}
		chunk, next := b.buildOne(blocks, pos, headingIdx, meta, prev)
		if chunk == nil {
			break
		}
		chunks = append(chunks, chunk)
		pos = next
	}

	if b.chunkOverlap > 0 {
		b.applyNextOverlap(chunks, meta.PageTitle)
	}
	return chunks
}

// buildOne packs one chunk starting at (*blocks)[start] and returns it
// together with the position of the first unconsumed block. A nil chunk
// means no content could be taken and the page is done.
func (b *Builder) buildOne(
	blocks *[]*core.ContentBlock,
	start int,
	headingIdx map[int]*core.HeadingInfo,
	meta PageMeta,
	prev *core.Chunk,
) (*core.Chunk, int) {
	var (
		ovPrevIndices []int
		ovPrevText    string
		ovPrevTokens  int
		ovPrevFrags   []core.Fragment
	)
	if prev != nil && b.chunkOverlap > 0 {
		ovPrevIndices, ovPrevText, ovPrevFrags = b.collectOverlap(prev.Navigation.Highlight.CoreFragments, true)
		ovPrevTokens = b.strategy.Count(ovPrevText)
	}

	// Tag cost must be known before any content is taken, or the chunk
	// can silently overflow. The hierarchy is fixed by the chunk's first
	// block, so it is computable up front.
	tagTokens, fullHier, textHier, nearestHID := b.estimateTagTokens(*blocks, start, ovPrevIndices, headingIdx, meta.PageTitle)

	nextReserve := 0
	if b.chunkOverlap > 0 {
		nextReserve = b.chunkOverlap
	}

	budget := b.chunkSize - tagTokens - ovPrevTokens - nextReserve
	if budget <= 0 {
		// Sacrifice prev-overlap first, then the next-overlap reserve,
		// then floor the budget so pathological heading paths still make
		// forward progress.
		ovPrevIndices, ovPrevText, ovPrevTokens, ovPrevFrags = nil, "", 0, nil
		budget = b.chunkSize - tagTokens - nextReserve
		if budget <= 0 {
			nextReserve = 0
			budget = b.chunkSize - tagTokens
			if budget <= 0 {
				budget = b.chunkSize / 4
				if budget < 10 {
					budget = 10
				}
			}
		}
	}

	var (
		coreFrags   []core.Fragment
		coreIndices []int
		coreTexts   []string
	)

	i := start
	for i < len(*blocks) && budget > 0 {
		block := (*blocks)[i]
		if block.Text == "" {
			i++
			continue
		}

		bt := b.strategy.Count(block.Text)
		if bt <= budget {
			coreTexts = append(coreTexts, block.Text)
			coreFrags = append(coreFrags, makeFragment(block, block.Text, 0, len(block.Text)))
			coreIndices = appendIndex(coreIndices, block.Index)
			budget -= bt
			i++
			continue
		}

		// The block does not fit. Take the longest whole-sentence prefix
		// that does; a sentence is cut only when the chunk is still empty
		// and progress is mandatory.
		fragText, remainder := b.strategy.TakePrefix(block.Text, budget, len(coreTexts) == 0)
		if fragText == "" {
			break
		}

		coreTexts = append(coreTexts, fragText)
		coreFrags = append(coreFrags, makeFragment(block, fragText, 0, len(fragText)))
		coreIndices = appendIndex(coreIndices, block.Index)
		budget -= b.strategy.Count(fragText)

		if remainder != "" {
			// Materialize the cut so the next chunk starts at a real
			// block boundary with its own index and id.
			b.materializeSplit(blocks, i, fragText, remainder, meta.PageID)
			i++
			break
		}
		i++
	}

	if len(coreTexts) == 0 {
		return nil, len(*blocks)
	}

	normalizedText := strings.Join(coreTexts, " ")

	var textParts []string
	if ovPrevText != "" {
		textParts = append(textParts, ovPrevText)
	}
	textParts = append(textParts, normalizedText)
	fullText := strings.Join(textParts, " ")

	embeddingText := b.buildEmbeddingText(meta.PageTitle, textHier, fullText)

	firstFrag := coreFrags[0]
	navURL := navigationURL(meta.PageURL, firstFrag, normalizedText, nearestHID)

	chunkIDBase := core.ChunkIDBase(b.idPrefix, meta.PageID, coreIndices[0], coreIndices[len(coreIndices)-1])
	chunkID := chunkIDBase

	// Prev-overlap indices are kept only for blocks outside the core, so
	// a block never appears to overlap with itself.
	ovPrevFiltered := excludeIndices(ovPrevIndices, coreIndices)
	allIndices := dedupeIndices(append(append([]int{}, ovPrevFiltered...), coreIndices...))

	textFragment := clipRunes(normalizedText, 100)

	chunk := &core.Chunk{
		ChunkID:                 chunkID,
		PageID:                  meta.PageID,
		SpaceKey:                meta.SpaceKey,
		PageTitle:               meta.PageTitle,
		PageVersion:             meta.PageVersion,
		LastModified:            meta.LastModified,
		BlockIndices:            allIndices,
		CoreBlockIndices:        coreIndices,
		OverlapPrevBlockIndices: ovPrevFiltered,
		FullHeadingHierarchy:    fullHier,
		TextHeadingHierarchy:    textHier,
		NearestHeadingID:        nearestHID,
		NormalizedText:          normalizedText,
		OverlapPrevText:         ovPrevText,
		FullText:                fullText,
		EmbeddingText:           embeddingText,
		Navigation: core.Navigation{
			XPathStart:       firstFrag.XPath,
			CSSSelectorStart: firstFrag.CSSSelector,
			TextOffsetStart:  firstFrag.TextOffset,
			TextLength:       len(normalizedText),
			URL:              navURL,
			Highlight: core.Highlight{
				TextFragment:         textFragment,
				BlockType:            firstFrag.BlockType,
				TextOffset:           firstFrag.TextOffset,
				FirstBlockHTMLID:     firstFrag.HTMLID,
				NearestHeadingHTMLID: nearestHID,
				ChunkIDBase:          chunkIDBase,
				CoreFragments:        coreFrags,
				OverlapPrevFragments: ovPrevFrags,
			},
		},
	}

	// When the chunk begins mid-block the base id would collide with its
	// sibling parts, so a character-offset suffix keeps it unique.
	if firstFrag.FragmentStart > 0 {
		chunk.ChunkID = core.ChunkIDWithOffsets(chunkIDBase,
			chunk.Navigation.TextOffsetStart,
			chunk.Navigation.TextOffsetStart+chunk.Navigation.TextLength)
	}

	return chunk, i
}

func appendIndex(indices []int, idx int) []int {
	for _, x := range indices {
		if x == idx {
			return indices
		}
	}
	return append(indices, idx)
}

func excludeIndices(indices, exclude []int) []int {
	out := make([]int, 0, len(indices))
	for _, idx := range indices {
		found := false
		for _, x := range exclude {
			if x == idx {
				found = true
				break
			}
		}
		if !found {
			out = append(out, idx)
		}
	}
	return out
}

func dedupeIndices(indices []int) []int {
	seen := make(map[int]bool, len(indices))
	out := make([]int, 0, len(indices))
	for _, idx := range indices {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out
}
