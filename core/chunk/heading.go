package chunk

import (
	"strings"

	"github.com/gaurav-prasanna/confchunk/core"
)

// headingHierarchy resolves the heading context for a chunk whose first
// block is first. When that block is itself a heading, the hierarchy
// starts at it; otherwise the block's heading back-reference is resolved
// and climbed. The returned slices run least-important to most-important
// ("h3 > h2 > h1"); the second is truncated to maxHeadingLevels for the
// embedding text. The third value is the nearest heading's html id.
func (b *Builder) headingHierarchy(
	first *core.ContentBlock,
	headingIdx map[int]*core.HeadingInfo,
) ([]string, []string, string) {
	if first == nil {
		return nil, nil, ""
	}

	if h, ok := headingIdx[first.Index]; ok {
		hierarchy := climbHierarchy(h, headingIdx)
		return hierarchy, truncate(hierarchy, b.maxHeadingLevels), h.HTMLID
	}

	var start *core.HeadingInfo
	if first.ParentHeadingID != "" {
		for _, h := range headingIdx {
			if h.BlockID == first.ParentHeadingID {
				start = h
				break
			}
		}
	}
	if start == nil {
		return nil, nil, ""
	}

	hierarchy := climbHierarchy(start, headingIdx)
	return hierarchy, truncate(hierarchy, b.maxHeadingLevels), start.HTMLID
}

// climbHierarchy walks upward from start: each step finds the latest
// heading that both outranks the current one (strictly smaller level) and
// appears earlier on the page. Result order is start first, ancestors
// after, i.e. h3, h2, h1.
func climbHierarchy(start *core.HeadingInfo, headingIdx map[int]*core.HeadingInfo) []string {
	chain := []*core.HeadingInfo{start}
	current := start
	for {
		var best *core.HeadingInfo
		for _, h := range headingIdx {
			if h.Level < current.Level && h.BlockIndex < current.BlockIndex {
				if best == nil || h.BlockIndex > best.BlockIndex {
					best = h
				}
			}
		}
		if best == nil {
			break
		}
		chain = append(chain, best)
		current = best
	}

	texts := make([]string, len(chain))
	for i, h := range chain {
		texts[i] = h.Text
	}
	return texts
}

func truncate(hierarchy []string, max int) []string {
	if len(hierarchy) <= max {
		return hierarchy
	}
	return hierarchy[:max]
}

// estimateTagTokens computes the exact token cost of the [PAGE]/[SECTION]
// prefix for a chunk starting at blocks[start], before any content is
// taken. Even a small estimation error here overflows the chunk, so the
// same hierarchy resolution used for the final chunk runs up front and its
// results are returned for reuse.
//
// When the chunk opens with prev-overlap, the overlap's earliest block is
// the chunk's visual start and defines the hierarchy.
func (b *Builder) estimateTagTokens(
	blocks []*core.ContentBlock,
	start int,
	ovPrevIndices []int,
	headingIdx map[int]*core.HeadingInfo,
	pageTitle string,
) (int, []string, []string, string) {
	var first *core.ContentBlock
	if len(ovPrevIndices) > 0 && ovPrevIndices[0] < len(blocks) {
		first = blocks[ovPrevIndices[0]]
	} else if start < len(blocks) {
		first = blocks[start]
	}

	fullHier, textHier, nearestHID := b.headingHierarchy(first, headingIdx)

	var parts []string
	if b.includePageTag {
		parts = append(parts, "[PAGE] "+pageTitle)
	}
	if b.includeSectionTag && len(textHier) > 0 {
		parts = append(parts, "[SECTION] "+strings.Join(textHier, " > "))
	}
	if len(parts) > 0 {
		parts = append(parts, "[TEXT] ")
	}

	return b.strategy.Count(strings.Join(parts, "\n")), fullHier, textHier, nearestHID
}

// buildEmbeddingText assembles the text handed to the embedding model:
//
//	[PAGE] Title
//	[SECTION] h3 > h2
//	[TEXT] chunk text
//
// With both tags disabled the bare chunk text is returned.
func (b *Builder) buildEmbeddingText(pageTitle string, hierarchy []string, chunkText string) string {
	var parts []string
	if b.includePageTag {
		parts = append(parts, "[PAGE] "+pageTitle)
	}
	if b.includeSectionTag && len(hierarchy) > 0 {
		parts = append(parts, "[SECTION] "+strings.Join(hierarchy, " > "))
	}
	if len(parts) == 0 {
		return strings.TrimSpace(chunkText)
	}
	parts = append(parts, "[TEXT] "+strings.TrimSpace(chunkText))
	return strings.Join(parts, "\n")
}
