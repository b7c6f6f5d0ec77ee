package chunk

import (
	"strings"

	"github.com/gaurav-prasanna/confchunk/core"
)

// collectOverlap gathers up to chunkOverlap tokens of overlap text from a
// neighbor chunk's core fragments. fromEnd selects the direction: true
// takes trailing fragments (prev-overlap), false takes leading ones
// (next-overlap). A fragment that does not fit whole contributes a
// sentence-bounded part instead of being skipped.
func (b *Builder) collectOverlap(source []core.Fragment, fromEnd bool) ([]int, string, []core.Fragment) {
	if len(source) == 0 || b.chunkOverlap <= 0 {
		return nil, "", nil
	}

	remaining := b.chunkOverlap

	frags := make([]core.Fragment, len(source))
	copy(frags, source)
	if fromEnd {
		reverseFragments(frags)
	}

	type pair struct {
		index int
		text  string
	}
	var collected []pair
	var collectedFrags []core.Fragment

	for _, frag := range frags {
		if remaining <= 0 {
			break
		}
		if frag.Text == "" {
			continue
		}

		ft := b.strategy.Count(frag.Text)
		if ft <= remaining {
			collected = append(collected, pair{frag.BlockIndex, frag.Text})
			collectedFrags = append(collectedFrags, frag)
			remaining -= ft
			continue
		}

		partial := b.extractPartial(frag.Text, remaining, fromEnd)
		if partial != "" {
			collected = append(collected, pair{frag.BlockIndex, partial})
			// Keep the source block's locator fields; only the text is
			// narrowed.
			pf := frag
			pf.Text = partial
			pf.TextLength = len(partial)
			collectedFrags = append(collectedFrags, pf)
		}
		break
	}

	if len(collected) == 0 {
		return nil, "", nil
	}

	if fromEnd {
		for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
			collected[i], collected[j] = collected[j], collected[i]
		}
		reverseFragments(collectedFrags)
	}

	indices := make([]int, 0, len(collected))
	texts := make([]string, 0, len(collected))
	for _, p := range collected {
		indices = appendIndex(indices, p.index)
		texts = append(texts, p.text)
	}
	return indices, strings.Join(texts, " "), collectedFrags
}

// extractPartial takes at most maxTokens worth of a block's text: the last
// sentences when fromEnd, the first ones otherwise. When not even one
// sentence fits, a raw character prefix keeps the overlap non-empty.
func (b *Builder) extractPartial(text string, maxTokens int, fromEnd bool) string {
	parts := b.strategy.Split(text, maxTokens)
	if len(parts) == 0 {
		return ""
	}

	budget := maxTokens
	var result []string
	if fromEnd {
		for i := len(parts) - 1; i >= 0; i-- {
			pt := b.strategy.Count(parts[i])
			if pt > budget {
				break
			}
			result = append([]string{parts[i]}, result...)
			budget -= pt
		}
		if len(result) == 0 {
			return clipRunes(parts[len(parts)-1], 200)
		}
	} else {
		for _, part := range parts {
			pt := b.strategy.Count(part)
			if pt > budget {
				break
			}
			result = append(result, part)
			budget -= pt
		}
		if len(result) == 0 {
			return clipRunes(parts[0], 200)
		}
	}
	return strings.Join(result, " ")
}

// applyNextOverlap is the second pass: every chunk but the last receives
// an overlap window pulled from the start of the following chunk's core
// fragments, into the budget reserved during packing. Indices already in
// the chunk's own core are filtered out, then the chunk's texts are
// rebuilt.
func (b *Builder) applyNextOverlap(chunks []*core.Chunk, pageTitle string) {
	for i := 0; i+1 < len(chunks); i++ {
		cur := chunks[i]
		next := chunks[i+1]

		ovIndices, ovText, ovFrags := b.collectOverlap(next.Navigation.Highlight.CoreFragments, false)
		if ovText == "" {
			continue
		}

		filtered := excludeIndices(ovIndices, cur.CoreBlockIndices)
		cur.OverlapNextBlockIndices = filtered
		cur.OverlapNextText = ovText
		cur.Navigation.Highlight.OverlapNextFragments = ovFrags

		cur.BlockIndices = dedupeIndices(append(cur.BlockIndices, filtered...))

		b.rebuildTexts(cur, pageTitle)
	}
}

// rebuildTexts refreshes full_text and embedding_text from the three text
// parts the chunk already holds. Re-reading blocks here would break
// partial-block overlaps, so only the stored texts are used.
func (b *Builder) rebuildTexts(chunk *core.Chunk, pageTitle string) {
	var parts []string
	if chunk.OverlapPrevText != "" {
		parts = append(parts, chunk.OverlapPrevText)
	}
	parts = append(parts, chunk.NormalizedText)
	if chunk.OverlapNextText != "" {
		parts = append(parts, chunk.OverlapNextText)
	}

	chunk.FullText = strings.Join(parts, " ")
	chunk.EmbeddingText = b.buildEmbeddingText(pageTitle, chunk.TextHeadingHierarchy, chunk.FullText)
}

func reverseFragments(frags []core.Fragment) {
	for i, j := 0, len(frags)-1; i < j; i, j = i+1, j-1 {
		frags[i], frags[j] = frags[j], frags[i]
	}
}

func clipRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
