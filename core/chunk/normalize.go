package chunk

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gaurav-prasanna/confchunk/core"
)

// piece is one block-to-be after pre-splitting, before re-indexing.
type piece struct {
	origIndex           int
	origID              string
	origParentHeadingID string
	blockType           string
	text                string
	markdown            string
	xpath               string
	cssSelector         string
	htmlID              string
}

// Normalize pre-splits every non-heading block whose token count exceeds
// the budget of an empty chunk at its position, then re-indexes the whole
// page: fresh contiguous indices, regenerated ids, recomputed offsets, and
// heading references remapped through the old→new id mapping.
//
// After Normalize the packing loop never has to carry a block's remainder
// across a chunk boundary, so index-based core/overlap bookkeeping stays
// unambiguous.
func (b *Builder) Normalize(
	blocks []*core.ContentBlock,
	headings []*core.HeadingInfo,
	pageID, pageTitle string,
) ([]*core.ContentBlock, []*core.HeadingInfo) {
	if len(blocks) == 0 {
		return nil, nil
	}

	headingIdx := make(map[int]*core.HeadingInfo, len(headings))
	for _, h := range headings {
		headingIdx[h.BlockIndex] = h
	}

	var pieces []piece
	totalSplits := 0

	for pos, blk := range blocks {
		if strings.TrimSpace(blk.Text) == "" {
			continue
		}

		// Headings are practically never oversized and must stay whole.
		if isHeadingType(blk.BlockType) {
			pieces = append(pieces, pieceFrom(blk, blk.Text, true))
			continue
		}

		// Empty-chunk budget at this position: tags plus both overlap
		// windows, floored so pages with very long heading paths do not
		// degenerate into single-word parts.
		tagTokens, _, _, _ := b.estimateTagTokens(blocks, pos, nil, headingIdx, pageTitle)
		budget := b.chunkSize - tagTokens - 2*b.chunkOverlap
		if budget < 10 {
			budget = 10
		}

		if b.strategy.Count(blk.Text) <= budget {
			pieces = append(pieces, pieceFrom(blk, blk.Text, true))
			continue
		}

		parts := b.strategy.Split(blk.Text, budget)
		if len(parts) == 0 {
			parts = []string{blk.Text}
		}
		totalSplits += len(parts) - 1

		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			// Split parts are synthetic; their markdown would no longer
			// match the text.
			pieces = append(pieces, pieceFrom(blk, part, false))
		}
	}

	if totalSplits > 0 {
		logrus.WithFields(logrus.Fields{
			"page_id":      pageID,
			"extra_blocks": totalSplits,
		}).Info("split oversized blocks before chunking")
	}

	// Re-index, regenerate ids and offsets, and collect the heading
	// old→new mapping along the way.
	oldHeadingIDToNew := make(map[string]string)
	oldHeadingIndexToNew := make(map[int]int)

	newBlocks := make([]*core.ContentBlock, 0, len(pieces))
	offset := 0
	for newIndex, p := range pieces {
		newID := core.BlockID(b.idPrefix, pageID, newIndex)
		nb := &core.ContentBlock{
			Index:           newIndex,
			ID:              newID,
			PageID:          pageID,
			BlockType:       p.blockType,
			Text:            p.text,
			Markdown:        p.markdown,
			XPath:           p.xpath,
			CSSSelector:     p.cssSelector,
			TextOffset:      offset,
			TextLength:      len(p.text),
			ParentHeadingID: p.origParentHeadingID,
			HTMLID:          p.htmlID,
		}
		offset += len(nb.Text) + 1
		newBlocks = append(newBlocks, nb)

		if isHeadingType(p.blockType) {
			oldHeadingIDToNew[p.origID] = newID
			oldHeadingIndexToNew[p.origIndex] = newIndex
		}
	}

	for _, nb := range newBlocks {
		if mapped, ok := oldHeadingIDToNew[nb.ParentHeadingID]; ok {
			nb.ParentHeadingID = mapped
		}
	}

	newHeadings := make([]*core.HeadingInfo, 0, len(headings))
	for _, h := range headings {
		newID, ok := oldHeadingIDToNew[h.BlockID]
		if !ok {
			// The heading block never made it into pieces, e.g. it had
			// empty text.
			continue
		}
		newHeadings = append(newHeadings, &core.HeadingInfo{
			Level:      h.Level,
			Text:       h.Text,
			BlockID:    newID,
			BlockIndex: oldHeadingIndexToNew[h.BlockIndex],
			HTMLID:     h.HTMLID,
		})
	}

	return newBlocks, newHeadings
}

func pieceFrom(blk *core.ContentBlock, text string, keepMarkdown bool) piece {
	p := piece{
		origIndex:           blk.Index,
		origID:              blk.ID,
		origParentHeadingID: blk.ParentHeadingID,
		blockType:           blk.BlockType,
		text:                text,
		xpath:               blk.XPath,
		cssSelector:         blk.CSSSelector,
		htmlID:              blk.HTMLID,
	}
	if keepMarkdown {
		p.markdown = blk.Markdown
	}
	return p
}

func isHeadingType(blockType string) bool {
	t := strings.ToLower(blockType)
	return len(t) == 2 && t[0] == 'h' && t[1] >= '1' && t[1] <= '6'
}
